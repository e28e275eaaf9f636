package storage

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedSessions is a SessionStore that keeps recently read or written
// records in memory. Writes go through to the backing store first.
type CachedSessions struct {
	next  SessionStore
	cache *lru.Cache[string, SessionRecord]
}

// NewCachedSessions wraps next with an LRU cache of size entries.
func NewCachedSessions(next SessionStore, size int) (*CachedSessions, error) {
	cache, err := lru.New[string, SessionRecord](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &CachedSessions{next: next, cache: cache}, nil
}

func (c *CachedSessions) UpsertSession(ctx context.Context, record SessionRecord) error {
	if err := c.next.UpsertSession(ctx, record); err != nil {
		c.cache.Remove(record.ID)
		return err
	}
	c.cache.Add(record.ID, record)
	return nil
}

func (c *CachedSessions) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	if record, ok := c.cache.Get(id); ok {
		return &record, nil
	}

	record, err := c.next.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.cache.Remove(id)
		}
		return nil, err
	}
	c.cache.Add(id, *record)
	return record, nil
}

func (c *CachedSessions) ListRecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	records, err := c.next.ListRecentSessions(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		c.cache.Add(r.ID, r)
	}
	return records, nil
}

func (c *CachedSessions) DeleteSession(ctx context.Context, id string) error {
	c.cache.Remove(id)
	return c.next.DeleteSession(ctx, id)
}

// Len returns the number of cached records.
func (c *CachedSessions) Len() int {
	return c.cache.Len()
}
