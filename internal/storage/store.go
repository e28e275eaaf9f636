package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
}

// SessionStore manages the history of analysis rounds.
type SessionStore interface {
	UpsertSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListRecentSessions(ctx context.Context, limit int) ([]SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
}
