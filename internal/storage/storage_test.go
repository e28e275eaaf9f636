package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemorySessions
	gets    int
	failPut error
}

func (c *countingStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	c.gets++
	return c.MemorySessions.GetSession(ctx, id)
}

func (c *countingStore) UpsertSession(ctx context.Context, record SessionRecord) error {
	if c.failPut != nil {
		return c.failPut
	}
	return c.MemorySessions.UpsertSession(ctx, record)
}

func record(id string, started time.Time, status Status) SessionRecord {
	return SessionRecord{
		ID:        id,
		SessionID: "s-1",
		VideoName: id + ".mp4",
		VideoType: "video/mp4",
		Status:    status,
		StartedAt: started,
		UpdatedAt: started,
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Completed ")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, s)

	_, err = ParseStatus("queued")
	require.Error(t, err)

	var decoded Status
	require.NoError(t, json.Unmarshal([]byte(`"FAILED"`), &decoded))
	require.Equal(t, StatusFailed, decoded)

	require.False(t, StatusProcessing.Terminal())
	require.True(t, StatusAbandoned.Terminal())
}

func TestMemorySessions_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessions()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.UpsertSession(ctx, record(id, base.Add(time.Duration(i)*time.Minute), StatusCompleted)))
	}

	records, err := store.ListRecentSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "c", records[0].ID)
	require.Equal(t, "b", records[1].ID)

	require.NoError(t, store.DeleteSession(ctx, "c"))
	_, err = store.GetSession(ctx, "c")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCachedSessions_ReadThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{MemorySessions: NewMemorySessions()}
	require.NoError(t, backing.MemorySessions.UpsertSession(ctx, record("r1", time.Now(), StatusProcessing)))

	cached, err := NewCachedSessions(backing, 8)
	require.NoError(t, err)

	for range 3 {
		got, err := cached.GetSession(ctx, "r1")
		require.NoError(t, err)
		require.Equal(t, StatusProcessing, got.Status)
	}
	require.Equal(t, 1, backing.gets)

	updated := record("r1", time.Now(), StatusCompleted)
	require.NoError(t, cached.UpsertSession(ctx, updated))
	got, err := cached.GetSession(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, 1, backing.gets)

	require.NoError(t, cached.DeleteSession(ctx, "r1"))
	require.Zero(t, cached.Len())
	_, err = cached.GetSession(ctx, "r1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCachedSessions_FailedWriteEvicts(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{MemorySessions: NewMemorySessions()}
	cached, err := NewCachedSessions(backing, 8)
	require.NoError(t, err)

	require.NoError(t, cached.UpsertSession(ctx, record("r1", time.Now(), StatusProcessing)))
	require.Equal(t, 1, cached.Len())

	backing.failPut = errors.New("connection refused")
	require.Error(t, cached.UpsertSession(ctx, record("r1", time.Now(), StatusCompleted)))
	require.Zero(t, cached.Len())

	got, err := cached.GetSession(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, got.Status)
}

func TestCachedSessions_InvalidSize(t *testing.T) {
	_, err := NewCachedSessions(NewMemorySessions(), 0)
	require.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultListLimit, NormalizeLimit(0))
	require.Equal(t, 7, NormalizeLimit(7))
	require.Equal(t, MaxListLimit, NormalizeLimit(10_000))
}
