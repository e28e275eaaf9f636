package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/neuraadapt/engage/internal/storage"
)

func TestSessionStoreUpsertKeepsStart(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	sessions := store.Sessions()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	record := storage.SessionRecord{
		ID:        "round-1",
		SessionID: "session-a",
		VideoName: "lecture.mp4",
		Status:    storage.StatusProcessing,
		StartedAt: started,
		UpdatedAt: started,
	}
	if err := sessions.UpsertSession(ctx, record); err != nil {
		t.Fatalf("upsert processing: %v", err)
	}

	record.Status = storage.StatusCompleted
	record.StartedAt = started.Add(time.Hour)
	record.UpdatedAt = started.Add(time.Minute)
	record.Summary = []byte(`{"avg_engagement":0.73}`)
	if err := sessions.UpsertSession(ctx, record); err != nil {
		t.Fatalf("upsert completed: %v", err)
	}

	got, err := sessions.GetSession(ctx, "round-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != storage.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("expected start %v to be kept, got %v", started, got.StartedAt)
	}
	if string(got.Summary) != `{"avg_engagement":0.73}` {
		t.Fatalf("unexpected summary %s", got.Summary)
	}

	list, err := sessions.ListRecentSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one indexed round, got %d", len(list))
	}
}

func TestSessionStoreListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		record := storage.SessionRecord{
			ID:        id,
			Status:    storage.StatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Sessions().UpsertSession(ctx, record); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	list, err := store.Sessions().ListRecentSessions(ctx, 2)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestSessionStoreDelete(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	record := storage.SessionRecord{ID: "gone", Status: storage.StatusFailed, StartedAt: time.Now()}
	if err := store.Sessions().UpsertSession(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := store.Sessions().DeleteSession(ctx, "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Sessions().DeleteSession(ctx, "gone"); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	if _, err := store.Sessions().GetSession(ctx, "gone"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, err := store.Sessions().ListRecentSessions(ctx, 0)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty history, got %d", len(list))
	}
}

func TestSessionStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	ctx := context.Background()
	record := storage.SessionRecord{ID: "kept", Status: storage.StatusCompleted, StartedAt: time.Now()}
	if err := store.Sessions().UpsertSession(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := store.Sessions().GetSession(ctx, "kept"); err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
}

func TestSessionStoreRequiresID(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	if err := store.Sessions().UpsertSession(context.Background(), storage.SessionRecord{}); err == nil {
		t.Fatal("expected error for record without id")
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "engage.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
