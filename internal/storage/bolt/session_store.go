package bolt

import (
	"context"
	"fmt"

	"github.com/neuraadapt/engage/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

// UpsertSession creates or updates a round. The first write's start time is
// kept so the index entry never moves.
func (s *sessionStore) UpsertSession(ctx context.Context, record storage.SessionRecord) error {
	if record.ID == "" {
		return fmt.Errorf("session record has no id")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rounds := tx.Bucket([]byte(bucketRounds))
		idx, err := startedIndex(tx)
		if err != nil {
			return err
		}

		if existing := rounds.Get([]byte(record.ID)); existing != nil {
			var prev storage.SessionRecord
			if err := unmarshal(existing, &prev); err != nil {
				return err
			}
			record.StartedAt = prev.StartedAt
		} else if err := idx.Put(startedKey(record), []byte(record.ID)); err != nil {
			return err
		}

		data, err := marshal(record)
		if err != nil {
			return err
		}
		return rounds.Put([]byte(record.ID), data)
	})
}

// GetSession retrieves a round by ID
func (s *sessionStore) GetSession(ctx context.Context, id string) (*storage.SessionRecord, error) {
	var record *storage.SessionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		value := tx.Bucket([]byte(bucketRounds)).Get([]byte(id))
		if value == nil {
			return storage.ErrNotFound
		}
		var result storage.SessionRecord
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		record = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecentSessions walks the start-time index backwards.
func (s *sessionStore) ListRecentSessions(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	limit = storage.NormalizeLimit(limit)
	records := make([]storage.SessionRecord, 0)

	return records, s.db.View(func(tx *bbolt.Tx) error {
		rounds := tx.Bucket([]byte(bucketRounds))
		idx, err := startedIndex(tx)
		if err != nil {
			return err
		}

		c := idx.Cursor()
		for k, id := c.Last(); k != nil && len(records) < limit; k, id = c.Prev() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			value := rounds.Get(id)
			if value == nil {
				continue
			}
			var record storage.SessionRecord
			if err := unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
}

// DeleteSession removes a round and its index entry. Deleting an unknown
// round is a no-op.
func (s *sessionStore) DeleteSession(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rounds := tx.Bucket([]byte(bucketRounds))
		value := rounds.Get([]byte(id))
		if value == nil {
			return nil
		}

		var record storage.SessionRecord
		if err := unmarshal(value, &record); err != nil {
			return err
		}
		idx, err := startedIndex(tx)
		if err != nil {
			return err
		}
		if err := idx.Delete(startedKey(record)); err != nil {
			return err
		}
		return rounds.Delete([]byte(id))
	})
}
