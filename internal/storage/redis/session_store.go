package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/neuraadapt/engage/internal/storage"
	"github.com/redis/go-redis/v9"
)

const roundIndexKey = "engage:rounds"

var upsertRound = redis.NewScript(upsertRoundScript)

type sessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// UpsertSession creates or updates an analysis round
func (s *sessionStore) UpsertSession(ctx context.Context, record storage.SessionRecord) error {
	if record.ID == "" {
		return fmt.Errorf("session record has no id")
	}

	keys := []string{roundKey(record.ID), roundIndexKey}
	args := []interface{}{
		record.ID,
		record.SessionID,
		record.ServiceSessionID,
		record.VideoName,
		record.VideoType,
		record.VideoSize,
		string(record.Status),
		record.ErrorKind,
		record.ErrorMessage,
		string(record.Summary),
		record.StartedAt.Format(time.RFC3339Nano),
		record.UpdatedAt.Format(time.RFC3339Nano),
		record.StartedAt.UnixMilli(),
		int64(s.ttl.Seconds()),
	}

	return upsertRound.Run(ctx, s.client, keys, args...).Err()
}

// GetSession retrieves a round by ID
func (s *sessionStore) GetSession(ctx context.Context, id string) (*storage.SessionRecord, error) {
	data, err := s.client.HGetAll(ctx, roundKey(id)).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return parseSessionRecord(data)
}

// ListRecentSessions returns rounds newest first. Index entries whose
// round has expired are pruned on the way.
func (s *sessionStore) ListRecentSessions(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	limit = storage.NormalizeLimit(limit)

	ids, err := s.client.ZRevRange(ctx, roundIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.SessionRecord{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, roundKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	records := make([]storage.SessionRecord, 0, len(ids))
	var expired []interface{}
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			expired = append(expired, ids[i])
			continue
		}

		record, err := parseSessionRecord(data)
		if err == nil {
			records = append(records, *record)
		}
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, roundIndexKey, expired...).Err(); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// DeleteSession removes a round by ID
func (s *sessionStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, roundKey(id)).Err(); err != nil {
		return err
	}
	return s.client.ZRem(ctx, roundIndexKey, id).Err()
}
