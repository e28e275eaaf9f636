package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/neuraadapt/engage/internal/storage"
)

// parseSessionRecord converts a Redis hash to SessionRecord
func parseSessionRecord(data map[string]string) (*storage.SessionRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	startedAt, err := time.Parse(time.RFC3339Nano, data["started_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	size, err := strconv.ParseInt(data["video_size"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse video_size: %w", err)
	}

	status, err := storage.ParseStatus(data["status"])
	if err != nil {
		return nil, err
	}

	var summary json.RawMessage
	if s := data["summary"]; s != "" {
		summary = json.RawMessage(s)
	}

	return &storage.SessionRecord{
		ID:               data["id"],
		SessionID:        data["session_id"],
		ServiceSessionID: data["service_session_id"],
		VideoName:        data["video_name"],
		VideoType:        data["video_type"],
		VideoSize:        size,
		Status:           status,
		ErrorKind:        data["error_kind"],
		ErrorMessage:     data["error_message"],
		Summary:          summary,
		StartedAt:        startedAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func roundKey(id string) string {
	return fmt.Sprintf("engage:round:%s", id)
}
