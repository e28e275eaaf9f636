package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the outcome of an analysis round.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusAbandoned  Status = "abandoned"
)

// ParseStatus normalizes s to a known status.
func ParseStatus(s string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(s)))
	switch normalized {
	case StatusProcessing, StatusCompleted, StatusFailed, StatusAbandoned:
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid status: %s (must be processing, completed, failed or abandoned)", s)
	}
}

// UnmarshalJSON implements json.Unmarshaler to normalize status to lowercase.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Terminal reports whether no further updates are expected for the round.
func (s Status) Terminal() bool {
	return s != StatusProcessing
}

// SessionRecord is one analysis round: a video upload and its outcome.
type SessionRecord struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	ServiceSessionID string          `json:"service_session_id,omitempty"`
	VideoName        string          `json:"video_name"`
	VideoType        string          `json:"video_type"`
	VideoSize        int64           `json:"video_size"`
	Status           Status          `json:"status"`
	ErrorKind        string          `json:"error_kind,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Summary          json.RawMessage `json:"summary,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
