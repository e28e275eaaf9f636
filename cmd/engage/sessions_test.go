package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/neuraadapt/engage/internal/session"
	"github.com/neuraadapt/engage/internal/storage"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *storage.SessionRecord {
	return &storage.SessionRecord{
		ID:               "round-1",
		SessionID:        "sess-1",
		ServiceSessionID: "svc-7",
		VideoName:        "lecture.mp4",
		VideoType:        "video/mp4",
		VideoSize:        2048,
		Status:           storage.StatusCompleted,
		Summary:          json.RawMessage(`{"avg_engagement":0.73,"confusion_events":4}`),
		StartedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC),
	}
}

func TestPrintRecords(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	printRecords(&out, nil)
	require.Equal(t, "No analysis rounds recorded.\n", out.String())

	failed := *sampleRecord()
	failed.ID = "round-2"
	failed.VideoName = "seminar.webm"
	failed.Status = storage.StatusFailed
	failed.ServiceSessionID = ""
	failed.ErrorMessage = "unsupported codec"

	out.Reset()
	printRecords(&out, []storage.SessionRecord{failed, *sampleRecord()})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, []string{"ID", "VIDEO", "STATUS", "STARTED", "DETAIL"}, strings.Fields(lines[0]))
	require.Contains(t, lines[1], "round-2")
	require.Contains(t, lines[1], "seminar.webm")
	require.Contains(t, lines[1], "failed")
	require.True(t, strings.HasSuffix(lines[1], "unsupported codec"))
	require.Contains(t, lines[2], "completed")
	require.True(t, strings.HasSuffix(lines[2], "svc-7"))
}

func TestWriteRecord(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeRecord(&out, sampleRecord(), "json"))

	var decoded storage.SessionRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, "round-1", decoded.ID)
	require.JSONEq(t, `{"avg_engagement":0.73,"confusion_events":4}`, string(decoded.Summary))

	out.Reset()
	require.NoError(t, writeRecord(&out, sampleRecord(), "yaml"))
	require.Contains(t, out.String(), "id: round-1\n")
	require.Contains(t, out.String(), "status: completed\n")
	require.Contains(t, out.String(), "summary:\n  avg_engagement: 0.73\n  confusion_events: 4\n")

	out.Reset()
	err := writeRecord(&out, sampleRecord(), "toml")
	require.EqualError(t, err, "unsupported format: toml (json or yaml)")
	require.Empty(t, out.String())
}

func TestSessionFailure(t *testing.T) {
	cause := errors.New("status 415")

	err := sessionFailure(session.Snapshot{Err: &session.Error{
		Kind:    session.KindServiceError,
		Message: "unsupported codec",
	}}, cause)
	require.ErrorIs(t, err, cause)
	require.True(t, strings.HasPrefix(err.Error(), session.KindServiceError.String()+": "))

	require.Same(t, cause, sessionFailure(session.Snapshot{}, cause))
}
