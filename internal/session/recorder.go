package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/neuraadapt/engage/internal/report"
	"github.com/neuraadapt/engage/internal/storage"
	"github.com/rs/zerolog"
)

const (
	recordQueueSize = 32
	recordTimeout   = 5 * time.Second
)

// recorder writes analysis rounds to the history store off the event loop.
type recorder struct {
	store  storage.SessionStore
	queue  chan storage.SessionRecord
	done   chan struct{}
	logger zerolog.Logger
}

func newRecorder(store storage.SessionStore, logger zerolog.Logger) *recorder {
	r := &recorder{
		store:  store,
		queue:  make(chan storage.SessionRecord, recordQueueSize),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "session-recorder").Logger(),
	}
	go r.run()
	return r
}

func (r *recorder) run() {
	defer close(r.done)

	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		err := r.store.UpsertSession(ctx, rec)
		cancel()

		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("round_id", rec.ID).
				Str("status", string(rec.Status)).
				Msg("Failed to record analysis round")
			continue
		}
		r.logger.Debug().
			Str("round_id", rec.ID).
			Str("status", string(rec.Status)).
			Msg("Analysis round recorded")
	}
}

func (r *recorder) record(rec storage.SessionRecord) {
	if r == nil {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.logger.Warn().Str("round_id", rec.ID).Msg("Record queue full, dropping round update")
	}
}

// stop flushes queued records and waits for the worker to exit.
func (r *recorder) stop() {
	if r == nil {
		return
	}
	close(r.queue)
	<-r.done
}

func (m *Machine) beginRound() {
	if m.recorder == nil {
		return
	}
	now := time.Now().UTC()
	m.round = &storage.SessionRecord{
		ID:        uuid.NewString(),
		SessionID: m.id,
		VideoName: m.asset.File.Name(),
		VideoType: m.asset.File.MediaType(),
		VideoSize: m.asset.File.Size(),
		Status:    storage.StatusProcessing,
		StartedAt: now,
		UpdatedAt: now,
	}
	m.recorder.record(*m.round)
}

// finishRound records the outcome of the current round. The error, if any,
// is taken from the session error slot.
func (m *Machine) finishRound(status storage.Status, res *report.Result) {
	if m.round == nil {
		return
	}
	rec := *m.round
	m.round = nil

	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	if status == storage.StatusFailed && m.err != nil {
		rec.ErrorKind = m.err.Kind.String()
		rec.ErrorMessage = m.err.Message
	}
	if res != nil {
		rec.ServiceSessionID = res.SessionID
		if summary, err := json.Marshal(res.Summary); err == nil {
			rec.Summary = summary
		}
	}
	m.recorder.record(rec)
}
