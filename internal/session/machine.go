package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/neuraadapt/engage/internal/analysis"
	"github.com/neuraadapt/engage/internal/media"
	"github.com/neuraadapt/engage/internal/metrics"
	"github.com/neuraadapt/engage/internal/report"
	"github.com/neuraadapt/engage/internal/storage"
	"github.com/rs/zerolog"
)

// Analyzer submits an accepted video for analysis.
type Analyzer interface {
	Submit(ctx context.Context, asset *media.VideoAsset) (*report.Result, error)
}

// Config holds the collaborators of a Machine. Sessions and OnChange are
// optional. OnChange runs on the event loop and must not call back into
// the Machine other than Snapshot.
type Config struct {
	Intake   *media.Intake
	Analyzer Analyzer
	Sessions storage.SessionStore
	OnChange func(Snapshot)
}

// Machine coordinates one analysis session. A single event loop goroutine
// owns all session state; public methods hand requests to it and async
// work reports back through completion events tagged with a generation.
type Machine struct {
	id        string
	intake    *media.Intake
	resources *media.Resources
	analyzer  Analyzer
	recorder  *recorder
	onChange  func(Snapshot)
	logger    zerolog.Logger

	requests  chan request
	events    chan any
	done      chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	current Snapshot
	changed chan struct{}

	// owned by the event loop
	state          State
	gen            uint64
	err            *Error
	asset          *media.VideoAsset
	camera         *media.CameraSession
	cameraPending  bool
	cameraDenied   bool
	result         *report.Result
	analysisCancel context.CancelFunc
	round          *storage.SessionRecord
}

type op int

const (
	opAccept op = iota
	opAnalyze
	opClose
)

type request struct {
	op    op
	file  media.File
	reply chan error
}

type cameraDone struct {
	gen uint64
	cam *media.CameraSession
	err error
}

type autoplayDone struct {
	gen uint64
	err error
}

type analysisDone struct {
	gen uint64
	res *report.Result
	err error
}

// New creates a session in the Idle state. Call Start to run it.
func New(cfg Config, logger zerolog.Logger) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	m := &Machine{
		id:        id,
		intake:    cfg.Intake,
		resources: cfg.Intake.Resources(),
		analyzer:  cfg.Analyzer,
		onChange:  cfg.OnChange,
		logger:    logger.With().Str("component", "session").Str("session_id", id).Logger(),
		requests:  make(chan request),
		events:    make(chan any, 16),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		changed:   make(chan struct{}),
		state:     StateIdle,
	}
	if cfg.Sessions != nil {
		m.recorder = newRecorder(cfg.Sessions, m.logger)
	}
	m.current = m.snapshot()

	return m
}

// ID returns the session identifier.
func (m *Machine) ID() string {
	return m.id
}

// Start runs the event loop. Calling Start more than once is a no-op.
func (m *Machine) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		m.logger.Debug().Msg("Session started")
		go m.run()
	})
}

// Accept offers a new video file. A non-video file is rejected without
// touching the current asset; a valid one replaces it and restarts the flow.
func (m *Machine) Accept(f media.File) error {
	return m.call(request{op: opAccept, file: f})
}

// Analyze uploads the current video. It returns ErrAnalysisInFlight while a
// request is outstanding and the classified error when no video is selected.
// The outcome arrives asynchronously; see Snapshot and Await.
func (m *Machine) Analyze() error {
	return m.call(request{op: opAnalyze})
}

// Close tears the session down, releasing every held resource. It is safe
// to call more than once.
func (m *Machine) Close() error {
	m.Start()
	req := request{op: opClose, reply: make(chan error, 1)}
	select {
	case m.requests <- req:
		return <-req.reply
	case <-m.done:
		return nil
	}
}

// Snapshot returns the most recently published view of the session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Await blocks until cond holds for a published snapshot, the session is
// closed, or ctx is done.
func (m *Machine) Await(ctx context.Context, cond func(Snapshot) bool) (Snapshot, error) {
	for {
		m.mu.Lock()
		snap, changed := m.current, m.changed
		m.mu.Unlock()

		if cond(snap) {
			return snap, nil
		}
		if snap.State == StateClosed {
			return snap, ErrClosed
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

func (m *Machine) call(req request) error {
	if !m.started.Load() {
		return ErrNotStarted
	}
	req.reply = make(chan error, 1)
	select {
	case m.requests <- req:
		return <-req.reply
	case <-m.done:
		return ErrClosed
	}
}

func (m *Machine) run() {
	defer close(m.done)

	for {
		select {
		case req := <-m.requests:
			switch req.op {
			case opAccept:
				req.reply <- m.accept(req.file)
			case opAnalyze:
				req.reply <- m.analyze()
			case opClose:
				m.shutdown()
				req.reply <- nil
				return
			}
		case ev := <-m.events:
			switch ev := ev.(type) {
			case cameraDone:
				m.onCamera(ev)
			case autoplayDone:
				m.onAutoplay(ev)
			case analysisDone:
				m.onAnalysis(ev)
			}
		}
	}
}

// post delivers a completion to the loop, or reports false once it is gone.
func (m *Machine) post(ev any) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Machine) accept(f media.File) error {
	asset, err := m.intake.Accept(f, m.asset)
	if errors.Is(err, media.ErrInvalidInputKind) {
		m.clearError()
		m.setError(err)
		m.publish()
		return err
	}

	m.gen++
	m.abandonAnalysis()
	m.clearError()
	m.result = nil

	if err != nil {
		// the previous asset was released before the failed acquisition
		m.asset = nil
		m.setError(err)
		m.transition(StateIdle)
		return err
	}

	m.asset = asset
	m.transition(StateFileAccepted)
	m.requestCamera()
	return nil
}

func (m *Machine) requestCamera() {
	switch {
	case m.camera != nil && m.camera.Granted:
		m.transition(StateCameraGranted)
		m.settle()
	case !m.resources.HasCamera():
		m.transition(StateCameraDenied)
		m.settle()
	default:
		m.cameraPending = true
		m.publish()

		gen := m.gen
		go func() {
			cam, err := m.intake.RequestCamera(m.ctx)
			if !m.post(cameraDone{gen: gen, cam: cam, err: err}) && cam != nil {
				m.resources.ReleaseCamera(cam.Stream)
			}
		}()
	}
}

// settle moves a transient camera state to Ready and tries autoplay.
func (m *Machine) settle() {
	m.transition(StateReady)
	m.startAutoplay()
}

func (m *Machine) startAutoplay() {
	gen := m.gen
	go func() {
		if err := m.intake.Autoplay(m.ctx); err != nil {
			m.post(autoplayDone{gen: gen, err: err})
		}
	}()
}

func (m *Machine) onCamera(ev cameraDone) {
	if ev.gen != m.gen {
		metrics.StaleCompletionsTotal.WithLabelValues("camera").Inc()
		m.logger.Debug().Uint64("generation", ev.gen).Msg("Discarding stale camera result")
		if ev.cam != nil {
			m.resources.ReleaseCamera(ev.cam.Stream)
		}
		return
	}

	m.cameraPending = false
	denied := ev.err != nil &&
		!errors.Is(ev.err, media.ErrCameraDisabled) &&
		!errors.Is(ev.err, media.ErrResourcesClosed)

	if m.state != StateFileAccepted {
		// analysis was triggered while the camera was pending: the state
		// stays put and a denial never displaces an outcome already shown
		if ev.cam != nil {
			m.adoptCamera(ev.cam)
		}
		m.cameraDenied = denied
		if denied && m.err == nil {
			m.setError(ev.err)
		}
		m.publish()
		m.startAutoplay()
		return
	}

	m.clearError()
	if ev.cam != nil {
		m.adoptCamera(ev.cam)
		m.transition(StateCameraGranted)
	} else {
		if denied {
			m.setError(ev.err)
		}
		m.cameraDenied = denied
		m.transition(StateCameraDenied)
	}
	m.settle()
}

func (m *Machine) adoptCamera(cam *media.CameraSession) {
	if m.camera != nil && m.camera.Stream != nil && m.camera.Stream != cam.Stream {
		m.resources.ReleaseCamera(m.camera.Stream)
	}
	m.camera = cam
	m.cameraDenied = false
	m.intake.BindPreview(cam)
}

func (m *Machine) onAutoplay(ev autoplayDone) {
	if ev.gen != m.gen {
		metrics.StaleCompletionsTotal.WithLabelValues("autoplay").Inc()
		return
	}
	if m.state == StateReady {
		m.clearError()
	} else if m.err != nil {
		// past Ready the slot belongs to the analysis outcome
		return
	}
	m.setError(ev.err)
	m.publish()
}

func (m *Machine) analyze() error {
	if m.state == StateAnalyzing {
		m.logger.Debug().Msg("Analysis already in progress, ignoring trigger")
		return ErrAnalysisInFlight
	}

	m.clearError()
	if m.asset == nil {
		m.setError(analysis.ErrNoAssetSelected)
		m.publish()
		return analysis.ErrNoAssetSelected
	}

	m.result = nil
	ctx, cancel := context.WithCancel(m.ctx)
	m.analysisCancel = cancel
	m.beginRound()
	m.transition(StateAnalyzing)

	gen, asset := m.gen, m.asset
	go func() {
		res, err := m.analyzer.Submit(ctx, asset)
		m.post(analysisDone{gen: gen, res: res, err: err})
	}()
	return nil
}

func (m *Machine) onAnalysis(ev analysisDone) {
	if ev.gen != m.gen || m.state != StateAnalyzing {
		metrics.StaleCompletionsTotal.WithLabelValues("analysis").Inc()
		m.logger.Debug().Uint64("generation", ev.gen).Msg("Discarding stale analysis result")
		return
	}

	m.analysisCancel()
	m.analysisCancel = nil
	m.clearError()

	if ev.err != nil {
		m.setError(ev.err)
		m.finishRound(storage.StatusFailed, nil)
		m.transition(StateAnalysisFailed)
		return
	}

	m.result = ev.res
	m.finishRound(storage.StatusCompleted, ev.res)
	m.transition(StateAnalyzed)
}

// abandonAnalysis cancels an outstanding request; its response will be
// discarded as stale.
func (m *Machine) abandonAnalysis() {
	if m.analysisCancel == nil {
		return
	}
	m.analysisCancel()
	m.analysisCancel = nil
	m.finishRound(storage.StatusAbandoned, nil)
	m.logger.Info().Msg("Outstanding analysis abandoned")
}

func (m *Machine) shutdown() {
	m.abandonAnalysis()
	m.cancel()
	m.intake.Teardown()
	m.resources.Close()

	m.asset = nil
	m.camera = nil
	m.cameraPending = false
	m.result = nil
	m.transition(StateClosed)

	m.recorder.stop()
	m.logger.Debug().Msg("Session closed")
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	metrics.SessionTransitionsTotal.WithLabelValues(to.String()).Inc()
	m.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Uint64("generation", m.gen).
		Msg("Session state changed")
	m.publish()
}

func (m *Machine) clearError() {
	m.err = nil
}

func (m *Machine) setError(err error) {
	m.err = classify(err)
	if m.err == nil {
		return
	}
	metrics.SessionErrorsTotal.WithLabelValues(m.err.Kind.String()).Inc()
	m.logger.Info().
		Err(err).
		Str("kind", m.err.Kind.String()).
		Bool("recoverable", m.err.Recoverable).
		Msg("Session error")
}

func (m *Machine) publish() {
	snap := m.snapshot()

	m.mu.Lock()
	m.current = snap
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(snap)
	}
}

func (m *Machine) snapshot() Snapshot {
	snap := Snapshot{
		ID:         m.id,
		Generation: m.gen,
		State:      m.state,
		Result:     m.result,
		At:         time.Now(),
		Camera: CameraStatus{
			Pending: m.cameraPending,
			Denied:  m.cameraDenied,
		},
	}
	if m.err != nil {
		e := *m.err
		snap.Err = &e
	}
	if m.asset != nil {
		snap.Video = &VideoInfo{
			Name:      m.asset.File.Name(),
			MediaType: m.asset.File.MediaType(),
			Size:      m.asset.File.Size(),
			URL:       m.asset.Ref.URL,
		}
	}
	if m.camera != nil && m.camera.Granted {
		snap.Camera.Granted = true
		if m.camera.Stream != nil {
			snap.Camera.StreamID = m.camera.Stream.ID()
		}
	}
	return snap
}
