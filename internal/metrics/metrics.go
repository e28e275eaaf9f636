package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Analysis request metrics
	AnalysisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_analysis_requests_total",
			Help: "Total analysis uploads by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engage_analysis_duration_seconds",
			Help:    "Analysis round trip duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engage_upload_bytes_total",
			Help: "Total video bytes written to analysis uploads",
		},
	)

	// Camera metrics
	CameraRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_camera_requests_total",
			Help: "Camera acquisition attempts by result",
		},
		[]string{"result"},
	)

	// Resource metrics
	ResourcesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engage_resources_active",
			Help: "Number of live session resources",
		},
		[]string{"kind"},
	)

	ResourcesReleasedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_resources_released_total",
			Help: "Total resources released",
		},
		[]string{"kind"},
	)

	// Session metrics
	SessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_session_transitions_total",
			Help: "Session state transitions by target state",
		},
		[]string{"state"},
	)

	SessionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_session_errors_total",
			Help: "Session errors by kind",
		},
		[]string{"kind"},
	)

	StaleCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_stale_completions_total",
			Help: "Asynchronous completions discarded because a newer file superseded them",
		},
		[]string{"operation"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		AnalysisRequestsTotal,
		AnalysisDuration,
		UploadBytesTotal,
		CameraRequestsTotal,
		ResourcesActive,
		ResourcesReleasedTotal,
		SessionTransitionsTotal,
		SessionErrorsTotal,
		StaleCompletionsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start binds the listener and serves in the background. Binding happens
// synchronously so address errors surface to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an already bound listener.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting metrics server")
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
