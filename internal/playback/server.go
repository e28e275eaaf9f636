package playback

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/neuraadapt/engage/internal/media"
	"github.com/rs/zerolog"
)

// Config holds playback server settings
type Config struct {
	BindAddress string
	Port        int
}

// Server serves accepted video files over loopback HTTP so a player can
// resolve them without a network round trip. It implements media.RefIssuer:
// each issued reference is a random token, and revoking it makes the URL 404.
type Server struct {
	config   Config
	server   *http.Server
	listener net.Listener
	files    map[string]media.File
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewServer creates a new playback server
func NewServer(config Config, logger zerolog.Logger) *Server {
	s := &Server{
		config: config,
		files:  make(map[string]media.File),
		logger: logger.With().Str("component", "playback").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/media/{token}", s.handleMedia).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.Use(loggingMiddleware(s.logger))

	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an already bound listener, such as a socket-activated one.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting playback server")
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Playback server error")
		}
	}()
	return nil
}

// Stop stops the playback server and forgets every issued reference
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping playback server")

	s.mu.Lock()
	s.files = make(map[string]media.File)
	s.mu.Unlock()

	return s.server.Close()
}

// BaseURL returns the root URL of the running server
func (s *Server) BaseURL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Issue registers f and returns its reference
func (s *Server) Issue(f media.File) (media.DisplayRef, error) {
	if s.listener == nil {
		return media.DisplayRef{}, fmt.Errorf("playback server not started")
	}

	token := uuid.NewString()

	s.mu.Lock()
	s.files[token] = f
	s.mu.Unlock()

	return media.DisplayRef{
		ID:  token,
		URL: s.BaseURL() + "/media/" + token,
	}, nil
}

// Revoke forgets ref; later requests for it return 404
func (s *Server) Revoke(ref media.DisplayRef) {
	s.mu.Lock()
	delete(s.files, ref.ID)
	s.mu.Unlock()
}

// Len returns the number of live references
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	s.mu.RLock()
	f, ok := s.files[token]
	s.mu.RUnlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	rc, err := f.Open()
	if err != nil {
		s.logger.Error().Err(err).Str("file", f.Name()).Msg("Failed to open video")
		http.Error(w, "failed to open video", http.StatusInternalServerError)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", f.MediaType())

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, f.Name(), time.Time{}, rs)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(f.Size(), 10))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug().Err(err).Str("file", f.Name()).Msg("Video stream interrupted")
	}
}
