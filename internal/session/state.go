package session

import (
	"time"

	"github.com/neuraadapt/engage/internal/report"
)

// State is the position of a session in its workflow.
type State int

const (
	StateIdle State = iota
	StateFileAccepted
	StateCameraGranted
	StateCameraDenied
	StateReady
	StateAnalyzing
	StateAnalyzed
	StateAnalysisFailed
	StateClosed
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateFileAccepted:   "file_accepted",
	StateCameraGranted:  "camera_granted",
	StateCameraDenied:   "camera_denied",
	StateReady:          "ready",
	StateAnalyzing:      "analyzing",
	StateAnalyzed:       "analyzed",
	StateAnalysisFailed: "analysis_failed",
	StateClosed:         "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText lets State appear by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Settled reports whether the session is waiting for user input.
func (s State) Settled() bool {
	switch s {
	case StateIdle, StateReady, StateAnalyzed, StateAnalysisFailed, StateClosed:
		return true
	default:
		return false
	}
}

// VideoInfo describes the accepted video.
type VideoInfo struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
}

// CameraStatus describes the self-monitoring camera.
type CameraStatus struct {
	Pending  bool   `json:"pending"`
	Granted  bool   `json:"granted"`
	Denied   bool   `json:"denied"`
	StreamID string `json:"stream_id,omitempty"`
}

// Snapshot is an immutable view of a session handed to the rendering layer.
type Snapshot struct {
	ID         string         `json:"id"`
	Generation uint64         `json:"generation"`
	State      State          `json:"state"`
	Err        *Error         `json:"error,omitempty"`
	Video      *VideoInfo     `json:"video,omitempty"`
	Camera     CameraStatus   `json:"camera"`
	Result     *report.Result `json:"result,omitempty"`
	At         time.Time      `json:"at"`
}
