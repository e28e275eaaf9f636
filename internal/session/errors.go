package session

import (
	"errors"

	"github.com/neuraadapt/engage/internal/analysis"
	"github.com/neuraadapt/engage/internal/media"
)

var (
	// ErrClosed is returned by operations on a torn-down session.
	ErrClosed = errors.New("session: closed")

	// ErrAnalysisInFlight is returned by Analyze while a request is outstanding.
	ErrAnalysisInFlight = errors.New("session: analysis already in progress")

	// ErrNotStarted is returned when the event loop is not running.
	ErrNotStarted = errors.New("session: not started")
)

// Kind classifies a session error.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindCameraAccessDenied
	KindManualPlaybackRequired
	KindNoAssetSelected
	KindServiceError
	KindTransportError
	KindResourceError
)

var kindNames = map[Kind]string{
	KindInvalidInput:           "invalid_input_kind",
	KindCameraAccessDenied:     "camera_access_denied",
	KindManualPlaybackRequired: "manual_playback_required",
	KindNoAssetSelected:        "no_asset_selected",
	KindServiceError:           "service_error",
	KindTransportError:         "transport_error",
	KindResourceError:          "resource_error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText lets Kind appear by name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is the single current error of a session. Recoverable errors can be
// cleared by retrying the same action; the others need different input.
type Error struct {
	Kind        Kind   `json:"kind"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	cause       error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// classify converts a component error into the session error slot value.
func classify(err error) *Error {
	if err == nil {
		return nil
	}

	var serr *analysis.ServiceError
	var terr *analysis.TransportError

	switch {
	case errors.Is(err, media.ErrInvalidInputKind):
		return &Error{Kind: KindInvalidInput, Message: "Please upload a video file", cause: err}
	case errors.Is(err, media.ErrCameraAccessDenied):
		return &Error{Kind: KindCameraAccessDenied, Message: "Please allow camera access to continue", Recoverable: true, cause: err}
	case errors.Is(err, media.ErrManualPlaybackRequired):
		return &Error{Kind: KindManualPlaybackRequired, Message: "Click the video to start playback", Recoverable: true, cause: err}
	case errors.Is(err, analysis.ErrNoAssetSelected):
		return &Error{Kind: KindNoAssetSelected, Message: "Select a video before analyzing", cause: err}
	case errors.As(err, &serr):
		return &Error{Kind: KindServiceError, Message: messageOr(serr.Message), Recoverable: true, cause: err}
	case errors.As(err, &terr):
		return &Error{Kind: KindTransportError, Message: messageOr(terr.Message), Recoverable: true, cause: err}
	default:
		return &Error{Kind: KindResourceError, Message: "Could not load the video", cause: err}
	}
}

func messageOr(msg string) string {
	if msg == "" {
		return analysis.GenericFailureMessage
	}
	return msg
}
