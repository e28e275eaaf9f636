package media

import "errors"

var (
	// ErrInvalidInputKind is returned when a file does not declare a video media type.
	ErrInvalidInputKind = errors.New("media: not a video file")

	// ErrCameraAccessDenied is returned when the camera cannot be acquired.
	ErrCameraAccessDenied = errors.New("media: camera access denied")

	// ErrCameraDisabled is returned when no camera is configured.
	ErrCameraDisabled = errors.New("media: camera disabled")

	// ErrManualPlaybackRequired is returned when autoplay is not possible.
	ErrManualPlaybackRequired = errors.New("media: manual playback required")

	// ErrResourcesClosed is returned when acquiring from a torn-down session.
	ErrResourcesClosed = errors.New("media: resources closed")
)
