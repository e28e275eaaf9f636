package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/neuraadapt/engage/internal/metrics"
	"github.com/rs/zerolog"
)

// Intake validates incoming files and wires them to the playback and
// preview surfaces through Resources.
type Intake struct {
	resources *Resources
	player    Player
	preview   Preview
	autoplay  bool
	logger    zerolog.Logger
}

// IntakeConfig holds the collaborators of an Intake.
type IntakeConfig struct {
	Resources *Resources
	Player    Player
	Preview   Preview
	Autoplay  bool
}

// NewIntake creates an intake controller.
func NewIntake(cfg IntakeConfig, logger zerolog.Logger) *Intake {
	return &Intake{
		resources: cfg.Resources,
		player:    cfg.Player,
		preview:   cfg.Preview,
		autoplay:  cfg.Autoplay,
		logger:    logger.With().Str("component", "intake").Logger(),
	}
}

// Resources returns the lifecycle manager the intake acquires through.
func (in *Intake) Resources() *Resources {
	return in.resources
}

// Validate rejects files that do not declare a video media type.
func (in *Intake) Validate(f File) error {
	if !IsVideo(f) {
		if f != nil {
			in.logger.Debug().
				Str("file", f.Name()).
				Str("media_type", f.MediaType()).
				Msg("Rejected non-video file")
		}
		return ErrInvalidInputKind
	}
	return nil
}

// Accept validates f, releases the previously held asset, then acquires a
// display reference for f and loads it into the player. On error the
// previous asset is still released.
func (in *Intake) Accept(f File, previous *VideoAsset) (*VideoAsset, error) {
	if err := in.Validate(f); err != nil {
		return nil, err
	}

	if previous != nil {
		in.resources.ReleaseDisplayRef(previous.Ref)
	}

	ref, err := in.resources.AcquireDisplayRef(f)
	if err != nil {
		return nil, err
	}

	if in.player != nil {
		in.player.Load(ref)
	}

	in.logger.Info().
		Str("file", f.Name()).
		Str("media_type", f.MediaType()).
		Int64("size", f.Size()).
		Str("url", ref.URL).
		Msg("Video accepted")

	return &VideoAsset{File: f, Ref: ref}, nil
}

// RequestCamera makes one best-effort acquisition. Any platform failure is
// reported as ErrCameraAccessDenied; the stream is not bound yet, see BindPreview.
func (in *Intake) RequestCamera(ctx context.Context) (*CameraSession, error) {
	stream, err := in.resources.AcquireCamera(ctx)
	if err != nil {
		if errors.Is(err, ErrCameraDisabled) || errors.Is(err, ErrResourcesClosed) {
			metrics.CameraRequestsTotal.WithLabelValues("skipped").Inc()
			return nil, err
		}
		metrics.CameraRequestsTotal.WithLabelValues("denied").Inc()
		in.logger.Warn().Err(err).Msg("Camera acquisition failed")
		return nil, fmt.Errorf("%w: %v", ErrCameraAccessDenied, err)
	}

	metrics.CameraRequestsTotal.WithLabelValues("granted").Inc()
	return &CameraSession{Stream: stream, Granted: true}, nil
}

// BindPreview shows the camera stream on the preview surface.
func (in *Intake) BindPreview(cam *CameraSession) {
	if in.preview == nil || cam == nil {
		return
	}
	in.preview.Bind(cam.Stream)
}

// Autoplay tries to start playback of whatever the player has loaded.
func (in *Intake) Autoplay(ctx context.Context) error {
	if !in.autoplay || in.player == nil {
		return ErrManualPlaybackRequired
	}
	if err := in.player.Play(ctx); err != nil {
		in.logger.Debug().Err(err).Msg("Autoplay blocked")
		return fmt.Errorf("%w: %v", ErrManualPlaybackRequired, err)
	}
	return nil
}

// Teardown detaches both surfaces. Resources are released by the owner.
func (in *Intake) Teardown() {
	if in.player != nil {
		if err := in.player.Pause(); err != nil {
			in.logger.Warn().Err(err).Msg("Failed to pause player")
		}
		in.player.Load(DisplayRef{})
	}
	if in.preview != nil {
		in.preview.Bind(nil)
	}
}
