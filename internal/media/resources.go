package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/neuraadapt/engage/internal/metrics"
	"github.com/rs/zerolog"
)

// Resources owns every ephemeral resource of a session and releases each
// exactly once. Release of an unknown or already released resource is a no-op.
// After Close, acquisitions fail and late camera streams are closed on arrival.
type Resources struct {
	issuer  RefIssuer
	camera  Camera
	logger  zerolog.Logger
	refs    map[string]DisplayRef
	streams map[string]Stream
	closed  bool
	mu      sync.Mutex
}

// NewResources creates a manager. camera may be nil when no camera is configured.
func NewResources(issuer RefIssuer, camera Camera, logger zerolog.Logger) *Resources {
	return &Resources{
		issuer:  issuer,
		camera:  camera,
		logger:  logger.With().Str("component", "resources").Logger(),
		refs:    make(map[string]DisplayRef),
		streams: make(map[string]Stream),
	}
}

// HasCamera reports whether a camera platform is configured.
func (r *Resources) HasCamera() bool {
	return r.camera != nil
}

// AcquireDisplayRef issues a display reference for f and tracks it.
func (r *Resources) AcquireDisplayRef(f File) (DisplayRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return DisplayRef{}, ErrResourcesClosed
	}

	ref, err := r.issuer.Issue(f)
	if err != nil {
		return DisplayRef{}, fmt.Errorf("failed to issue display reference: %w", err)
	}
	r.refs[ref.ID] = ref
	metrics.ResourcesActive.WithLabelValues("display_ref").Inc()

	r.logger.Debug().
		Str("ref_id", ref.ID).
		Str("file", f.Name()).
		Msg("Display reference acquired")

	return ref, nil
}

// ReleaseDisplayRef revokes ref if it is still live.
func (r *Resources) ReleaseDisplayRef(ref DisplayRef) {
	if ref.IsZero() {
		return
	}

	r.mu.Lock()
	_, live := r.refs[ref.ID]
	delete(r.refs, ref.ID)
	r.mu.Unlock()

	if !live {
		return
	}

	r.issuer.Revoke(ref)
	metrics.ResourcesActive.WithLabelValues("display_ref").Dec()
	metrics.ResourcesReleasedTotal.WithLabelValues("display_ref").Inc()

	r.logger.Debug().Str("ref_id", ref.ID).Msg("Display reference released")
}

// AcquireCamera asks the camera platform for a stream. The platform call is
// made without holding the lock; a stream that arrives after Close is closed
// immediately and ErrResourcesClosed is returned.
func (r *Resources) AcquireCamera(ctx context.Context) (Stream, error) {
	if r.camera == nil {
		return nil, ErrCameraDisabled
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrResourcesClosed
	}

	stream, err := r.camera.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if cerr := stream.Close(); cerr != nil {
			r.logger.Warn().Err(cerr).Str("stream_id", stream.ID()).Msg("Failed to close late camera stream")
		}
		return nil, ErrResourcesClosed
	}
	r.streams[stream.ID()] = stream
	r.mu.Unlock()

	metrics.ResourcesActive.WithLabelValues("camera").Inc()
	r.logger.Debug().Str("stream_id", stream.ID()).Msg("Camera stream acquired")

	return stream, nil
}

// ReleaseCamera closes stream if it is still live.
func (r *Resources) ReleaseCamera(stream Stream) {
	if stream == nil {
		return
	}

	r.mu.Lock()
	_, live := r.streams[stream.ID()]
	delete(r.streams, stream.ID())
	r.mu.Unlock()

	if !live {
		return
	}

	if err := stream.Close(); err != nil {
		r.logger.Warn().Err(err).Str("stream_id", stream.ID()).Msg("Failed to close camera stream")
	}
	metrics.ResourcesActive.WithLabelValues("camera").Dec()
	metrics.ResourcesReleasedTotal.WithLabelValues("camera").Inc()

	r.logger.Debug().Str("stream_id", stream.ID()).Msg("Camera stream released")
}

// Live returns the number of live display references and camera streams.
func (r *Resources) Live() (refs, streams int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs), len(r.streams)
}

// Close releases everything still held and rejects further acquisitions.
// Calling Close more than once is a no-op.
func (r *Resources) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	refs := make([]DisplayRef, 0, len(r.refs))
	for _, ref := range r.refs {
		refs = append(refs, ref)
	}
	streams := make([]Stream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.Unlock()

	for _, ref := range refs {
		r.ReleaseDisplayRef(ref)
	}
	for _, s := range streams {
		r.ReleaseCamera(s)
	}

	r.logger.Debug().
		Int("display_refs", len(refs)).
		Int("camera_streams", len(streams)).
		Msg("Session resources released")
}
