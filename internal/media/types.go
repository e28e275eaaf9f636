package media

import (
	"context"
	"io"
)

// File is a user-supplied video candidate. MediaType is the declared type
// (what the picker or file extension claims), not a sniffed one.
type File interface {
	Name() string
	MediaType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// DisplayRef is a locally resolvable reference to a file, valid until revoked.
type DisplayRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// IsZero reports whether the reference was never issued.
func (r DisplayRef) IsZero() bool {
	return r.ID == ""
}

// Stream is a live capture handle.
type Stream interface {
	ID() string
	Close() error
}

// VideoAsset is the accepted video and its display reference.
type VideoAsset struct {
	File File
	Ref  DisplayRef
}

// CameraSession is the self-monitoring camera bound to the preview.
type CameraSession struct {
	Stream  Stream
	Granted bool
}

// Camera acquires live capture streams. Acquire may block while the user
// or the device decides; it must honour ctx.
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

// RefIssuer creates and revokes display references.
type RefIssuer interface {
	Issue(f File) (DisplayRef, error)
	Revoke(ref DisplayRef)
}

// Player is the main playback surface.
type Player interface {
	Load(ref DisplayRef)
	Play(ctx context.Context) error
	Pause() error
}

// Preview is the surface showing the live camera stream. A nil stream unbinds it.
type Preview interface {
	Bind(stream Stream)
}
