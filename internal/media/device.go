package media

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// DeviceCamera opens a capture device node such as /dev/video0. Opening the
// node is the permission check: EACCES, ENOENT and EBUSY all surface as errors.
type DeviceCamera struct {
	Path string
}

// Acquire opens the device. It returns early if ctx is already done.
func (c DeviceCamera) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(c.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}

	return &deviceStream{id: uuid.NewString(), file: f}, nil
}

type deviceStream struct {
	id   string
	file *os.File
	once sync.Once
	err  error
}

func (s *deviceStream) ID() string { return s.id }

func (s *deviceStream) Name() string { return s.file.Name() }

func (s *deviceStream) Close() error {
	s.once.Do(func() { s.err = s.file.Close() })
	return s.err
}
