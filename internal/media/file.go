package media

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// extra video extensions that mime's built-in table does not know on every platform
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".ogv":  "video/ogg",
	".3gp":  "video/3gpp",
}

// LocalFile is a file on disk.
type LocalFile struct {
	path      string
	mediaType string
	size      int64
}

// OpenFile stats path and declares its media type from the extension.
func OpenFile(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &LocalFile{
		path:      path,
		mediaType: DeclaredType(path),
		size:      info.Size(),
	}, nil
}

// DeclaredType returns the media type implied by the file name, or
// application/octet-stream when unknown.
func DeclaredType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := videoExtensions[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
		return t
	}
	return "application/octet-stream"
}

func (f *LocalFile) Name() string      { return filepath.Base(f.path) }
func (f *LocalFile) Path() string      { return f.path }
func (f *LocalFile) MediaType() string { return f.mediaType }
func (f *LocalFile) Size() int64       { return f.size }

// Open returns an *os.File, which also satisfies io.ReadSeeker.
func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// BytesFile is an in-memory file.
type BytesFile struct {
	name      string
	mediaType string
	data      []byte
}

// NewBytesFile wraps data as a File with an explicit declared type.
func NewBytesFile(name, mediaType string, data []byte) *BytesFile {
	return &BytesFile{name: name, mediaType: mediaType, data: data}
}

func (f *BytesFile) Name() string      { return f.name }
func (f *BytesFile) MediaType() string { return f.mediaType }
func (f *BytesFile) Size() int64       { return int64(len(f.data)) }

func (f *BytesFile) Open() (io.ReadCloser, error) {
	return readSeekNopCloser{bytes.NewReader(f.data)}, nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// IsVideo reports whether the declared media type is a video kind.
func IsVideo(f File) bool {
	if f == nil {
		return false
	}
	mt := strings.ToLower(strings.TrimSpace(f.MediaType()))
	return strings.HasPrefix(mt, "video/")
}
