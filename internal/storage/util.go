package storage

import "os"

const (
	// DefaultListLimit is used when a caller asks for a non-positive limit.
	DefaultListLimit = 20

	// MaxListLimit caps history listings.
	MaxListLimit = 500
)

// NormalizeLimit clamps limit into [1, MaxListLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
