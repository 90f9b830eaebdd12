//go:build !unix

package binary

import "errors"

// Platforms without mmap support fall back to an error; callers can use
// Open instead.
func mapFile(path string) ([]byte, func() error, error) {
	return nil, nil, errors.New("memory-mapped reading is not supported on this platform")
}
