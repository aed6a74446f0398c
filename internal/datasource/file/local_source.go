// Package file implements the local filesystem data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. A canceled context short-circuits before
// the filesystem is touched. Errors wrap the os error, so
// errors.Is(err, os.ErrNotExist) works for callers that treat a missing
// file as "nothing yet".
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
