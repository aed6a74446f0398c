// Package datasource resolves a configured location (a path on disk or an
// http(s) URL) into a readable byte source.
package datasource

import (
	"context"
	"io"
	"strings"

	"kontrol/internal/datasource/file"
	"kontrol/internal/datasource/httpds"
)

// Source opens a stream of bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// IsRemote reports whether loc is an http(s) URL.
func IsRemote(loc string) bool {
	l := strings.ToLower(strings.TrimSpace(loc))
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// For returns the Source behind loc. Remote locations are fetched with a
// retrying client built from hc.
func For(loc string, hc httpds.Config) Source {
	if IsRemote(loc) {
		return httpds.NewSource(httpds.NewClient(hc), loc)
	}
	return file.NewLocal(loc)
}
