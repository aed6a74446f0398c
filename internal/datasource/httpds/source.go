package httpds

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
)

// Source is a read-only remote file.
type Source struct {
	client *Client
	url    string
}

// NewSource binds a client to url.
func NewSource(c *Client, url string) *Source { return &Source{client: c, url: url} }

// URL returns the bound address.
func (s *Source) URL() string { return s.url }

// Open downloads the file and returns its body. 404 and 410 wrap
// fs.ErrNotExist so a missing remote file reads the same as a missing local
// one.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: status %d: %w", s.url, resp.StatusCode, fs.ErrNotExist)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %d", s.url, resp.StatusCode)
	}
	return resp.Body, nil
}
