package file

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Opener is satisfied by every datasource.Source.
type Opener interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ReadList reads one entry per line from src, skipping blank lines
// and '#' comments. A leading UTF-8 BOM is dropped, since roster files are
// often saved from spreadsheet tools. Order is preserved.
func ReadList(ctx context.Context, src Opener) ([]string, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []string
	scanner := bufio.NewScanner(rc)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
