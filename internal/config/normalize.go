package config

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"kontrol/internal/datasource"
	"kontrol/internal/datasource/file"
	"kontrol/internal/schema"
	"kontrol/internal/storage"
)

func (c *Config) normalize(ctx context.Context) error {
	if err := c.normalizeSource(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	if err := c.normalizeRoster(ctx); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeMetrics()
	return nil
}

func (c *Config) normalizeSource() error {
	s := &c.Source
	s.Path = strings.TrimSpace(s.Path)
	s.Sheet = strings.TrimSpace(s.Sheet)
	s.IDColumn = schema.Canonical(s.IDColumn)
	s.NameColumn = schema.Canonical(s.NameColumn)
	s.EligibilityMarker = schema.Canonical(s.EligibilityMarker)
	if !datasource.IsRemote(s.Path) {
		p, err := expandPath(s.Path)
		if err != nil {
			return fmt.Errorf("source.path: %w", err)
		}
		s.Path = p
	}
	s.Kind = normalizeKind(s.Kind, s.Path)
	return nil
}

func (c *Config) normalizeStore() error {
	s := &c.Store
	s.Path = strings.TrimSpace(s.Path)
	s.Table = strings.TrimSpace(s.Table)
	s.DateLayout = strings.TrimSpace(s.DateLayout)
	if s.DateLayout == "" {
		s.DateLayout = schema.Layout
	}
	if storage.KindFromDSN(s.Path) != "postgres" && !strings.HasPrefix(strings.ToLower(s.Path), "file:") && !datasource.IsRemote(s.Path) {
		p, err := expandPath(s.Path)
		if err != nil {
			return fmt.Errorf("store.path: %w", err)
		}
		s.Path = p
	}
	s.Kind = normalizeKind(s.Kind, s.Path)
	return nil
}

func normalizeKind(kind, path string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = storage.KindFromDSN(path)
	}
	return kind
}

// normalizeRoster merges the inline controllers with the roster file,
// trims, de-duplicates and sorts ascending.
func (c *Config) normalizeRoster(ctx context.Context) error {
	names := append([]string(nil), c.Roster.Controllers...)

	c.Roster.File = strings.TrimSpace(c.Roster.File)
	if c.Roster.File != "" {
		p, err := expandPath(c.Roster.File)
		if err != nil {
			return fmt.Errorf("roster.file: %w", err)
		}
		c.Roster.File = p
		fromFile, err := file.ReadList(ctx, file.NewLocal(p))
		if err != nil {
			return fmt.Errorf("roster.file: %w", err)
		}
		names = append(names, fromFile...)
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = schema.Canonical(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	c.Roster.Controllers = out
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeMetrics() {
	m := &c.Metrics
	m.Backend = strings.ToLower(strings.TrimSpace(m.Backend))
	if m.Backend == "" {
		m.Backend = "none"
	}
	m.URL = strings.TrimSpace(m.URL)
	m.Addr = strings.TrimSpace(m.Addr)
	m.Job = strings.TrimSpace(m.Job)
	m.Instance = strings.TrimSpace(m.Instance)
}
