// Package config is the TOML configuration of kontrol: where the batch
// registry and the inspection log live, the controller roster, logging and
// metrics. Values are layered over Default, normalised, then linted by
// ValidateConfig.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"kontrol/internal/datasource/httpds"
	"kontrol/internal/storage"
)

//go:embed sample_config.toml
var sampleConfig string

// Config is the decoded configuration file.
type Config struct {
	Source  Source  `toml:"source"`
	Store   Store   `toml:"store"`
	Roster  Roster  `toml:"roster"`
	HTTP    HTTP    `toml:"http"`
	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`
}

// Source locates the batch registry (read-only).
type Source struct {
	Kind              string `toml:"kind"`
	Path              string `toml:"path"`
	Sheet             string `toml:"sheet"`
	IDColumn          string `toml:"id_column"`
	NameColumn        string `toml:"name_column"`
	EligibilityMarker string `toml:"eligibility_marker"`
}

// Store locates the inspection log.
type Store struct {
	Kind  string `toml:"kind"`
	Path  string `toml:"path"`
	Table string `toml:"table"`
	// DateLayout is a Go time layout, e.g. "02.01.2006".
	DateLayout string `toml:"date_layout"`
}

// Roster is the list of controllers allowed to sign a record. Names from
// Controllers and from File (one per line, # comments) are merged.
type Roster struct {
	Controllers []string `toml:"controllers"`
	File        string   `toml:"file"`
}

// HTTP configures fetching a registry published at an http(s) URL.
type HTTP struct {
	Timeout            Duration `toml:"timeout"`
	MaxRetries         int      `toml:"max_retries"`
	InitialBackoff     Duration `toml:"initial_backoff"`
	MaxBackoff         Duration `toml:"max_backoff"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Metrics selects a metrics backend: "none", "pushgateway" or "datadog".
type Metrics struct {
	Backend   string   `toml:"backend"`
	URL       string   `toml:"url"`
	Addr      string   `toml:"addr"`
	Job       string   `toml:"job"`
	Instance  string   `toml:"instance"`
	Namespace string   `toml:"namespace"`
	Tags      []string `toml:"tags"`
}

// Duration is a time.Duration written as a string ("30s", "250ms").
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads the configuration at path over Default. An empty path looks
// for ./kontrol.toml, then ~/.config/kontrol/config.toml. A missing file is
// not an error: the defaults are used. Load returns the resolved path and
// whether a file was read.
func Load(ctx context.Context, path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(ctx); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	candidates := []string{"kontrol.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "kontrol", "config.toml"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true, nil
		}
	}
	return candidates[0], false, nil
}

// expandPath resolves a leading "~". Other paths are returned cleaned but
// relative, as the registry and log usually sit next to the working
// directory.
func expandPath(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, p[1:])
	}
	return filepath.Clean(p), nil
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string { return sampleConfig }

// CreateSample writes the sample configuration to path. An existing file is
// not overwritten.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}

// HTTPConfig converts the [http] section for storage backends.
func (c *Config) HTTPConfig() httpds.Config {
	return httpds.Config{
		Timeout:            c.HTTP.Timeout.Std(),
		MaxRetries:         c.HTTP.MaxRetries,
		InitialBackoff:     c.HTTP.InitialBackoff.Std(),
		MaxBackoff:         c.HTTP.MaxBackoff.Std(),
		InsecureSkipVerify: c.HTTP.InsecureSkipVerify,
	}
}

// SourceStorage is the storage configuration of the batch registry.
func (c *Config) SourceStorage() storage.Config {
	return storage.Config{Kind: c.Source.Kind, DSN: c.Source.Path, Table: c.Source.Sheet, HTTP: c.HTTPConfig()}
}

// StoreStorage is the storage configuration of the inspection log.
func (c *Config) StoreStorage() storage.Config {
	return storage.Config{Kind: c.Store.Kind, DSN: c.Store.Path, Table: c.Store.Table, HTTP: c.HTTPConfig()}
}
