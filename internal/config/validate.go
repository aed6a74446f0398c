package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"kontrol/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "store.kind",
// "roster.controllers[2]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateConfig lints a normalised Config. It never mutates cfg; callers
// decide whether warnings are fatal.
func ValidateConfig(cfg Config) []Issue {
	var issues []Issue
	issues = append(issues, validateSource(cfg.Source)...)
	issues = append(issues, validateStore(cfg.Store)...)
	issues = append(issues, validateRoster(cfg.Roster)...)
	issues = append(issues, validateHTTP(cfg.HTTP)...)
	issues = append(issues, validateLogging(cfg.Logging)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

func validateKind(path, kind string) []Issue {
	known := storage.ListKinds()
	if kind == "" {
		return []Issue{errorf(path, "cannot infer storage kind; set it explicitly (one of %s)", strings.Join(known, ", "))}
	}
	if len(known) == 0 {
		// No backend linked into this binary; nothing to compare against.
		return nil
	}
	for _, k := range known {
		if k == kind {
			return nil
		}
	}
	return []Issue{errorf(path, "unknown storage kind %q (known: %s)", kind, strings.Join(known, ", "))}
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if s.Path == "" {
		issues = append(issues, errorf("source.path", "source.path must not be empty"))
	}
	issues = append(issues, validateKind("source.kind", s.Kind)...)
	if s.IDColumn == "" {
		issues = append(issues, errorf("source.id_column", "id_column must not be empty"))
	}
	if s.NameColumn == "" {
		issues = append(issues, errorf("source.name_column", "name_column must not be empty"))
	}
	if s.IDColumn != "" && s.IDColumn == s.NameColumn {
		issues = append(issues, warnf("source.name_column", "name_column equals id_column %q", s.IDColumn))
	}
	if s.EligibilityMarker == "" {
		issues = append(issues, warnf("source.eligibility_marker", "empty marker makes every registry batch eligible"))
	}
	return issues
}

func validateStore(s Store) []Issue {
	var issues []Issue
	if s.Path == "" {
		issues = append(issues, errorf("store.path", "store.path must not be empty"))
	}
	issues = append(issues, validateKind("store.kind", s.Kind)...)
	if strings.HasPrefix(strings.ToLower(s.Path), "http://") || strings.HasPrefix(strings.ToLower(s.Path), "https://") {
		issues = append(issues, errorf("store.path", "the inspection log must be writable; remote URLs are read-only"))
	}
	if err := checkLayout(s.DateLayout); err != nil {
		issues = append(issues, errorf("store.date_layout", "%v", err))
	}
	return issues
}

// checkLayout requires the layout to carry a full date that survives a
// format/parse round trip.
func checkLayout(layout string) error {
	probe := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	got, err := time.Parse(layout, probe.Format(layout))
	if err != nil {
		return fmt.Errorf("layout %q does not parse its own output: %w", layout, err)
	}
	if !got.Equal(probe) {
		return fmt.Errorf("layout %q loses part of the date (got %s)", layout, got.Format("2006-01-02"))
	}
	return nil
}

func validateRoster(r Roster) []Issue {
	if len(r.Controllers) == 0 {
		return []Issue{warnf("roster.controllers", "roster is empty; any controller name will be accepted")}
	}
	return nil
}

func validateHTTP(h HTTP) []Issue {
	var issues []Issue
	if h.Timeout < 0 {
		issues = append(issues, errorf("http.timeout", "timeout must not be negative"))
	}
	if h.MaxRetries < 0 {
		issues = append(issues, errorf("http.max_retries", "max_retries must not be negative"))
	}
	if h.MaxBackoff > 0 && h.InitialBackoff > h.MaxBackoff {
		issues = append(issues, warnf("http.initial_backoff", "initial_backoff %s exceeds max_backoff %s", h.InitialBackoff.Std(), h.MaxBackoff.Std()))
	}
	if h.InsecureSkipVerify {
		issues = append(issues, warnf("http.insecure_skip_verify", "TLS certificate verification is disabled"))
	}
	return issues
}

func validateLogging(l Logging) []Issue {
	var issues []Issue
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		issues = append(issues, errorf("logging.level", "unknown level %q", l.Level))
	}
	switch l.Format {
	case "console", "json":
	default:
		issues = append(issues, errorf("logging.format", "format must be console or json, got %q", l.Format))
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "none":
	case "pushgateway":
		if m.URL == "" {
			issues = append(issues, errorf("metrics.url", "pushgateway backend requires url"))
		} else if u, err := url.Parse(m.URL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, errorf("metrics.url", "invalid pushgateway url %q", m.URL))
		}
	case "datadog":
		if m.Addr == "" {
			issues = append(issues, errorf("metrics.addr", "datadog backend requires addr"))
		}
	default:
		issues = append(issues, errorf("metrics.backend", "unknown metrics backend %q (none, pushgateway, datadog)", m.Backend))
	}
	return issues
}
