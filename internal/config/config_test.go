package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kontrol/internal/config"
	"kontrol/internal/schema"
	_ "kontrol/internal/storage/all"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, path, resolved)

	assert.Equal(t, "plavka.xlsx", cfg.Source.Path)
	assert.Equal(t, "xlsx", cfg.Source.Kind)
	assert.Equal(t, "control.xlsx", cfg.Store.Path)
	assert.Equal(t, "xlsx", cfg.Store.Kind)
	assert.Equal(t, schema.Layout, cfg.Store.DateLayout)
	assert.Equal(t, "/25", cfg.Source.EligibilityMarker)
	assert.Empty(t, cfg.Roster.Controllers)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout.Std())
	assert.Equal(t, "none", cfg.Metrics.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	roster := writeFile(t, dir, "controllers.txt", "# shift B\nУлитина\n\nСмирнова\n")
	path := writeFile(t, dir, "kontrol.toml", `
[source]
path = "registry.csv"
eligibility_marker = " /26 "

[store]
path = "log.db"
table = "inspections"

[roster]
controllers = ["Рябова", "Елхова", "Рябова", " "]
file = "`+filepath.ToSlash(roster)+`"

[http]
timeout = "5s"
max_retries = 0

[logging]
level = "DEBUG"
format = "JSON"

[metrics]
backend = "Pushgateway"
url = "http://pushgateway:9091"
`)

	cfg, resolved, exists, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)

	assert.Equal(t, "csv", cfg.Source.Kind)
	assert.Equal(t, "/26", cfg.Source.EligibilityMarker)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "inspections", cfg.Store.Table)
	assert.Equal(t, []string{"Елхова", "Рябова", "Смирнова", "Улитина"}, cfg.Roster.Controllers)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout.Std())
	assert.Equal(t, 0, cfg.HTTP.MaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "pushgateway", cfg.Metrics.Backend)

	sc := cfg.StoreStorage()
	assert.Equal(t, "sqlite", sc.Kind)
	assert.Equal(t, "log.db", sc.DSN)
	assert.Equal(t, "inspections", sc.Table)
	assert.Equal(t, 5*time.Second, sc.HTTP.Timeout)

	assert.Empty(t, config.ValidateConfig(*cfg))
}

func TestLoad_PostgresDSNIsNotTreatedAsPath(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "kontrol.toml", `
[store]
path = "postgres://qc:secret@db/kontrol?sslmode=disable"
`)
	cfg, _, _, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Kind)
	assert.Equal(t, "postgres://qc:secret@db/kontrol?sslmode=disable", cfg.Store.Path)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: "[store]\nfile = \"x.xlsx\"\n"},
		{name: "bad duration", body: "[http]\ntimeout = \"soon\"\n"},
		{name: "syntax", body: "[store\npath = 1\n"},
		{name: "missing roster file", body: "[roster]\nfile = \"/does/not/exist.txt\"\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, t.TempDir(), "kontrol.toml", tt.body)
			_, _, _, err := config.Load(context.Background(), path)
			require.Error(t, err)
		})
	}
}

func TestCreateSample(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "conf", "kontrol.toml")
	require.NoError(t, config.CreateSample(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.SampleConfig(), string(raw))

	var decoded config.Config
	require.NoError(t, toml.Unmarshal(raw, &decoded))

	cfg, _, exists, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{"Елхова", "Лабуткина", "Рябова", "Улитина"}, cfg.Roster.Controllers)
	assert.Empty(t, config.ValidateConfig(*cfg))

	// Never overwrite an operator's file.
	require.Error(t, config.CreateSample(path))
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	t.Parallel()

	in := struct {
		D config.Duration `toml:"d"`
	}{D: config.Duration(1500 * time.Millisecond)}
	b, err := toml.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `d = '1.5s'`)
}
