package config

import (
	"time"

	"kontrol/internal/catalogue"
	"kontrol/internal/schema"
)

const (
	defaultSourcePath = "plavka.xlsx"
	defaultStorePath  = "control.xlsx"
	defaultLogLevel   = "info"
	defaultLogFormat  = "console"
)

// Default returns the configuration used when no file is present: the
// registry plavka.xlsx and the log control.xlsx in the working directory,
// and an empty roster (any controller name is accepted).
func Default() Config {
	return Config{
		Source: Source{
			Path:              defaultSourcePath,
			IDColumn:          catalogue.DefaultIDColumn,
			NameColumn:        catalogue.DefaultNameColumn,
			EligibilityMarker: catalogue.DefaultMarker,
		},
		Store: Store{
			Path:       defaultStorePath,
			DateLayout: schema.Layout,
		},
		HTTP: HTTP{
			Timeout:        Duration(30 * time.Second),
			MaxRetries:     2,
			InitialBackoff: Duration(200 * time.Millisecond),
			MaxBackoff:     Duration(5 * time.Second),
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Metrics: Metrics{
			Backend: "none",
			Job:     "kontrol",
		},
	}
}
