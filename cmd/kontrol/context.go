package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kontrol/internal/catalogue"
	"kontrol/internal/config"
	"kontrol/internal/inspection"
	"kontrol/internal/metrics"
	"kontrol/internal/recordstore"
	"kontrol/internal/storage"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	config     *config.Config
	configPath string
	configRead bool
	logger     *zap.Logger

	closers []func()
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{configFlag: configFlag, verbose: verbose, logger: zap.NewNop()}
}

// init loads the configuration and builds the logger and metrics backend.
func (c *commandContext) init() error {
	path := ""
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, resolved, exists, err := config.Load(context.Background(), path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.config, c.configPath, c.configRead = cfg, resolved, exists

	logger, err := newLogger(cfg.Logging, c.verbose != nil && *c.verbose)
	if err != nil {
		return err
	}
	c.logger = logger

	backend, err := newMetricsBackend(cfg.Metrics)
	if err != nil {
		return err
	}
	if backend != nil {
		metrics.SetBackend(backend)
		c.closers = append(c.closers, func() {
			if err := metrics.Flush(); err != nil {
				c.logger.Warn("metrics flush failed", zap.Error(err))
			}
		})
	}
	return nil
}

func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
	_ = c.logger.Sync()
}

// openSession wires a Session from the configuration. The repositories are
// released in close.
func (c *commandContext) openSession(ctx context.Context) (*inspection.Session, error) {
	cfg := c.config
	src, err := storage.New(ctx, cfg.SourceStorage())
	if err != nil {
		return nil, fmt.Errorf("batch registry: %w", err)
	}
	c.closers = append(c.closers, src.Close)

	logRepo, err := storage.New(ctx, cfg.StoreStorage())
	if err != nil {
		return nil, fmt.Errorf("inspection log: %w", err)
	}
	c.closers = append(c.closers, logRepo.Close)

	store := recordstore.New(logRepo,
		recordstore.WithLogger(c.logger.Named("recordstore")),
		recordstore.WithDateLayout(cfg.Store.DateLayout),
	)
	return inspection.New(inspection.Options{
		Source:  src,
		Columns: catalogue.Columns{ID: cfg.Source.IDColumn, Name: cfg.Source.NameColumn},
		Marker:  cfg.Source.EligibilityMarker,
		Store:   store,
		Roster:  cfg.Roster.Controllers,
		Logger:  c.logger.Named("session"),
	}), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
