package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/activitygraph/config"
	"github.com/c360studio/activitygraph/export"
	"github.com/c360studio/activitygraph/graph"
	"github.com/c360studio/activitygraph/metrics"
	"github.com/c360studio/activitygraph/ontology"
	"github.com/c360studio/activitygraph/pipeline"
	"github.com/c360studio/activitygraph/storage"
	"github.com/c360studio/activitygraph/tracing"
)

// shutdownTimeout bounds the flush of spans and metrics at exit.
const shutdownTimeout = 5 * time.Second

// app wires one configured pipeline and the services around it.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracing   *tracing.Provider
	publisher *graph.NATSPublisher
	pipeline  *pipeline.Pipeline
}

func runLoad(cmd *cobra.Command, opts *options) error {
	a, err := newApp(cmd, opts, true)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	res, err := a.pipeline.Run(cmd.Context())
	if err != nil {
		return err
	}
	a.logger.Info("Load complete",
		"run_id", res.RunID,
		"statements", res.Statements,
		"ontology_statements", res.OntologyStatements,
		"duration", res.Duration)
	return nil
}

// resolveConfig loads configuration files and environment, then applies
// the flags the user set.
func resolveConfig(cmd *cobra.Command, opts *options, logger *slog.Logger) (*config.Config, error) {
	loader := config.NewLoader(logger)

	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = loader.LoadExplicit(opts.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("input", &cfg.Input, opts.input)
	set("output", &cfg.Output.Path, opts.output)
	set("format", &cfg.Output.Format, opts.format)
	set("endpoint", &cfg.Store.Endpoint, opts.endpoint)
	set("repository", &cfg.Store.Repository, opts.repository)
	set("ontology", &cfg.Ontology.Path, opts.ontology)
	set("nats-url", &cfg.NATS.URL, opts.natsURL)
	set("push-url", &cfg.Metrics.PushURL, opts.pushURL)
	set("log-level", &cfg.Log.Level, opts.logLevel)
	if flags.Changed("trace") {
		cfg.Tracing.Enabled = opts.trace
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp builds the pipeline. withStore also prepares the store client and
// the load notification publisher.
func newApp(cmd *cobra.Command, opts *options, withStore bool) (*app, error) {
	// Config is read before the level is known, so its own diagnostics go
	// to a warn-level logger.
	bootLogger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := resolveConfig(cmd, opts, bootLogger)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	format := export.FormatForPath(cfg.Output.Path)
	if cfg.Output.Format != "" {
		if format, err = export.ParseFormat(cfg.Output.Format); err != nil {
			return nil, err
		}
	}

	tp, err := tracing.Setup(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Version: Version,
		Writer:  cmd.ErrOrStderr(),
	}, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		tracing: tp,
	}

	loader := ontology.NewLoader(logger)
	loader.Path = cfg.Ontology.Path
	loader.BaseIRI = cfg.Ontology.BaseIRI

	var echo io.Writer
	if !opts.quiet {
		echo = cmd.OutOrStdout()
	}

	popts := pipeline.Options{
		Input:      cfg.Input,
		OutputPath: cfg.Output.Path,
		Format:     format,
		Repository: cfg.Store.Repository,
		Ontology:   loader,
		Echo:       echo,
		Metrics:    a.metrics,
		Tracer:     tp.Tracer(),
		Logger:     logger,
	}

	var connector pipeline.Connector
	if withStore {
		repo, err := storage.NewRepository(cfg.Store.Endpoint, cfg.Store.Repository, storage.Options{
			Timeout:  cfg.Store.Timeout,
			Observer: a.metrics,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		connector = pipeline.Repository(repo)

		if cfg.NATS.URL != "" {
			pub, err := graph.ConnectNATS(cfg.NATS.URL, cfg.NATS.Subject)
			if err != nil {
				logger.Warn("Load notifications disabled", "url", cfg.NATS.URL, "error", err)
			} else {
				a.publisher = pub
				popts.Publisher = pub
				logger.Debug("Load notifications enabled", "subject", pub.Subject())
			}
		}
	}

	a.pipeline = pipeline.New(connector, popts)

	logger.Debug("activitygraph configured",
		"version", Version,
		"input", cfg.Input,
		"output", cfg.Output.Path,
		"format", string(format),
		"endpoint", cfg.Store.Endpoint,
		"repository", cfg.Store.Repository)
	return a, nil
}

// close flushes spans, pushes metrics and closes the NATS connection.
func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if a.publisher != nil {
		a.publisher.Close()
	}
	if err := a.metrics.Push(ctx, a.cfg.Metrics.PushURL, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn("Failed to push metrics", "url", a.cfg.Metrics.PushURL, "error", err)
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to flush spans", "error", err)
	}
}
