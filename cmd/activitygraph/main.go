// Package main provides the activitygraph binary entry point.
// activitygraph converts smart-home activity observations into an RDF graph,
// writes it to disk and loads it, together with its ontology, into an
// RDF4J-compatible graph store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/activitygraph/config"
	"github.com/c360studio/activitygraph/export"
	"github.com/c360studio/activitygraph/ontology"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "activitygraph"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the persistent command-line flags.
type options struct {
	configPath string
	input      string
	output     string
	format     string
	endpoint   string
	repository string
	ontology   string
	natsURL    string
	pushURL    string
	logLevel   string
	trace      bool
	quiet      bool
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Convert activity observations to RDF and load them into a graph store",
		Long: `activitygraph reads a JSON document of smart-home activities and their
observations, converts it into RDF statements and:

- writes the graph to a local file (Turtle or N-Triples)
- clears the target repository, then loads the bundled ontology and the
  graph in a single transaction

The repository is expected to speak the RDF4J HTTP protocol (GraphDB,
RDF4J Server).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML); skips user and project config")
	f.StringVarP(&opts.input, "input", "i", "", "Observations JSON document")
	f.StringVarP(&opts.output, "output", "o", "", "Output graph file")
	f.StringVar(&opts.format, "format", "", "Output format ("+joinFormats()+"); default from extension")
	f.StringVar(&opts.endpoint, "endpoint", "", "Graph store server URL")
	f.StringVar(&opts.repository, "repository", "", "Graph store repository id")
	f.StringVar(&opts.ontology, "ontology", "", "Ontology file overriding the bundled one")
	f.StringVar(&opts.natsURL, "nats-url", "", "NATS server URL for load notifications")
	f.StringVar(&opts.pushURL, "push-url", "", "Prometheus Pushgateway URL")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.BoolVar(&opts.trace, "trace", false, "Export pipeline spans to stderr")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not echo statements to stdout")

	cmd.AddCommand(buildCmd(opts))
	cmd.AddCommand(watchCmd(opts))
	cmd.AddCommand(ontologyCmd(opts))
	cmd.AddCommand(configCmd(opts))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func buildCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build and write the graph file without contacting the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			res, err := a.pipeline.Build(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("Build complete",
				"statements", res.Statements,
				"output", res.OutputPath,
				"duration", res.Duration)
			return nil
		},
	}
}

func watchCmd(opts *options) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load once, then reload whenever the input file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			a.logger.Info("Watching input", "path", a.cfg.Input)
			if err := a.pipeline.Watch(cmd.Context(), debounce); err != nil {
				return err
			}
			a.logger.Info("Received shutdown signal")
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before reloading")
	return cmd
}

func ontologyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ontology",
		Short: "Print the ontology document and its statement count",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := ontology.NewLoader(nil)
			loader.Path = opts.ontology
			data, n, err := loader.Parse()
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d statements\n", n)
			return nil
		},
	}
}

func configCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts, nil)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default user config if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.NewLoader(nil).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	return cmd
}

func joinFormats() string {
	return strings.Join(export.FormatNames(), ", ")
}
