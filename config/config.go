// Package config provides configuration loading and management for activitygraph.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config represents the complete activitygraph configuration
type Config struct {
	// Input is the observations JSON document to convert
	Input    string         `yaml:"input" validate:"required"`
	Output   OutputConfig   `yaml:"output"`
	Store    StoreConfig    `yaml:"store"`
	Ontology OntologyConfig `yaml:"ontology"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
}

// OutputConfig configures the local graph file
type OutputConfig struct {
	// Path is where the serialized graph is written
	Path string `yaml:"path" validate:"required"`
	// Format is turtle or ntriples (empty = infer from the path extension)
	Format string `yaml:"format" validate:"omitempty,oneof=turtle ttl ntriples nt n-triples"`
}

// StoreConfig configures the remote graph store
type StoreConfig struct {
	// Endpoint is the RDF4J/GraphDB server URL (default: http://localhost:7200)
	Endpoint string `yaml:"endpoint" validate:"required,url"`
	// Repository is the repository id on the server
	Repository string `yaml:"repository" validate:"required"`
	// Timeout bounds each store request
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// OntologyConfig configures the vocabulary loaded ahead of the data
type OntologyConfig struct {
	// Path overrides the bundled ontology (empty = bundled)
	Path string `yaml:"path"`
	// BaseIRI resolves relative IRIs in the ontology file
	BaseIRI string `yaml:"base_iri" validate:"required"`
}

// NATSConfig configures the load notification
type NATSConfig struct {
	// URL is the NATS server URL (empty = no notification)
	URL string `yaml:"url" validate:"omitempty,url"`
	// Subject receives one message per committed load
	Subject string `yaml:"subject"`
}

// MetricsConfig configures the Pushgateway push at the end of a run
type MetricsConfig struct {
	// PushURL is the Pushgateway URL (empty = do not push)
	PushURL string `yaml:"push_url" validate:"omitempty,url"`
	Job     string `yaml:"job"`
}

// TracingConfig configures span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Input: "example_observations.json",
		Output: OutputConfig{
			Path:   "Activity_Statements.owl",
			Format: "", // Infer from extension
		},
		Store: StoreConfig{
			Endpoint:   "http://localhost:7200",
			Repository: "activity",
			Timeout:    30 * time.Second,
		},
		Ontology: OntologyConfig{
			Path:    "", // Bundled
			BaseIRI: "urn:base",
		},
		NATS: NATSConfig{
			URL:     "",
			Subject: "activity.graph.loaded",
		},
		Metrics: MetricsConfig{
			Job: "activitygraph",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fieldPath(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Input == c.Output.Path {
		return fmt.Errorf("output.path must differ from input")
	}
	return nil
}

// fieldPath turns "Config.Store.Endpoint" into "store.endpoint".
func fieldPath(ns string) string {
	ns = strings.TrimPrefix(ns, "Config.")
	return strings.ToLower(ns)
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Input != "" {
		c.Input = other.Input
	}

	// Output
	if other.Output.Path != "" {
		c.Output.Path = other.Output.Path
	}
	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}

	// Store
	if other.Store.Endpoint != "" {
		c.Store.Endpoint = other.Store.Endpoint
	}
	if other.Store.Repository != "" {
		c.Store.Repository = other.Store.Repository
	}
	if other.Store.Timeout != 0 {
		c.Store.Timeout = other.Store.Timeout
	}

	// Ontology
	if other.Ontology.Path != "" {
		c.Ontology.Path = other.Ontology.Path
	}
	if other.Ontology.BaseIRI != "" {
		c.Ontology.BaseIRI = other.Ontology.BaseIRI
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}

	// Metrics
	if other.Metrics.PushURL != "" {
		c.Metrics.PushURL = other.Metrics.PushURL
	}
	if other.Metrics.Job != "" {
		c.Metrics.Job = other.Metrics.Job
	}

	if other.Tracing.Enabled {
		c.Tracing.Enabled = true
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
