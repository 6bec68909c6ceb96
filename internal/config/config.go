// Package config loads and validates the sitebuild configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuild/internal/retry"
)

// Config is the root configuration for a sitebuild run.
type Config struct {
	// SourceRoot is the checkout root containing frontend sources, sample
	// sources and page content.
	SourceRoot string `yaml:"source_root"`

	// OutputRoot is where the assembled site tree is written.
	OutputRoot string `yaml:"output_root"`

	// StagingRoot holds packed artifacts and other intermediate state.
	StagingRoot string `yaml:"staging_root"`

	Remote      RemoteConfig      `yaml:"remote"`
	Frontend    FrontendConfig    `yaml:"frontend"`
	Samples     SamplesConfig     `yaml:"samples"`
	Pages       PagesConfig       `yaml:"pages"`
	Importers   []ImporterConfig  `yaml:"importers"`
	ImportRetry ImportRetryConfig `yaml:"import_retry"`
	History     HistoryConfig     `yaml:"history"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// RemoteConfig describes the remote blob store used to exchange artifacts
// between isolated CI jobs.
type RemoteConfig struct {
	// Root is the fixed prefix under which all artifact keys are derived.
	Root string `yaml:"root"`

	// NATSURL is the JetStream server address. Empty means artifacts stay on
	// local disk (the filesystem blob store under StagingRoot).
	NATSURL string `yaml:"nats_url"`

	// Bucket is the JetStream object store bucket name.
	Bucket string `yaml:"bucket"`
}

// FrontendConfig describes the frontend asset build inputs.
type FrontendConfig struct {
	// StylesCommand is the external style compiler invocation (argv form).
	StylesCommand []string `yaml:"styles_command"`

	// StylesDir is passed to the compiler as its working directory.
	StylesDir string `yaml:"styles_dir"`

	TemplatesDir string `yaml:"templates_dir"`
	IconsDir     string `yaml:"icons_dir"`

	// StaticsDir is the tree routed through the static collector. Directories
	// named "*.zip" inside it are bundled into archives.
	StaticsDir string `yaml:"statics_dir"`
}

// SamplesConfig describes the generated-samples build.
type SamplesConfig struct {
	Command []string `yaml:"command"`
	Dir     string   `yaml:"dir"`
}

// PagesConfig describes the external static-site renderer.
type PagesConfig struct {
	RendererCommand []string `yaml:"renderer_command"`
}

// ImporterConfig describes one remote-document importer.
type ImporterConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Dest string `yaml:"dest"`
}

// ImportRetryConfig tunes the backoff applied to transient importer
// transport failures. Unset fields keep the built-in defaults.
type ImportRetryConfig struct {
	Backoff    string `yaml:"backoff"` // fixed|linear|exponential
	Initial    string `yaml:"initial"` // e.g. "500ms"
	Max        string `yaml:"max"`     // delay growth cap, e.g. "10s"
	MaxRetries *int   `yaml:"max_retries"`
}

// Policy converts the raw fields into a retry policy. Validate has already
// rejected unparseable durations, so parse failures here mean "unset".
func (c ImportRetryConfig) Policy() retry.Policy {
	initial, _ := time.ParseDuration(c.Initial)
	maxDelay, _ := time.ParseDuration(c.Max)
	maxRetries := -1
	if c.MaxRetries != nil {
		maxRetries = *c.MaxRetries
	}
	return retry.NewPolicy(retry.BackoffMode(c.Backoff), initial, maxDelay, maxRetries)
}

// HistoryConfig controls the local build-run ledger.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables the ledger.
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint served in watch mode.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads, defaults and validates a configuration file. A .env/.env.local
// overlay is applied first so config values resolved from the environment
// (BUILD_NUMBER and friends) are available to callers.
func Load(path string) (*Config, error) {
	loadEnvOverlay()

	data, err := os.ReadFile(path) // #nosec G304 - path comes from the CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvOverlay loads .env then .env.local without overriding variables
// already present in the process environment.
func loadEnvOverlay() {
	for _, p := range []string{".env", ".env.local"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.SourceRoot == "" {
		c.SourceRoot = "."
	}
	if c.OutputRoot == "" {
		c.OutputRoot = "./site"
	}
	if c.StagingRoot == "" {
		c.StagingRoot = "./.sitebuild"
	}
	if c.Remote.Root == "" {
		c.Remote.Root = "sitebuild/artifacts"
	}
	if c.Remote.Bucket == "" {
		c.Remote.Bucket = "sitebuild-artifacts"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9464"
	}
}

// Validate checks invariants that would otherwise fail deep inside a stage.
func (c *Config) Validate() error {
	for i, imp := range c.Importers {
		if imp.Name == "" {
			return fmt.Errorf("importers[%d]: name is required", i)
		}
		if imp.URL == "" {
			return fmt.Errorf("importer %s: url is required", imp.Name)
		}
		if imp.Dest == "" {
			return fmt.Errorf("importer %s: dest is required", imp.Name)
		}
	}
	for field, value := range map[string]string{
		"import_retry.initial": c.ImportRetry.Initial,
		"import_retry.max":     c.ImportRetry.Max,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", field, value)
		}
	}
	return nil
}
