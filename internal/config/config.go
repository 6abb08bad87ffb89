package config

import (
	"fmt"
	"os"

	"go-fastq-summary/internal/model"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix scopes every variable, e.g. SUMMARY_THREADS
const envPrefix = "SUMMARY"

// Config holds all application configuration.
type Config struct {
	Run    RunConfig
	Server ServerConfig
	Log    LogConfig
}

// RunConfig holds the defaults applied to every summary run.
type RunConfig struct {
	Threads    int      `envconfig:"THREADS" default:"4"`
	QueueSize  int      `envconfig:"QUEUE_SIZE" default:"1000"`
	ChunkReads int      `envconfig:"CHUNK_READS" default:"1000"`
	Fields     []string `envconfig:"FIELDS"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Addr      string `envconfig:"ADDR" default:":8080"`
	DB        string `envconfig:"DB" default:"summary.db"`
	OutputDir string `envconfig:"OUTPUT_DIR" default:"outputs"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Verbosity int `envconfig:"VERBOSITY" default:"0"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	// sections share one flat namespace
	for _, section := range []interface{}{&cfg.Run, &cfg.Server, &cfg.Log} {
		if err := envconfig.Process(envPrefix, section); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Threads:    4,
			QueueSize:  1000,
			ChunkReads: 1000,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			DB:        "summary.db",
			OutputDir: "outputs",
		},
	}
}

// Apply fills the zero fields of spec from the configured defaults.
func (c *Config) Apply(spec model.RunSpec) model.RunSpec {
	if spec.Threads == 0 {
		spec.Threads = c.Run.Threads
	}
	if spec.QueueSize == 0 {
		spec.QueueSize = c.Run.QueueSize
	}
	if spec.ChunkReads == 0 {
		spec.ChunkReads = c.Run.ChunkReads
	}
	if len(spec.Fields) == 0 && len(c.Run.Fields) > 0 {
		spec.Fields = append([]string(nil), c.Run.Fields...)
	}
	return spec
}

// LoadRunFile reads a YAML run description
func LoadRunFile(path string) (model.RunSpec, error) {
	var spec model.RunSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("failed to read run file: %w", err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("failed to parse run file %s: %w", path, err)
	}
	return spec, nil
}
