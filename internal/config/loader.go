package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	units "github.com/docker/go-units"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"lmhost/pkg/types"
)

// Defaults applied by WithDefaults when the corresponding field is unset.
const (
	DefaultAddr          = ":8080"
	DefaultModelsDir     = "~/models/llm"
	DefaultInputQuota    = 6144
	DefaultStreamBuffer  = 16
	DefaultMaxQueueDepth = 32
	DefaultMaxWait       = "30s"
	DefaultMaxBody       = "1MiB"
	DefaultLogLevel      = "info"
	DefaultBackend       = "echo"
	DefaultLlamaCtx      = 2048
)

// DefaultSampling mirrors the bounds exposed by browser hosts of the API.
var DefaultSampling = types.SamplingParams{
	DefaultTopK:        3,
	MaxTopK:            128,
	DefaultTemperature: 1.0,
	MaxTemperature:     2.0,
}

// CORS is the opt-in cross-origin configuration.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr          string               `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir     string               `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel  string               `json:"default_model" yaml:"default_model" toml:"default_model"`
	Models        []types.Model        `json:"models" yaml:"models" toml:"models"`
	Sampling      types.SamplingParams `json:"sampling" yaml:"sampling" toml:"sampling"`
	InputQuota    int                  `json:"input_quota" yaml:"input_quota" toml:"input_quota"`
	StreamBuffer  int                  `json:"stream_buffer" yaml:"stream_buffer" toml:"stream_buffer"`
	MaxQueueDepth int                  `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait       string               `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	MaxBody       string               `json:"max_body" yaml:"max_body" toml:"max_body"`
	InferTimeout  string               `json:"infer_timeout" yaml:"infer_timeout" toml:"infer_timeout"`
	LogLevel      string               `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORS          CORS                 `json:"cors" yaml:"cors" toml:"cors"`
	Swagger       bool                 `json:"swagger" yaml:"swagger" toml:"swagger"`
	Backend       string               `json:"backend" yaml:"backend" toml:"backend"`
	LlamaCtx      int                  `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads  int                  `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.Sampling == (types.SamplingParams{}) {
		c.Sampling = DefaultSampling
	}
	if c.InputQuota <= 0 {
		c.InputQuota = DefaultInputQuota
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = DefaultStreamBuffer
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWait == "" {
		c.MaxWait = DefaultMaxWait
	}
	if c.MaxBody == "" {
		c.MaxBody = DefaultMaxBody
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.LlamaCtx <= 0 {
		c.LlamaCtx = DefaultLlamaCtx
	}
	return c
}

// Validate checks values that cannot be fixed by defaults.
func (c Config) Validate() error {
	if err := c.Sampling.Validate(); err != nil {
		return fmt.Errorf("sampling: %w", err)
	}
	if _, err := c.MaxWaitDuration(); err != nil {
		return err
	}
	if _, err := c.InferTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.MaxBodyBytes(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Backend {
	case "echo", "llama":
	default:
		return fmt.Errorf("unknown backend %q (want echo or llama)", c.Backend)
	}
	return nil
}

// MaxWaitDuration parses max_wait.
func (c Config) MaxWaitDuration() (time.Duration, error) {
	return parseDuration("max_wait", c.MaxWait)
}

// InferTimeoutDuration parses infer_timeout; empty means no timeout.
func (c Config) InferTimeoutDuration() (time.Duration, error) {
	return parseDuration("infer_timeout", c.InferTimeout)
}

// MaxBodyBytes parses max_body as a human size (e.g. "1MiB", "512k").
func (c Config) MaxBodyBytes() (int64, error) {
	if c.MaxBody == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(c.MaxBody)
	if err != nil {
		return 0, fmt.Errorf("max_body: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("max_body must be positive")
	}
	return n, nil
}

// Level parses log_level into a zerolog level.
func (c Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
