// Package config provides YAML configuration loading for the autofin
// binaries.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML duration strings like "5m" or "300s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration shared by the API and worker
// binaries. Zero values fall back to the documented defaults.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	EventBus EventBusConfig `yaml:"event_bus"`
	Cache    CacheConfig    `yaml:"cache"`
	Engine   EngineConfig   `yaml:"engine"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// EventBusConfig selects the channel backing the event bus. Kafka brokers
// come from the KAFKA_BROKERS environment variable.
type EventBusConfig struct {
	Provider string `yaml:"provider"` // gochannel or kafka
}

// CacheConfig selects the preference cache. An empty URL means the
// in-process cache; a redis:// URL selects Redis.
type CacheConfig struct {
	URL string `yaml:"url"`
}

type EngineConfig struct {
	DefaultLevel        string   `yaml:"default_level"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	UserTTL             Duration `yaml:"user_ttl"`
	ProjectTTL          Duration `yaml:"project_ttl"`
}

type PipelineConfig struct {
	CompletionThreshold float64  `yaml:"completion_threshold"`
	ConfirmationTimeout Duration `yaml:"confirmation_timeout"`
	RunTimeout          Duration `yaml:"run_timeout"`
	StopOnError         bool     `yaml:"stop_on_error"`
	DisableFallback     bool     `yaml:"disable_fallback"`
}

type SweeperConfig struct {
	Spec     string   `yaml:"spec"`
	Projects []string `yaml:"projects"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP:     HTTPConfig{Port: 8080},
		EventBus: EventBusConfig{Provider: "gochannel"},
	}
}

// Load reads and validates a YAML configuration file. Missing keys keep
// their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadOrDefault attempts to load the file, falling back to defaults when the
// path is empty or the file does not exist.
func LoadOrDefault(path string) Config {
	if path == "" {
		return Default()
	}

	cfg, err := Load(path)
	if err != nil {
		return Default()
	}

	return cfg
}

// Validate rejects configurations that would misbehave at runtime.
func (c Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}

	switch c.EventBus.Provider {
	case "", "gochannel", "kafka", "none":
	default:
		return fmt.Errorf("unknown event bus provider %q", c.EventBus.Provider)
	}

	if c.Pipeline.CompletionThreshold < 0 || c.Pipeline.CompletionThreshold > 1 {
		return fmt.Errorf("completion threshold %v out of range", c.Pipeline.CompletionThreshold)
	}

	if c.Engine.ConfidenceThreshold < 0 || c.Engine.ConfidenceThreshold > 1 {
		return fmt.Errorf("engine confidence threshold %v out of range", c.Engine.ConfidenceThreshold)
	}

	return nil
}
