// Package config provides configuration loading for TaskMesh deployments.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete TaskMesh configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Transport TransportConfig `yaml:"transport"`
	Store     StoreConfig     `yaml:"store"`
	Memory    MemoryConfig    `yaml:"memory"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ModelConfig configures the language model backend.
type ModelConfig struct {
	// Provider selects the backend: "anthropic", "openai" or "mock".
	Provider string `yaml:"provider"`
	// Name is the model identifier; empty selects the provider default.
	Name string `yaml:"name"`
	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`
	// MaxTokens caps the completion length; 0 selects the provider default.
	MaxTokens int `yaml:"max_tokens"`
}

// TransportConfig configures agent-to-agent messaging.
type TransportConfig struct {
	// Kind selects the transport: "inproc" or "nats".
	Kind string `yaml:"kind"`
	// URL is the NATS server URL; ignored for the in-process transport.
	URL string `yaml:"url"`
	// RequestTimeout bounds each request/response exchange.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StoreConfig configures plan, team and run persistence.
type StoreConfig struct {
	// Kind selects the backend: "memory" or "redis".
	Kind string `yaml:"kind"`
	// RedisURL is the connection URL for the redis backend.
	RedisURL string `yaml:"redis_url"`
}

// MemoryConfig configures reflection precedent storage.
type MemoryConfig struct {
	// Kind selects the backend: "memory" or "qdrant".
	Kind string `yaml:"kind"`
	// QdrantAddr is the host:port of the Qdrant gRPC endpoint.
	QdrantAddr string `yaml:"qdrant_addr"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
}

// PipelineConfig tunes task execution.
type PipelineConfig struct {
	// StepTimeout bounds each step execution attempt.
	StepTimeout time.Duration `yaml:"step_timeout"`
	// MaxRetries is the default retry budget for task requests that do not
	// set their own.
	MaxRetries int `yaml:"max_retries"`
}

// MetricsConfig configures the Prometheus event sink.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Listen is the address the metrics HTTP endpoint binds to.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns a Config with sensible defaults: mock model,
// in-process transport and in-memory stores.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "mock",
			Temperature: 0.7,
		},
		Transport: TransportConfig{
			Kind:           "inproc",
			RequestTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Kind: "memory",
		},
		Memory: MemoryConfig{
			Kind:       "memory",
			Collection: "taskmesh_memory",
		},
		Pipeline: PipelineConfig{
			StepTimeout: 60 * time.Second,
			MaxRetries:  2,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("model.provider must be anthropic, openai or mock, got %q", c.Model.Provider)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}

	switch c.Transport.Kind {
	case "inproc":
	case "nats":
		if c.Transport.URL == "" {
			return fmt.Errorf("transport.url is required for the nats transport")
		}
	default:
		return fmt.Errorf("transport.kind must be inproc or nats, got %q", c.Transport.Kind)
	}

	switch c.Store.Kind {
	case "memory":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis store")
		}
	default:
		return fmt.Errorf("store.kind must be memory or redis, got %q", c.Store.Kind)
	}

	switch c.Memory.Kind {
	case "memory":
	case "qdrant":
		if c.Memory.QdrantAddr == "" {
			return fmt.Errorf("memory.qdrant_addr is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("memory.kind must be memory or qdrant, got %q", c.Memory.Kind)
	}

	if c.Pipeline.StepTimeout <= 0 {
		return fmt.Errorf("pipeline.step_timeout must be positive")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must not be negative")
	}
	return nil
}

// LoadFromFile reads a YAML config file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
