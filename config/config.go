// Package config provides configuration loading and management for UDA-Hub.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/udahub/model"
	"github.com/c360studio/udahub/scoring"
)

// Config represents the complete UDA-Hub configuration
type Config struct {
	Engine  EngineConfig         `yaml:"engine"`
	Scoring scoring.Config       `yaml:"scoring"`
	NATS    NATSConfig           `yaml:"nats"`
	Store   StoreConfig          `yaml:"store"`
	Model   model.RegistryConfig `yaml:"model"`
	Trace   TraceConfig          `yaml:"trace"`
	Tools   ToolsConfig          `yaml:"tools"`
}

// EngineConfig configures ticket workflow policy
type EngineConfig struct {
	// MaxResolveAttempts is the retry budget before forced escalation
	MaxResolveAttempts int `yaml:"max_resolve_attempts"`
	// ResolvedThreshold is the minimum confidence to close a ticket as resolved
	ResolvedThreshold float64 `yaml:"resolved_threshold"`
	// CallTimeout bounds each capability invocation
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// StoreConfig configures session persistence
type StoreConfig struct {
	// Backend selects the session store: "kv", "sqlite", or "inmem"
	Backend string `yaml:"backend"`
	// Path is the database file for the sqlite backend
	Path string `yaml:"path"`
}

// TraceConfig configures trace sinks
type TraceConfig struct {
	// LogPath appends JSON trace events to a file when set
	LogPath string `yaml:"log_path"`
	// Publish mirrors trace events onto NATS subjects when true
	Publish bool `yaml:"publish"`
	// SubjectPrefix is the subject root for published events
	SubjectPrefix string `yaml:"subject_prefix"`
	// Metrics enables the Prometheus sink
	Metrics bool `yaml:"metrics"`
}

// ToolsConfig configures the embedded tool services
type ToolsConfig struct {
	// Serve starts the kb/account/memory services in-process
	Serve bool `yaml:"serve"`
	// KBPath is the knowledge base database file
	KBPath string `yaml:"kb_path"`
	// AccountPath is the account database file
	AccountPath string `yaml:"account_path"`
	// MemoryPath is the memory database file
	MemoryPath string `yaml:"memory_path"`
	// RequestTimeout bounds each tool request
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// SeedDemo loads demo CultPass data on startup
	SeedDemo bool `yaml:"seed_demo"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxResolveAttempts: 2,
			ResolvedThreshold:  0.6,
			CallTimeout:        60 * time.Second,
		},
		Scoring: scoring.DefaultConfig(),
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Store: StoreConfig{
			Backend: "kv",
			Path:    "udahub-sessions.db",
		},
		Trace: TraceConfig{
			LogPath:       "",
			Publish:       false,
			SubjectPrefix: "udahub.trace",
			Metrics:       false,
		},
		Tools: ToolsConfig{
			Serve:          true,
			KBPath:         "udahub-kb.db",
			AccountPath:    "udahub-account.db",
			MemoryPath:     "udahub-memory.db",
			RequestTimeout: 10 * time.Second,
			SeedDemo:       false,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Engine.MaxResolveAttempts < 1 {
		return fmt.Errorf("engine.max_resolve_attempts must be at least 1")
	}
	if c.Engine.ResolvedThreshold < 0 || c.Engine.ResolvedThreshold > 1 {
		return fmt.Errorf("engine.resolved_threshold must be between 0 and 1")
	}
	if c.Scoring.ResolvedThreshold < 0 || c.Scoring.ResolvedThreshold > 1 {
		return fmt.Errorf("scoring.resolved_threshold must be between 0 and 1")
	}
	switch c.Store.Backend {
	case "kv", "sqlite", "inmem":
	default:
		return fmt.Errorf("store.backend must be one of kv, sqlite, inmem (got %q)", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the sqlite backend")
	}
	if c.Trace.Publish && c.Trace.SubjectPrefix == "" {
		return fmt.Errorf("trace.subject_prefix is required when trace.publish is set")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
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

	// Engine
	if other.Engine.MaxResolveAttempts != 0 {
		c.Engine.MaxResolveAttempts = other.Engine.MaxResolveAttempts
	}
	if other.Engine.ResolvedThreshold != 0 {
		c.Engine.ResolvedThreshold = other.Engine.ResolvedThreshold
	}
	if other.Engine.CallTimeout != 0 {
		c.Engine.CallTimeout = other.Engine.CallTimeout
	}

	// Scoring
	if other.Scoring.ResolvedThreshold != 0 {
		c.Scoring.ResolvedThreshold = other.Scoring.ResolvedThreshold
	}
	if other.Scoring.MinSalientLen != 0 {
		c.Scoring.MinSalientLen = other.Scoring.MinSalientLen
	}
	if other.Scoring.Weights != (scoring.Weights{}) {
		c.Scoring.Weights = other.Scoring.Weights
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	// Store
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}

	// Model registry
	for k, v := range other.Model.Capabilities {
		if c.Model.Capabilities == nil {
			c.Model.Capabilities = make(map[string]*model.CapabilityConfig)
		}
		c.Model.Capabilities[k] = v
	}
	for k, v := range other.Model.Endpoints {
		if c.Model.Endpoints == nil {
			c.Model.Endpoints = make(map[string]*model.EndpointConfig)
		}
		c.Model.Endpoints[k] = v
	}
	if other.Model.Defaults != nil {
		c.Model.Defaults = other.Model.Defaults
	}

	// Trace
	if other.Trace.LogPath != "" {
		c.Trace.LogPath = other.Trace.LogPath
	}
	if other.Trace.Publish {
		c.Trace.Publish = true
	}
	if other.Trace.SubjectPrefix != "" {
		c.Trace.SubjectPrefix = other.Trace.SubjectPrefix
	}
	if other.Trace.Metrics {
		c.Trace.Metrics = true
	}

	// Tools
	if other.Tools.KBPath != "" {
		c.Tools.KBPath = other.Tools.KBPath
	}
	if other.Tools.AccountPath != "" {
		c.Tools.AccountPath = other.Tools.AccountPath
	}
	if other.Tools.MemoryPath != "" {
		c.Tools.MemoryPath = other.Tools.MemoryPath
	}
	if other.Tools.RequestTimeout != 0 {
		c.Tools.RequestTimeout = other.Tools.RequestTimeout
	}
	if other.Tools.SeedDemo {
		c.Tools.SeedDemo = true
	}
}
