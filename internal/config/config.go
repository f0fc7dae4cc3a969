// Package config provides layered configuration for reportal. Values are
// loaded from defaults, the config file, REPORTAL_ environment variables, and
// CLI flags, in increasing priority.
package config

import (
	"fmt"

	"github.com/reportal-io/reportal/internal/llm"
	"github.com/reportal-io/reportal/internal/source"
)

// Default configuration values.
const (
	DefaultStateFile     = ".reportal/reports.db"
	DefaultSourceType    = "sqlite"
	DefaultMaxResultSize = 10000
	DefaultPort          = 5000
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLLMProvider   = llm.ProviderOpenAI
	DefaultLLMModel      = "gpt-4o-mini"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	SessionSecret string `koanf:"session_secret"`
}

// Config holds all configuration options.
type Config struct {
	StatePath     string        `koanf:"state_path"`
	MaxResultSize int           `koanf:"max_result_size"`
	Verbose       bool          `koanf:"verbose"`
	OutputFormat  string        `koanf:"output"`
	Source        source.Config `koanf:"source"`
	LLM           llm.Config    `koanf:"llm"`
	Server        ServerConfig  `koanf:"server"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Source.Type == "" {
		return fmt.Errorf("source type is required")
	}
	if !source.IsRegistered(c.Source.Type) {
		return &source.UnknownSourceError{Type: c.Source.Type, Available: source.ListTypes()}
	}
	if c.MaxResultSize <= 0 {
		return fmt.Errorf("max_result_size must be positive")
	}
	return nil
}
