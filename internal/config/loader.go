package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names searched in the working directory.
const (
	ConfigFileName    = "reportal.yaml"
	ConfigFileNameAlt = "reportal.yml"
)

// envPrefix namespaces the environment variables read by Load.
const envPrefix = "REPORTAL_"

var configFileUsed string

// findConfigFile finds the config file to use.
// Priority: explicit path > reportal.yaml > reportal.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"state_path":      DefaultStateFile,
		"max_result_size": DefaultMaxResultSize,
		"verbose":         false,
		"output":          DefaultOutput,
		"source.type":     DefaultSourceType,
		"source.path":     ":memory:",
		"llm.provider":    DefaultLLMProvider,
		"llm.model":       DefaultLLMModel,
		"llm.temperature": 0.1,
		"llm.max_tokens":  1000,
		"server.host":     "127.0.0.1",
		"server.port":     DefaultPort,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables.
	// Transform: REPORTAL_LLM__API_KEY -> llm.api_key
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")

			// The CLI uses short flag names for nested config keys.
			switch key {
			case "state":
				key = "state_path"
			case "database":
				key = "source.path"
			case "source":
				key = "source.type"
			case "port":
				key = "server.port"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	expandCredentialEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path to the config file being used, if any.
func ConfigFileUsed() string {
	return configFileUsed
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// expandCredentialEnvVars expands environment variables in sensitive fields so
// secrets can stay out of the config file.
func expandCredentialEnvVars(cfg *Config) {
	cfg.Source.Host = expandEnvVars(cfg.Source.Host)
	cfg.Source.Database = expandEnvVars(cfg.Source.Database)
	cfg.Source.Username = expandEnvVars(cfg.Source.Username)
	cfg.Source.Password = expandEnvVars(cfg.Source.Password)
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Server.SessionSecret = expandEnvVars(cfg.Server.SessionSecret)
}
