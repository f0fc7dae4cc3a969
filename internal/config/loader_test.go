package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reportal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultMaxResultSize, cfg.MaxResultSize)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, "sqlite", cfg.Source.Type)
	assert.Equal(t, ":memory:", cfg.Source.Path)
	assert.Equal(t, DefaultLLMProvider, cfg.LLM.Provider)
	assert.Equal(t, DefaultLLMModel, cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.False(t, cfg.Verbose)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
state_path: /tmp/custom.db
max_result_size: 500
source:
  type: postgres
  host: db.example.com
  database: analytics
llm:
  provider: qwen
  model: qwen-max
server:
  port: 8080
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.StatePath)
	assert.Equal(t, 500, cfg.MaxResultSize)
	assert.Equal(t, "postgres", cfg.Source.Type)
	assert.Equal(t, "db.example.com", cfg.Source.Host)
	assert.Equal(t, "analytics", cfg.Source.Database)
	assert.Equal(t, "qwen", cfg.LLM.Provider)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, path, ConfigFileUsed())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "max_result_size: 500\n")
	t.Setenv("REPORTAL_MAX_RESULT_SIZE", "250")
	t.Setenv("REPORTAL_LLM__API_KEY", "sk-from-env")
	t.Setenv("REPORTAL_SOURCE__TYPE", "duckdb")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.MaxResultSize)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey, "double underscore maps to nesting")
	assert.Equal(t, "duckdb", cfg.Source.Type)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("REPORTAL_SOURCE__TYPE", "duckdb")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("source", "", "")
	flags.String("database", "", "")
	flags.String("state", "", "")
	flags.Int("port", 0, "")
	require.NoError(t, flags.Parse([]string{
		"--source=sqlite", "--database=/data/sales.db", "--state=/tmp/state.db", "--port=9000",
	}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Source.Type)
	assert.Equal(t, "/data/sales.db", cfg.Source.Path)
	assert.Equal(t, "/tmp/state.db", cfg.StatePath)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadUnchangedFlagsIgnored(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("source", "", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Source.Type, "default flag values do not clobber defaults")
}

func TestLoadExpandsCredentialEnvVars(t *testing.T) {
	path := writeConfig(t, `
source:
  type: postgres
  database: reports
  password: ${DB_PASSWORD}
llm:
  api_key: ${LLM_KEY}
`)
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("LLM_KEY", "sk-expanded")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Source.Password)
	assert.Equal(t, "sk-expanded", cfg.LLM.APIKey)
}

func TestLoadUnsetCredentialVarLeftVerbatim(t *testing.T) {
	path := writeConfig(t, `
source:
  type: sqlite
  password: ${REPORTAL_TEST_UNSET_VAR}
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "${REPORTAL_TEST_UNSET_VAR}", cfg.Source.Password)
}

func TestLoadValidation(t *testing.T) {
	path := writeConfig(t, "source:\n  type: oracle\n")
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")

	path = writeConfig(t, "max_result_size: 0\n")
	_, err = Load(path, nil)
	assert.ErrorContains(t, err, "max_result_size")
}
