package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/valpere/linetran/internal/output"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, ServiceAnthropic, cfg.Service)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Model)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 0, cfg.ThinkBudget)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 64000, cfg.MaxTokens)
	assert.Equal(t, 1.0, cfg.Temperature)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())

	mode, err := cfg.OutputMode()
	require.NoError(t, err)
	assert.Equal(t, output.ModeStructured, mode)

	src, tgt, err := cfg.Languages()
	require.NoError(t, err)
	assert.Equal(t, language.Japanese, src)
	assert.Equal(t, language.Korean, tgt)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("LINETRAN_BATCH_SIZE", "32")
	t.Setenv("LINETRAN_SERVICE", "openrouter")
	t.Setenv("LINETRAN_LOG_LEVEL", "debug")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, ServiceOpenRouter, cfg.Service)
	assert.Equal(t, "or-key", cfg.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linetran.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_key: from-file
batch_size: 8
think_budget: 2048
mode: delimited
poll_interval: 250ms
target_lang: en
log:
  format: json
`), 0644))

	v := NewViper()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 2048, cfg.ThinkBudget)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "en", cfg.TargetLang)
	assert.Equal(t, "json", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestReadFile_Missing(t *testing.T) {
	v := NewViper()
	assert.Error(t, ReadFile(v, filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Service:      ServiceAnthropic,
			APIKey:       "k",
			Model:        "m",
			BatchSize:    10,
			Mode:         "structured",
			SourceLang:   "ja",
			TargetLang:   "ko",
			PollInterval: time.Second,
			MaxTokens:    64000,
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"unknown service":    func(c *Config) { c.Service = "google" },
		"no api key":         func(c *Config) { c.APIKey = "" },
		"no model":           func(c *Config) { c.Model = "" },
		"zero batch":         func(c *Config) { c.BatchSize = 0 },
		"small think budget": func(c *Config) { c.ThinkBudget = 1023 },
		"bad mode":           func(c *Config) { c.Mode = "xml" },
		"bad language":       func(c *Config) { c.TargetLang = "not a tag!" },
		"same language":      func(c *Config) { c.TargetLang = "ja" },
		"zero interval":      func(c *Config) { c.PollInterval = 0 },
		"zero max tokens":    func(c *Config) { c.MaxTokens = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}

	c := valid()
	c.ThinkBudget = 1024
	assert.NoError(t, c.Validate())
}
