// Package config loads run settings from flags, environment variables and an
// optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/valpere/linetran/internal/output"
)

const (
	EnvPrefix = "LINETRAN"

	ServiceAnthropic  = "anthropic"
	ServiceOpenRouter = "openrouter"

	minThinkBudget = 1024
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Service      string        `mapstructure:"service"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	BatchSize    int           `mapstructure:"batch_size"`
	ThinkBudget  int           `mapstructure:"think_budget"`
	Mode         string        `mapstructure:"mode"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	SourceLang   string        `mapstructure:"source_lang"`
	TargetLang   string        `mapstructure:"target_lang"`
	TempDir      string        `mapstructure:"temp_dir"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollDeadline time.Duration `mapstructure:"poll_deadline"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	DB           string        `mapstructure:"db"`
	NoCache      bool          `mapstructure:"no_cache"`
	Log          LogConfig     `mapstructure:"log"`
}

// SetDefaults registers the default of every setting on v. Every key needs
// one for environment variables to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("service", ServiceAnthropic)
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("model", "claude-sonnet-4-5-20250929")
	v.SetDefault("batch_size", 100)
	v.SetDefault("think_budget", 0)
	v.SetDefault("mode", string(output.ModeStructured))
	v.SetDefault("system_prompt", "")
	v.SetDefault("source_lang", "ja")
	v.SetDefault("target_lang", "ko")
	v.SetDefault("temp_dir", "")
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("poll_deadline", time.Duration(0))
	v.SetDefault("timeout", 10*time.Minute)
	v.SetDefault("max_tokens", 64000)
	v.SetDefault("temperature", 1.0)
	v.SetDefault("db", "./data/linetran.db")
	v.SetDefault("no_cache", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// NewViper returns a viper instance with defaults and environment binding.
// LINETRAN_BATCH_SIZE sets batch_size, LINETRAN_LOG_LEVEL sets log.level.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads path into v. With an empty path ./linetran.yaml is used when
// present.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("linetran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load decodes v into a Config and fills the API key from the service's own
// environment variable when it is not set otherwise.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Service = strings.ToLower(strings.TrimSpace(cfg.Service))
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(serviceKeyEnv(cfg.Service))
	}
	return &cfg, nil
}

func serviceKeyEnv(service string) string {
	switch service {
	case ServiceOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// Validate checks the settings a translation run depends on.
func (c *Config) Validate() error {
	switch c.Service {
	case ServiceAnthropic, ServiceOpenRouter:
	default:
		return fmt.Errorf("%w: unknown service %q", ErrInvalid, c.Service)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required, set %s or %s_API_KEY", ErrInvalid, serviceKeyEnv(c.Service), EnvPrefix)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalid)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalid, c.BatchSize)
	}
	if c.ThinkBudget != 0 && c.ThinkBudget < minThinkBudget {
		return fmt.Errorf("%w: think budget must be 0 or at least %d, got %d", ErrInvalid, minThinkBudget, c.ThinkBudget)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalid, c.MaxTokens)
	}
	if _, err := output.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalid)
	}
	if _, _, err := c.Languages(); err != nil {
		return err
	}
	return nil
}

// OutputMode returns the parsed output encoding.
func (c *Config) OutputMode() (output.Mode, error) {
	return output.ParseMode(c.Mode)
}

// Languages parses the source and target language tags.
func (c *Config) Languages() (source, target language.Tag, err error) {
	source, err = language.Parse(c.SourceLang)
	if err != nil {
		return language.Und, language.Und, fmt.Errorf("%w: source language %q: %v", ErrInvalid, c.SourceLang, err)
	}
	target, err = language.Parse(c.TargetLang)
	if err != nil {
		return language.Und, language.Und, fmt.Errorf("%w: target language %q: %v", ErrInvalid, c.TargetLang, err)
	}
	if source == target {
		return language.Und, language.Und, fmt.Errorf("%w: source and target language are both %s", ErrInvalid, source)
	}
	return source, target, nil
}
