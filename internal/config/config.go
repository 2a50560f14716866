// Package config loads the host configuration from an optional YAML file
// and the environment. Environment variables take precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FallbackProviderNone     = "none"
	FallbackProviderOpenAI   = "openai"
	FallbackProviderDeepgram = "deepgram"
)

type Config struct {
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	DeepgramAPIKey string `yaml:"deepgram_api_key"`

	RealtimeURL string `yaml:"realtime_url"`
	HTTPAddr    string `yaml:"http_addr"`
	ArchivePath string `yaml:"archive_path"`
	LogLevel    string `yaml:"log_level"`

	Fallback FallbackConfig `yaml:"fallback"`
	Analysis AnalysisConfig `yaml:"analysis"`

	// GracePeriodMS delays the end of the call after a closing phrase. Nil
	// keeps the session default.
	GracePeriodMS  *int     `yaml:"grace_period_ms"`
	ClosingPhrases []string `yaml:"closing_phrases"`
}

type FallbackConfig struct {
	Provider string `yaml:"provider"`
	Language string `yaml:"language"`
	Model    string `yaml:"model"`
}

type AnalysisConfig struct {
	Model string `yaml:"model"`
}

func defaults() *Config {
	return &Config{
		HTTPAddr:    "127.0.0.1:8080",
		ArchivePath: "ema-transcript.db",
		LogLevel:    "info",
	}
}

// Load reads path when it is not empty, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	envString("OPENAI_API_KEY", &c.OpenAIAPIKey)
	envString("DEEPGRAM_API_KEY", &c.DeepgramAPIKey)
	envString("EMA_REALTIME_URL", &c.RealtimeURL)
	envString("EMA_HTTP_ADDR", &c.HTTPAddr)
	envString("EMA_ARCHIVE_PATH", &c.ArchivePath)
	envString("EMA_LOG_LEVEL", &c.LogLevel)
	envString("EMA_FALLBACK_PROVIDER", &c.Fallback.Provider)
	envString("EMA_FALLBACK_LANGUAGE", &c.Fallback.Language)
	envString("EMA_FALLBACK_MODEL", &c.Fallback.Model)
	envString("EMA_ANALYSIS_MODEL", &c.Analysis.Model)

	if value, ok := os.LookupEnv("EMA_CLOSING_PHRASES"); ok {
		c.ClosingPhrases = nil
		for _, phrase := range strings.Split(value, ",") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				c.ClosingPhrases = append(c.ClosingPhrases, phrase)
			}
		}
	}

	if value, ok := os.LookupEnv("EMA_GRACE_PERIOD_MS"); ok && strings.TrimSpace(value) != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("EMA_GRACE_PERIOD_MS must be an integer: %w", err)
		}
		c.GracePeriodMS = &ms
	}
	return nil
}

func envString(key string, target *string) {
	if value, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(value)
	}
}

func (c *Config) Validate() error {
	switch c.FallbackProvider() {
	case FallbackProviderNone:
	case FallbackProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the %s fallback provider", FallbackProviderOpenAI)
		}
	case FallbackProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the %s fallback provider", FallbackProviderDeepgram)
		}
	default:
		return fmt.Errorf("unknown fallback provider %q", c.Fallback.Provider)
	}

	if c.GracePeriodMS != nil && *c.GracePeriodMS < 0 {
		return fmt.Errorf("grace period must not be negative, got %dms", *c.GracePeriodMS)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// FallbackProvider is the normalised provider name. Without an explicit
// provider the OpenAI fallback is used when its key is set, otherwise the
// fallback path is disabled.
func (c *Config) FallbackProvider() string {
	provider := strings.ToLower(strings.TrimSpace(c.Fallback.Provider))
	if provider != "" {
		return provider
	}
	if c.OpenAIAPIKey != "" {
		return FallbackProviderOpenAI
	}
	return FallbackProviderNone
}

// GracePeriod reports the configured grace period and whether one was set.
func (c *Config) GracePeriod() (time.Duration, bool) {
	if c.GracePeriodMS == nil {
		return 0, false
	}
	return time.Duration(*c.GracePeriodMS) * time.Millisecond, true
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
