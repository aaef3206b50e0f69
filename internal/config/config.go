// Package config loads the configuration of the example programs and builds
// the model backend and logger it describes.
package config

import (
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/chatflow"
	"github.com/hupe1980/chatflow/flow"
	"github.com/hupe1980/chatflow/logging"
	"github.com/hupe1980/chatflow/model"
	"github.com/hupe1980/chatflow/model/anthropic"
	"github.com/hupe1980/chatflow/model/openai"
)

// Supported backend providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// ErrUnknownProvider is returned for providers NewModel cannot build.
var ErrUnknownProvider = errors.New("unknown provider")

// Config holds settings loaded from an optional YAML file and environment
// variables prefixed with CHATFLOW_.
type Config struct {
	Provider    string  `yaml:"provider" env:"PROVIDER"`
	Model       string  `yaml:"model" env:"MODEL"`
	APIKey      string  `yaml:"api-key" env:"API_KEY"`
	BaseURL     string  `yaml:"base-url" env:"BASE_URL"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int64   `yaml:"max-tokens" env:"MAX_TOKENS"`
	MaxTurns    int     `yaml:"max-turns" env:"MAX_TURNS"`
	LogLevel    string  `yaml:"log-level" env:"LOG_LEVEL"`
	LogFormat   string  `yaml:"log-format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Provider:    ProviderOpenAI,
		Temperature: 0.7,
		MaxTokens:   4096,
		MaxTurns:    flow.DefaultMaxTurns,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Validate checks the configuration for values the backends cannot handle.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Provider) {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0,2]", c.Temperature))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max-tokens must be positive, got %d", c.MaxTokens))
	}
	if c.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("max-turns must not be negative, got %d", c.MaxTurns))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewModel builds the backend selected by cfg.Provider.
func NewModel(cfg Config) (model.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.APIKey = cfg.APIKey
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
		}), nil
	case ProviderMock:
		name := cfg.Model
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name, ProviderMock), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewSlogLogger(level, cfg.LogFormat, false), nil
}

// NewClient builds a chatflow client with the backend and logger described
// by cfg.
func NewClient(cfg Config) (*chatflow.Client, error) {
	backend, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return chatflow.New(backend, func(o *chatflow.Options) {
		o.MaxTurns = cfg.MaxTurns
		o.Logger = logger
	})
}
