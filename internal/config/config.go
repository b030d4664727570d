// SPDX-License-Identifier: Apache-2.0

// Package config builds the service configuration once at startup. Values
// come from built-in defaults, then an optional YAML file, then the process
// environment, with later sources winning.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"

	"github.com/medbill/claimscrub/internal/llm"
)

const (
	defaultAddr      = ":8080"
	defaultTimeout   = 30 * time.Second
	defaultBodyLimit = "1M"
	defaultCorpus    = "embedded"
)

// Config is passed explicitly to every component that needs it. Nothing
// reads the environment after Load returns.
type Config struct {
	Addr      string `yaml:"addr"`
	BodyLimit string `yaml:"bodyLimit"`

	// Corpus is "embedded", a local file path or an s3://bucket/key URL.
	Corpus       string `yaml:"corpus"`
	CorpusRegion string `yaml:"corpusRegion"`

	LLM LLM `yaml:"llm"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// LLM configures the completion model. APIKey is never read from the file.
type LLM struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"baseURL"`
	Timeout  time.Duration `yaml:"timeout"`
	APIKey   string        `yaml:"-"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Addr:      defaultAddr,
		BodyLimit: defaultBodyLimit,
		Corpus:    defaultCorpus,
		LLM: LLM{
			Provider: llm.ProviderOpenAI,
			Timeout:  defaultTimeout,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads path (when non-empty) over the defaults and then applies
// environment overrides. The API key always comes from the provider's key
// variable.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("CLAIMSCRUB_ADDR", &cfg.Addr)
	str("CLAIMSCRUB_CORPUS", &cfg.Corpus)
	str("CLAIMSCRUB_CORPUS_REGION", &cfg.CorpusRegion)
	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("LLM_MODEL", &cfg.LLM.Model)
	str("LLM_BASE_URL", &cfg.LLM.BaseURL)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	if v, ok := lookup("LLM_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("LLM_TIMEOUT: %w", err)
		}
		cfg.LLM.Timeout = d
	}

	cfg.LLM.Provider = strings.TrimSpace(cfg.LLM.Provider)
	if cfg.LLM.Model == "" && llm.IsSupported(cfg.LLM.Provider) {
		cfg.LLM.Model = llm.DefaultModel(cfg.LLM.Provider)
	}
	if key, ok := lookup(llm.KeyEnv(cfg.LLM.Provider)); ok {
		cfg.LLM.APIKey = strings.TrimSpace(key)
	}

	return cfg, nil
}

// Validate rejects settings the process cannot start with. An unsupported
// provider or a missing API key are not startup errors: they are reported per
// request.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %s", c.LLM.Timeout)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q: want json or console", c.LogFormat)
	}
	return nil
}
