package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Parley environment variables.
const EnvPrefix = "PARLEY_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`

	// Model is the generation model in provider/model_name form,
	// e.g. "anthropic/claude-3-5-sonnet-latest" or "openai/gpt-4o-mini".
	Model        string `yaml:"model"`
	MaxTokens    int    `yaml:"max_tokens"`
	StreamCeil   string `yaml:"stream_timeout"`
	SideCallCeil string `yaml:"side_call_timeout"`

	Deepgram Deepgram `yaml:"deepgram"`
	Memory   Memory   `yaml:"memory"`

	// Secrets: env vars only, never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

// Deepgram holds live transcription parameters.
type Deepgram struct {
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	Endpointing int    `yaml:"endpointing_ms"`

	ReconnectBase string `yaml:"reconnect_base"`
	ReconnectMax  string `yaml:"reconnect_max"`
}

// Memory holds conversational memory bounds.
type Memory struct {
	MaxTurns           int `yaml:"max_turns"`
	SummarizeThreshold int `yaml:"summarize_threshold"`
	RecentKeep         int `yaml:"recent_keep"`
	RecentWindow       int `yaml:"recent_window"`
}

func defaults() Config {
	return Config{
		Addr:         ":8080",
		DBPath:       "data/parley.db",
		Model:        "anthropic/claude-3-5-sonnet-latest",
		MaxTokens:    1000,
		StreamCeil:   "60s",
		SideCallCeil: "30s",
		Deepgram: Deepgram{
			Model:         "nova-2",
			Language:      "en-US",
			Endpointing:   300,
			ReconnectBase: "1s",
			ReconnectMax:  "10s",
		},
		Memory: Memory{
			MaxTurns:           1000,
			SummarizeThreshold: 30,
			RecentKeep:         10,
			RecentWindow:       12,
		},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedReconnectBase returns the first reconnect delay, falling back to 1s.
func (d *Deepgram) ParsedReconnectBase() time.Duration {
	return parseDurationOr(d.ReconnectBase, time.Second)
}

// ParsedReconnectMax returns the reconnect delay ceiling, falling back to 10s.
func (d *Deepgram) ParsedReconnectMax() time.Duration {
	return parseDurationOr(d.ReconnectMax, 10*time.Second)
}

// ParsedStreamTimeout returns the ceiling for a single answer stream.
func (c *Config) ParsedStreamTimeout() time.Duration {
	return parseDurationOr(c.StreamCeil, 60*time.Second)
}

// ParsedSideCallTimeout returns the ceiling for suggestion and
// summarization calls.
func (c *Config) ParsedSideCallTimeout() time.Duration {
	return parseDurationOr(c.SideCallCeil, 30*time.Second)
}

// GenerationAPIKey returns the secret matching the given generation
// provider, or the empty string when that provider is unconfigured.
func (c *Config) GenerationAPIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_MODEL"); v != "" {
		cfg.Deepgram.Model = v
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_LANGUAGE"); v != "" {
		cfg.Deepgram.Language = v
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_ENDPOINTING_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Deepgram.Endpointing = n
		}
	}
	if v := os.Getenv(EnvPrefix + "RECONNECT_BASE"); v != "" {
		cfg.Deepgram.ReconnectBase = v
	}
	if v := os.Getenv(EnvPrefix + "RECONNECT_MAX"); v != "" {
		cfg.Deepgram.ReconnectMax = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured; live transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" && cfg.GeminiAPIKey == "" {
		warnings = append(warnings, "No generation API key configured; answers and suggestions are disabled. Set "+EnvPrefix+"ANTHROPIC_API_KEY, "+EnvPrefix+"OPENAI_API_KEY, or "+EnvPrefix+"GEMINI_API_KEY.")
	}
	if _, err := time.ParseDuration(cfg.Deepgram.ReconnectBase); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid reconnect_base %q, using default 1s.", cfg.Deepgram.ReconnectBase))
	}
	if _, err := time.ParseDuration(cfg.Deepgram.ReconnectMax); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid reconnect_max %q, using default 10s.", cfg.Deepgram.ReconnectMax))
	}
	if cfg.Memory.SummarizeThreshold <= cfg.Memory.RecentKeep {
		warnings = append(warnings, fmt.Sprintf("summarize_threshold %d must exceed recent_keep %d, using defaults 30/10.", cfg.Memory.SummarizeThreshold, cfg.Memory.RecentKeep))
		cfg.Memory.SummarizeThreshold = 30
		cfg.Memory.RecentKeep = 10
	}

	return warnings
}
