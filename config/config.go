// Package config provides configuration for the backend server.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the backend configuration.
type Config struct {
	// Server settings
	HTTPPort int `toml:"http_port"`

	// Database
	DatabaseURL string `toml:"database_url"`

	// LLM provider
	LLM LLMConfig `toml:"llm"`

	// Agent behavior
	Agent AgentConfig `toml:"agent"`

	// Logging
	LogLevel string `toml:"log_level"`
}

// LLMConfig holds connection settings for the OpenAI-compatible provider.
type LLMConfig struct {
	BaseURL          string  `toml:"base_url"`
	Model            string  `toml:"model"`
	APIKey           string  `toml:"api_key"`
	Temperature      float64 `toml:"temperature"`
	TopP             float64 `toml:"top_p"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	MaxTokens        int     `toml:"max_tokens"`
}

// AgentConfig holds tunables for the agent loop and tool sandbox.
type AgentConfig struct {
	MaxIterations      int           `toml:"max_iterations"`
	ToolTimeout        time.Duration `toml:"-"`
	ToolTimeoutSec     int           `toml:"tool_timeout_sec"`
	MaxToolOutputChars int           `toml:"max_tool_output_chars"`
	PendingTTL         time.Duration `toml:"-"`
	PendingTTLSec      int           `toml:"pending_ttl_sec"`
	PatchSimilarity    float64       `toml:"patch_similarity"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		HTTPPort:    8080,
		DatabaseURL: "file:ainotes.db?cache=shared&mode=rwc",
		LLM: LLMConfig{
			BaseURL:          "http://localhost:4000",
			Model:            "gpt-4o-mini",
			Temperature:      0.3,
			TopP:             1.0,
			FrequencyPenalty: 0.0,
			MaxTokens:        8096,
		},
		Agent: AgentConfig{
			MaxIterations:      10,
			ToolTimeoutSec:     60,
			MaxToolOutputChars: 8000,
			PendingTTLSec:      300,
			PatchSimilarity:    0.72,
		},
		LogLevel: "info",
	}
}

// Load reads the TOML config at path (defaults apply when the file is
// missing), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.Agent.MaxIterations = getEnvInt("AGENT_MAX_ITERATIONS", cfg.Agent.MaxIterations)
	cfg.Agent.ToolTimeoutSec = getEnvInt("TOOL_TIMEOUT_SEC", cfg.Agent.ToolTimeoutSec)
	cfg.Agent.MaxToolOutputChars = getEnvInt("MAX_TOOL_OUTPUT_CHARS", cfg.Agent.MaxToolOutputChars)
	cfg.Agent.PendingTTLSec = getEnvInt("PENDING_TTL_SEC", cfg.Agent.PendingTTLSec)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Agent.ToolTimeout = time.Duration(cfg.Agent.ToolTimeoutSec) * time.Second
	cfg.Agent.PendingTTL = time.Duration(cfg.Agent.PendingTTLSec) * time.Second

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
