// Package config loads environment and agent-table configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AgentCapabilities describes what a registered agent can do. Validated
// against the embedded JSON schema at load time.
type AgentCapabilities struct {
	Type       string         `yaml:"type" json:"type"`
	Skills     []string       `yaml:"skills" json:"skills"`
	Version    string         `yaml:"version" json:"version"`
	MaxResults map[string]int `yaml:"max_results,omitempty" json:"max_results,omitempty"`
}

// AgentConfig configures a single domain agent.
type AgentConfig struct {
	Name         string            `yaml:"name"`
	Mode         string            `yaml:"mode"` // "local" | "remote"
	Endpoint     string            `yaml:"endpoint,omitempty"`
	Capabilities AgentCapabilities `yaml:"capabilities"`
}

// Config is the agent table loaded from configs/agents.yaml.
type Config struct {
	Agents map[string]AgentConfig `yaml:"agents"`
}

// EnvConfig holds environment-derived settings.
type EnvConfig struct {
	// Server
	ServerPort int
	WSPort     int

	// Routing
	MinConfidence float64
	DefaultDomain string

	// Session
	SessionTTL      time.Duration
	MaxTurns        int
	MaxTokenEstim   int
	DispatchTimeout time.Duration

	// Context engineering
	HistoryWindow  int
	RefreshWorkers int

	// Storage
	PostgresDSN string

	// Logging
	LogLevel string
}

// LoadEnv loads environment variables, reading .env when present.
func LoadEnv() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		ServerPort:      getEnvInt("SERVER_PORT", 8080),
		WSPort:          getEnvInt("WS_PORT", 8085),
		MinConfidence:   getEnvFloat("MIN_CONFIDENCE", 0.5),
		DefaultDomain:   getEnv("DEFAULT_DOMAIN", "nutrition"),
		MaxTurns:        getEnvInt("SESSION_MAX_TURNS", 30),
		MaxTokenEstim:   getEnvInt("SESSION_MAX_TOKENS", 8000),
		HistoryWindow:   getEnvInt("HISTORY_WINDOW", 5),
		RefreshWorkers:  getEnvInt("REFRESH_WORKERS", 2),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		SessionTTL:      getEnvDuration("SESSION_TTL", 30*time.Minute),
		DispatchTimeout: getEnvDuration("DISPATCH_TIMEOUT", 20*time.Second),
	}
	return cfg, nil
}

// LoadAgentConfig loads and validates the agent table from YAML.
// ${VAR} references in the file are expanded from the environment.
func LoadAgentConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "configs/agents.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	expanded := os.Expand(string(data), os.Getenv)

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	validator, err := NewCapabilitiesValidator()
	if err != nil {
		return nil, err
	}
	for domain, agent := range config.Agents {
		if err := validator.Validate(agent.Capabilities); err != nil {
			return nil, fmt.Errorf("agent %q: %w", domain, err)
		}
	}
	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
