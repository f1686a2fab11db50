package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAgentConfig(t *testing.T) {
	path := writeConfig(t, `
agents:
  nutrition:
    name: nutrition-agent
    mode: local
    capabilities:
      type: nutrition
      skills: [dietary-guidance]
      version: "1.0.0"
      max_results:
        general: 5
  trend:
    name: trend-agent
    mode: remote
    endpoint: http://localhost:9101
    capabilities:
      type: trend
      skills: [trend-analysis]
      version: "2.1"
`)

	cfg, err := LoadAgentConfig(path)
	if err != nil {
		t.Fatalf("LoadAgentConfig: %v", err)
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(cfg.Agents))
	}
	n := cfg.Agents["nutrition"]
	if n.Name != "nutrition-agent" || n.Capabilities.MaxResults["general"] != 5 {
		t.Errorf("nutrition agent = %+v", n)
	}
	if cfg.Agents["trend"].Endpoint != "http://localhost:9101" {
		t.Errorf("trend endpoint = %q", cfg.Agents["trend"].Endpoint)
	}
}

func TestLoadAgentConfigExpandsEnv(t *testing.T) {
	t.Setenv("TREND_AGENT_URL", "http://agents.internal:9101")
	path := writeConfig(t, `
agents:
  trend:
    name: trend-agent
    mode: remote
    endpoint: ${TREND_AGENT_URL}
    capabilities:
      type: trend
      skills: [trend-analysis]
      version: "1.0.0"
`)

	cfg, err := LoadAgentConfig(path)
	if err != nil {
		t.Fatalf("LoadAgentConfig: %v", err)
	}
	if got := cfg.Agents["trend"].Endpoint; got != "http://agents.internal:9101" {
		t.Errorf("endpoint = %q, want expanded env value", got)
	}
}

func TestLoadAgentConfigRejectsBadCapabilities(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown type", `
agents:
  nutrition:
    name: x
    mode: local
    capabilities:
      type: astrology
      skills: [s]
      version: "1.0.0"
`},
		{"no skills", `
agents:
  nutrition:
    name: x
    mode: local
    capabilities:
      type: nutrition
      skills: []
      version: "1.0.0"
`},
		{"bad version", `
agents:
  nutrition:
    name: x
    mode: local
    capabilities:
      type: nutrition
      skills: [s]
      version: "one"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadAgentConfig(writeConfig(t, tt.yaml)); err == nil {
				t.Error("LoadAgentConfig accepted invalid capabilities")
			}
		})
	}
}

func TestLoadAgentConfigMissingFile(t *testing.T) {
	if _, err := LoadAgentConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadAgentConfig succeeded on missing file")
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "WS_PORT", "MIN_CONFIDENCE", "DEFAULT_DOMAIN",
		"SESSION_TTL", "SESSION_MAX_TURNS", "SESSION_MAX_TOKENS",
		"HISTORY_WINDOW", "REFRESH_WORKERS", "DISPATCH_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d", cfg.ServerPort)
	}
	if cfg.MinConfidence != 0.5 {
		t.Errorf("MinConfidence = %v", cfg.MinConfidence)
	}
	if cfg.DefaultDomain != "nutrition" {
		t.Errorf("DefaultDomain = %q", cfg.DefaultDomain)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("MIN_CONFIDENCE", "0.7")
	t.Setenv("SESSION_MAX_TURNS", "12")

	cfg, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.MinConfidence != 0.7 {
		t.Errorf("MinConfidence = %v", cfg.MinConfidence)
	}
	if cfg.MaxTurns != 12 {
		t.Errorf("MaxTurns = %d", cfg.MaxTurns)
	}
}
