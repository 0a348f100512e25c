package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("http port = %d", cfg.HTTPPort)
	}
	if cfg.Agent.ToolTimeout != 60*time.Second {
		t.Errorf("tool timeout = %v", cfg.Agent.ToolTimeout)
	}
	if cfg.Agent.PendingTTL != 5*time.Minute {
		t.Errorf("pending ttl = %v", cfg.Agent.PendingTTL)
	}
	if cfg.Agent.PatchSimilarity != 0.72 {
		t.Errorf("patch similarity = %v", cfg.Agent.PatchSimilarity)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
http_port = 9090
log_level = "debug"

[llm]
base_url = "http://llm:4000"
model = "test-model"
temperature = 0.1

[agent]
max_iterations = 5
tool_timeout_sec = 30
patch_similarity = 0.9
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 9090 || cfg.LogLevel != "debug" {
		t.Errorf("server config = %d %q", cfg.HTTPPort, cfg.LogLevel)
	}
	if cfg.LLM.Model != "test-model" || cfg.LLM.Temperature != 0.1 {
		t.Errorf("llm config = %+v", cfg.LLM)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("max iterations = %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.ToolTimeout != 30*time.Second {
		t.Errorf("tool timeout = %v", cfg.Agent.ToolTimeout)
	}
	if cfg.Agent.PatchSimilarity != 0.9 {
		t.Errorf("patch similarity = %v", cfg.Agent.PatchSimilarity)
	}
	// Unset fields keep their defaults.
	if cfg.LLM.MaxTokens != 8096 {
		t.Errorf("max tokens = %d", cfg.LLM.MaxTokens)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("PENDING_TTL_SEC", "10")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 7070 {
		t.Errorf("http port = %d", cfg.HTTPPort)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Agent.PendingTTL != 10*time.Second {
		t.Errorf("pending ttl = %v", cfg.Agent.PendingTTL)
	}
}
