package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.MaxIterations != 5 || cfg.HistoryLimit != 50 {
		t.Errorf("unexpected loop defaults: %d / %d", cfg.MaxIterations, cfg.HistoryLimit)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("unexpected default model: %q", cfg.LLM.Model)
	}
	if cfg.DatabaseURL == "" {
		t.Error("database url not derived from data dir")
	}

	// The defaults were written back for the operator to edit.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("defaults not written: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("written config is not valid JSON: %v", err)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"listen_addr": ":9999", "max_iterations": 8, "llm": {"model": "gpt-4o"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("file value ignored: %q", cfg.ListenAddr)
	}
	if cfg.MaxIterations != 8 {
		t.Errorf("file value ignored: %d", cfg.MaxIterations)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("file value ignored: %q", cfg.LLM.Model)
	}
	// Untouched fields keep their defaults.
	if cfg.HistoryLimit != 50 {
		t.Errorf("default lost: %d", cfg.HistoryLimit)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JWT_SECRET_KEY", "env-secret")
	t.Setenv("DATABASE_URL", "/tmp/other.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key override ignored: %q", cfg.LLM.APIKey)
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Errorf("jwt override ignored: %q", cfg.JWT.Secret)
	}
	if cfg.DatabaseURL != "/tmp/other.db" {
		t.Errorf("database override ignored: %q", cfg.DatabaseURL)
	}
}
