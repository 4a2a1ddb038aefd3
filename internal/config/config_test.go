package config

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/codetrek/codetrek/internal/testutil"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Backend.Token = "abc"
	cfg.Sandbox.Engine = EngineNode
	cfg.Session.Topics = []string{"Heaps"}

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if loaded.Backend.Token != "abc" {
		t.Errorf("Token: got %q, want abc", loaded.Backend.Token)
	}
	if loaded.Sandbox.Engine != EngineNode {
		t.Errorf("Engine: got %q, want node", loaded.Sandbox.Engine)
	}
	if len(loaded.Session.Topics) != 1 || loaded.Session.Topics[0] != "Heaps" {
		t.Errorf("Topics: got %v", loaded.Session.Topics)
	}
}

func TestReadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	dir := testutil.TempProject(t, testutil.ConfigProject("backend:\n  base_url: http://example.test\n"))

	cfg, err := ReadConfig(dir)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Backend.BaseURL != "http://example.test" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d, want default 60", cfg.Backend.TimeoutSeconds)
	}
	if cfg.Sandbox.TimeoutMs != 2000 {
		t.Errorf("TimeoutMs = %d, want default 2000", cfg.Sandbox.TimeoutMs)
	}
	if cfg.Session.StarterCode != "// Start coding here..." {
		t.Errorf("StarterCode = %q", cfg.Session.StarterCode)
	}
}

func TestReadConfigErrors(t *testing.T) {
	if _, err := ReadConfig(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v, want ErrNotExist", err)
	}
	dir := testutil.TempProject(t, testutil.ConfigProject("backend: [unclosed\n"))
	if _, err := ReadConfig(dir); err == nil {
		t.Error("malformed YAML: expected error")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:8001" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if len(cfg.TopicNames()) != 6 {
		t.Errorf("topics = %v", cfg.TopicNames())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CODETREK_BACKEND_BASE_URL", "http://override:9000")
	t.Setenv("CODETREK_BACKEND_TOKEN", "envtok")
	t.Setenv("CODETREK_SANDBOX_TIMEOUT_MS", "500")
	t.Setenv("CODETREK_SESSION_TOPICS", "Tries,Heaps")
	t.Setenv("CODETREK_FEED_ADDR", "127.0.0.1:9999")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://override:9000" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Token != "envtok" {
		t.Errorf("Token = %q", cfg.Backend.Token)
	}
	if cfg.Sandbox.TimeoutMs != 500 {
		t.Errorf("TimeoutMs = %d", cfg.Sandbox.TimeoutMs)
	}
	if strings.Join(cfg.Session.Topics, "|") != "Tries|Heaps" {
		t.Errorf("Topics = %v", cfg.Session.Topics)
	}
	if cfg.Feed.Addr != "127.0.0.1:9999" {
		t.Errorf("Feed.Addr = %q", cfg.Feed.Addr)
	}
	if cfg.Health.FailureThreshold != 3 {
		t.Errorf("unset variable changed FailureThreshold to %d", cfg.Health.FailureThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Session.DefaultLevel = "expert" }, "default_level"},
		{"bad engine", func(c *Config) { c.Sandbox.Engine = "wasm" }, "sandbox.engine"},
		{"no topics", func(c *Config) { c.Session.Topics = nil }, "topics"},
		{"no base url", func(c *Config) { c.Backend.BaseURL = "" }, "base_url"},
		{"zero timeout", func(c *Config) { c.Sandbox.TimeoutMs = 0 }, "timeout_ms"},
		{"negative memory", func(c *Config) { c.Sandbox.MemoryMB = -1 }, "memory_mb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("/root", ".codetrek/x.db"); got != "/root/.codetrek/x.db" {
		t.Errorf("Resolve relative = %q", got)
	}
	if got := Resolve("/root", "/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("Resolve absolute = %q", got)
	}
	if got := Resolve("/root", ""); got != "" {
		t.Errorf("Resolve empty = %q", got)
	}
}
