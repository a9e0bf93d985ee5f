package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_TIMEOUT", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.URL != DefaultAPIURL {
		t.Errorf("API.URL: got %q, want %q", cfg.API.URL, DefaultAPIURL)
	}
	if got := cfg.API.Timeout(); got != 5*time.Second {
		t.Errorf("API.Timeout: got %v, want 5s", got)
	}
	if cfg.Session.WatchInterval() != time.Second {
		t.Errorf("Session.WatchInterval: got %v, want 1s", cfg.Session.WatchInterval())
	}
	if cfg.State.SecureToken {
		t.Error("State.SecureToken: got true, want false")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_URL", "https://todo.example.com")
	t.Setenv("NEXT_PUBLIC_API_TIMEOUT", "1500")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.URL != "https://todo.example.com" {
		t.Errorf("API.URL: got %q", cfg.API.URL)
	}
	if got := cfg.API.Timeout(); got != 1500*time.Millisecond {
		t.Errorf("API.Timeout: got %v, want 1.5s", got)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_TIMEOUT", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `api:
  url: http://backend:9090
  timeout_ms: 2000
display:
  group_by_priority: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.URL != "http://backend:9090" {
		t.Errorf("API.URL: got %q", cfg.API.URL)
	}
	if cfg.API.TimeoutMS != 2000 {
		t.Errorf("API.TimeoutMS: got %d, want 2000", cfg.API.TimeoutMS)
	}
	if !cfg.Display.GroupByPriority {
		t.Error("Display.GroupByPriority: got false, want true")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format: got %q, want default text", cfg.Log.Format)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_URL", "http://from-env:8080")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-url", "", "")
	flags.String("log-level", "", "")
	if err := flags.Parse([]string{"--api-url", "http://from-flag:8080"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), flags)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.URL != "http://from-flag:8080" {
		t.Errorf("API.URL: got %q, want flag value", cfg.API.URL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level: got %q, want default info", cfg.Log.Level)
	}
}

func TestSaveConfigThenLoad(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_TIMEOUT", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.API.URL = "http://saved:1234"
	cfg.State.SecureToken = true

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.API.URL != "http://saved:1234" {
		t.Errorf("API.URL: got %q", loaded.API.URL)
	}
	if !loaded.State.SecureToken {
		t.Error("State.SecureToken: got false, want true")
	}
}
