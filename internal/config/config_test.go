package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Agent.AgentID != "email-delegation-orchestrator" {
		t.Errorf("Agent.AgentID = %q, want email-delegation-orchestrator", cfg.Agent.AgentID)
	}
	if cfg.Agent.TimeoutSeconds != 90 {
		t.Errorf("Agent.TimeoutSeconds = %d, want 90", cfg.Agent.TimeoutSeconds)
	}
	if cfg.Web.Port != 8484 {
		t.Errorf("Web.Port = %d, want 8484", cfg.Web.Port)
	}
	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("Web.Host = %q, want 127.0.0.1", cfg.Web.Host)
	}
	if !cfg.Notifications.Desktop {
		t.Error("Notifications.Desktop = false, want true")
	}
	if cfg.Schedule.Enabled {
		t.Error("Schedule.Enabled = true, want false by default")
	}
	if cfg.Schedule.Cron != "0 8 * * 1-5" {
		t.Errorf("Schedule.Cron = %q", cfg.Schedule.Cron)
	}
	if cfg.Archive.Enabled {
		t.Error("Archive.Enabled = true, want false by default")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[agent]
base_url = "https://platform.example.com/api/invoke"
api_key = "sk-test"
timeout_seconds = 30

[web]
port = 9000

[archive]
enabled = true
database_path = "~/archive/runs.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Agent.BaseURL != "https://platform.example.com/api/invoke" {
		t.Errorf("Agent.BaseURL = %q", cfg.Agent.BaseURL)
	}
	if cfg.Agent.TimeoutSeconds != 30 {
		t.Errorf("Agent.TimeoutSeconds = %d, want 30", cfg.Agent.TimeoutSeconds)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Web.Port = %d, want 9000", cfg.Web.Port)
	}
	// Sections absent from the file keep their defaults
	if cfg.Agent.AgentID != "email-delegation-orchestrator" {
		t.Errorf("Agent.AgentID = %q, want default", cfg.Agent.AgentID)
	}
	if !cfg.Archive.Enabled {
		t.Error("Archive.Enabled = false, want true")
	}
	home, _ := os.UserHomeDir()
	if cfg.Archive.DatabasePath != filepath.Join(home, "archive", "runs.db") {
		t.Errorf("Archive.DatabasePath = %q, want expanded path", cfg.Archive.DatabasePath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults for missing file", err)
	}
	if cfg.Web.Port != 8484 {
		t.Errorf("Web.Port = %d, want default", cfg.Web.Port)
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Agent.BaseURL = "https://platform.example.com/api/invoke"
	cfg.Display.SampleData = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Agent.BaseURL != cfg.Agent.BaseURL {
		t.Errorf("BaseURL = %q, want %q", loaded.Agent.BaseURL, cfg.Agent.BaseURL)
	}
	if !loaded.Display.SampleData {
		t.Error("Display.SampleData = false after round trip")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if got := cfg.Agent.Timeout(); got != 90*time.Second {
		t.Errorf("Timeout() = %v, want 90s", got)
	}
	if got := cfg.Run.PhaseInterval(); got != 2*time.Second {
		t.Errorf("PhaseInterval() = %v, want 2s", got)
	}
	if got := cfg.Run.CompleteLinger(); got != 3*time.Second {
		t.Errorf("CompleteLinger() = %v, want 3s", got)
	}

	cfg.Agent.TimeoutSeconds = 0
	if got := cfg.Agent.Timeout(); got != 90*time.Second {
		t.Errorf("Timeout() with zero = %v, want fallback 90s", got)
	}
	cfg.Agent.TimeoutSeconds = 15
	if got := cfg.Agent.Timeout(); got != 15*time.Second {
		t.Errorf("Timeout() = %v, want 15s", got)
	}
}

func TestWebConfig_Addr(t *testing.T) {
	w := WebConfig{Host: "0.0.0.0", Port: 9999}
	if got := w.Addr(); got != "0.0.0.0:9999" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFindLocalConfig(t *testing.T) {
	root := t.TempDir()
	subdir := filepath.Join(root, "sub", "dir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}

	localConfig := filepath.Join(root, LocalConfigName)
	if err := os.WriteFile(localConfig, []byte("[web]\nport = 7000"), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	if err := os.Chdir(subdir); err != nil {
		t.Fatal(err)
	}

	found := FindLocalConfig()
	// Resolve symlinks before comparing; TempDir may sit behind one.
	wantResolved, _ := filepath.EvalSymlinks(localConfig)
	gotResolved, _ := filepath.EvalSymlinks(found)
	if gotResolved != wantResolved {
		t.Errorf("FindLocalConfig() = %q, want %q", found, localConfig)
	}
}

func TestFindLocalConfig_NotFound(t *testing.T) {
	root := t.TempDir()

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}

	found := FindLocalConfig()
	if found != "" {
		t.Errorf("FindLocalConfig() = %q, want empty string", found)
	}
}

func TestLoadWithLocalFallback_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	explicitPath := filepath.Join(dir, "explicit.toml")

	content := `[agent]
agent_id = "explicit-agent"
`
	if err := os.WriteFile(explicitPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, used, err := LoadWithLocalFallback(explicitPath)
	if err != nil {
		t.Fatal(err)
	}
	if used != explicitPath {
		t.Errorf("used = %q, want %q", used, explicitPath)
	}
	if cfg.Agent.AgentID != "explicit-agent" {
		t.Errorf("Agent.AgentID = %q, want explicit-agent", cfg.Agent.AgentID)
	}
}

func TestLoadWithLocalFallback_LocalConfig(t *testing.T) {
	root := t.TempDir()
	localConfig := filepath.Join(root, LocalConfigName)

	content := `[agent]
agent_id = "local-agent"
`
	if err := os.WriteFile(localConfig, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadWithLocalFallback("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.AgentID != "local-agent" {
		t.Errorf("Agent.AgentID = %q, want local-agent", cfg.Agent.AgentID)
	}
}
