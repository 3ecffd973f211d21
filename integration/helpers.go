//go:build integration

package integration

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// TempDBPath returns an archive database path in a fresh temp directory
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "runs.db")
}

// TempConfigPath returns a config file path in a fresh temp directory
func TempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.toml")
}

// StubPlatform starts a fake agent platform that answers every invocation
// with the given settlement envelope
func StubPlatform(t *testing.T, envelope string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(envelope))
	}))
	t.Cleanup(server.Close)
	return server
}

// WriteTestConfig writes a config pointing at the stub platform, with the
// archive enabled and notifications off
func WriteTestConfig(t *testing.T, platformURL, dbPath string) string {
	t.Helper()
	path := TempConfigPath(t)

	config := `[agent]
base_url = "` + platformURL + `"
agent_id = "email-delegation-orchestrator"
timeout_seconds = 5

[run]
phase_interval_seconds = 1
complete_linger_seconds = 1

[notifications]
desktop = false

[archive]
enabled = true
database_path = "` + dbPath + `"
`

	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	return path
}
