package updater

import (
	"archive/tar"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{"same version", "v0.2.4", "v0.2.4", false},
		{"patch update", "v0.2.4", "v0.2.5", true},
		{"minor update", "v0.2.4", "v0.3.0", true},
		{"major update", "v0.2.4", "v1.0.0", true},
		{"current is newer", "v0.3.0", "v0.2.4", false},
		{"without v prefix", "0.2.4", "0.2.5", true},
		{"mixed prefixes", "v0.2.4", "0.2.5", true},
		{"dev version needs update", "dev", "v0.2.5", true},
		{"dev to dev", "dev", "dev", false},
		{"multi-digit versions", "v0.2.9", "v0.2.10", true},
		{"same major minor", "v1.2.3", "v1.2.3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NeedsUpdate(tt.current, tt.latest)
			if got != tt.want {
				t.Errorf("NeedsUpdate(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input string
		want  [3]int
	}{
		{"0.2.4", [3]int{0, 2, 4}},
		{"1.0.0", [3]int{1, 0, 0}},
		{"10.20.30", [3]int{10, 20, 30}},
		{"invalid", [3]int{0, 0, 0}},
		{"1.2", [3]int{1, 2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseVersion(tt.input)
			if got != tt.want {
				t.Errorf("parseVersion(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCheckLatestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name": "v0.2.5", "name": "v0.2.5"}`))
	}))
	defer server.Close()

	oldURL := githubAPIURL
	githubAPIURL = server.URL
	defer func() { githubAPIURL = oldURL }()

	version, err := CheckLatestVersion()
	if err != nil {
		t.Fatal(err)
	}
	if version != "v0.2.5" {
		t.Errorf("Version = %q, want v0.2.5", version)
	}
}

func TestCheckLatestVersion_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	oldURL := githubAPIURL
	githubAPIURL = server.URL
	defer func() { githubAPIURL = oldURL }()

	if _, err := CheckLatestVersion(); err == nil {
		t.Error("Expected error for non-200 API response")
	}
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()

	// Build an archive with the binary nested in a subdirectory
	archivePath := filepath.Join(dir, "release.tar.gz")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)

	content := []byte("#!/bin/sh\necho inbox-orch\n")
	if err := tw.WriteHeader(&tar.Header{
		Name:     "dist/inbox-orch",
		Mode:     0755,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gzw.Close()
	f.Close()

	if err := extractTarGz(archivePath, dir, "inbox-orch"); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "inbox-orch"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("Extracted content = %q, want original", got)
	}
}

func TestExtractTarGz_MissingBinary(t *testing.T) {
	dir := t.TempDir()

	archivePath := filepath.Join(dir, "release.tar.gz")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	tw.Close()
	gzw.Close()
	f.Close()

	if err := extractTarGz(archivePath, dir, "inbox-orch"); err == nil {
		t.Error("Expected error for archive without the binary")
	}
}

func TestReplaceBinary(t *testing.T) {
	dir := t.TempDir()

	currentPath := filepath.Join(dir, "inbox-orch")
	if err := os.WriteFile(currentPath, []byte("old"), 0755); err != nil {
		t.Fatal(err)
	}
	newPath := filepath.Join(dir, "inbox-orch.new")
	if err := os.WriteFile(newPath, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := replaceBinary(currentPath, newPath); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(currentPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("Installed content = %q, want new", got)
	}

	info, err := os.Stat(currentPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("Mode = %v, want permissions of the replaced binary", info.Mode().Perm())
	}

	if _, err := os.Stat(currentPath + ".old"); !os.IsNotExist(err) {
		t.Error("Backup should be removed after a successful install")
	}
}
