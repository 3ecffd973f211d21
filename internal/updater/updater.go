// Package updater keeps an installed inbox-orch binary current with the
// published GitHub releases.
package updater

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	githubRepo          = "hochfrequenz/inbox-orchestrator"
	binaryName          = "inbox-orch"
	versionCheckTimeout = 10 * time.Second
	archiveFetchTimeout = 5 * time.Minute
)

// githubAPIURL is a var so tests can point it at a stub server
var githubAPIURL = "https://api.github.com/repos/" + githubRepo + "/releases/latest"

// CheckLatestVersion asks the GitHub API for the newest release tag
func CheckLatestVersion() (string, error) {
	req, err := http.NewRequest(http.MethodGet, githubAPIURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	client := &http.Client{Timeout: versionCheckTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to check for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to parse release info: %w", err)
	}
	return release.TagName, nil
}

// NeedsUpdate reports whether latest is a newer release than current.
// Both "vX.Y.Z" and "X.Y.Z" forms are accepted.
func NeedsUpdate(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	// Source builds report "dev" and always take the published release
	if current == "dev" {
		return latest != "dev"
	}

	return compareVersions(parseVersion(latest), parseVersion(current)) > 0
}

// compareVersions orders two parsed versions, highest component first
func compareVersions(a, b [3]int) int {
	for i := range a {
		switch {
		case a[i] > b[i]:
			return 1
		case a[i] < b[i]:
			return -1
		}
	}
	return 0
}

// parseVersion extracts major, minor, patch from a version string
func parseVersion(v string) [3]int {
	var out [3]int
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}

// SelfUpdate downloads the given release and swaps it in for the running
// executable
func SelfUpdate(targetVersion string) error {
	staging, err := os.MkdirTemp("", "inbox-orch-update-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	archivePath := filepath.Join(staging, "release.tar.gz")
	if err := fetchArchive(assetURL(targetVersion), archivePath); err != nil {
		return fmt.Errorf("failed to download update: %w", err)
	}

	if err := extractTarGz(archivePath, staging, binaryName); err != nil {
		return fmt.Errorf("failed to extract update: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	if exe, err = filepath.EvalSymlinks(exe); err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	if err := replaceBinary(exe, filepath.Join(staging, binaryName)); err != nil {
		return fmt.Errorf("failed to install new binary: %w", err)
	}
	return nil
}

// assetURL builds the download URL for a release archive. Archives are
// published as inbox-orch_0.2.4_linux_amd64.tar.gz under the version tag.
func assetURL(version string) string {
	archive := fmt.Sprintf("%s_%s_%s_%s.tar.gz",
		binaryName, strings.TrimPrefix(version, "v"), runtime.GOOS, runtime.GOARCH)
	return fmt.Sprintf("https://github.com/%s/releases/download/%s/%s", githubRepo, version, archive)
}

// fetchArchive streams a release archive to a local file
func fetchArchive(url, dest string) error {
	client := &http.Client{Timeout: archiveFetchTimeout}

	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// extractTarGz pulls one named file out of a tar.gz archive. Release
// archives sometimes nest the binary under dist/, so entries match on
// their base name.
func extractTarGz(archivePath, destDir, targetFile string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("binary %s not found in archive", targetFile)
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg || filepath.Base(hdr.Name) != targetFile {
			continue
		}

		out, err := os.OpenFile(filepath.Join(destDir, targetFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	}
}

// replaceBinary swaps newPath in at currentPath, keeping the installed
// permissions. The previous binary is restored if the copy fails.
func replaceBinary(currentPath, newPath string) error {
	info, err := os.Stat(currentPath)
	if err != nil {
		return err
	}

	backup := currentPath + ".old"
	os.Remove(backup)
	if err := os.Rename(currentPath, backup); err != nil {
		return fmt.Errorf("failed to back up running binary: %w", err)
	}

	// Copy instead of rename, the staging dir may be on another filesystem
	if err := installCopy(newPath, currentPath, info.Mode()); err != nil {
		os.Rename(backup, currentPath)
		return fmt.Errorf("failed to write new binary: %w", err)
	}
	os.Remove(backup)
	return nil
}

func installCopy(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
