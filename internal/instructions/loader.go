// Package instructions builds the natural-language instructions sent to the
// delegation agent. Templates ship embedded and can be overridden per user.
package instructions

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
)

// Library manages instruction templates with override support.
type Library struct {
	overrideDirs []string // Directories to check for overrides (in priority order)
	cache        map[string]*template.Template
	metaCache    map[string]*Meta
	mu           sync.RWMutex
}

// Meta holds frontmatter metadata for an instruction template.
type Meta struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Agent       string `yaml:"agent"`
}

// NewLibrary creates a library with the given override directories.
// Directories are checked in order; first match wins.
func NewLibrary(overrideDirs ...string) *Library {
	return &Library{
		overrideDirs: overrideDirs,
		cache:        make(map[string]*template.Template),
		metaCache:    make(map[string]*Meta),
	}
}

// DefaultLibrary creates a library that honors user overrides in
// ~/.config/inbox-orch/instructions/
func DefaultLibrary() *Library {
	home, _ := os.UserHomeDir()
	return NewLibrary(filepath.Join(home, ".config", "inbox-orch", "instructions"))
}

// loadContent loads raw content from override dirs or the embedded FS.
func (l *Library) loadContent(path string) ([]byte, error) {
	for _, dir := range l.overrideDirs {
		fullPath := filepath.Join(dir, filepath.Base(path))
		if data, err := os.ReadFile(fullPath); err == nil {
			return data, nil
		}
	}
	return fs.ReadFile(embeddedFS, path)
}

// parseFrontmatter splits content into frontmatter and body.
func parseFrontmatter(content []byte) (*Meta, string, error) {
	str := string(content)

	if !strings.HasPrefix(str, "---\n") {
		return nil, str, nil // No frontmatter
	}

	end := strings.Index(str[4:], "\n---\n")
	if end == -1 {
		return nil, str, nil // Malformed, treat as no frontmatter
	}

	frontmatter := str[4 : 4+end]
	body := str[4+end+5:] // Skip closing "---\n"

	var meta Meta
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	return &meta, body, nil
}

// LoadTemplate loads and parses a template by path (e.g. "templates/delegation_run.md").
func (l *Library) LoadTemplate(path string) (*template.Template, *Meta, error) {
	l.mu.RLock()
	if tmpl, ok := l.cache[path]; ok {
		meta := l.metaCache[path]
		l.mu.RUnlock()
		return tmpl, meta, nil
	}
	l.mu.RUnlock()

	content, err := l.loadContent(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}

	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	tmpl, err := template.New(path).Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("compile template %s: %w", path, err)
	}

	l.mu.Lock()
	l.cache[path] = tmpl
	l.metaCache[path] = meta
	l.mu.Unlock()

	return tmpl, meta, nil
}

// Execute loads and executes a template with the given data.
func (l *Library) Execute(path string, data interface{}) (string, error) {
	tmpl, _, err := l.LoadTemplate(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", path, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// RetryData holds template variables for the notification retry instruction.
type RetryData struct {
	Title    string
	Assignee string
	Channel  string
}

// RunInstruction builds the instruction for a full delegation run.
func (l *Library) RunInstruction() (string, error) {
	return l.Execute("templates/delegation_run.md", nil)
}

// RetryInstruction builds the instruction to resend one teammate notification.
func (l *Library) RetryInstruction(item domain.DelegationItem) (string, error) {
	channel := item.Channel
	if channel == "" {
		channel = "their preferred channel"
	}
	return l.Execute("templates/notification_retry.md", RetryData{
		Title:    item.Title,
		Assignee: item.Assignee,
		Channel:  channel,
	})
}

// List returns metadata for all embedded instruction templates.
func (l *Library) List() ([]*Meta, error) {
	entries, err := fs.ReadDir(embeddedFS, "templates")
	if err != nil {
		return nil, err
	}

	var result []*Meta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := "templates/" + entry.Name()
		_, meta, err := l.LoadTemplate(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if meta != nil {
			result = append(result, meta)
		}
	}

	return result, nil
}

// ClearCache clears the template cache (useful after editing overrides).
func (l *Library) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[string]*template.Template)
	l.metaCache = make(map[string]*Meta)
	l.mu.Unlock()
}
