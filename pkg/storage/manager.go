// Package storage lays fetched pages and images out on disk. Every target
// gets its own directory under the base; files land via a temp-file write
// and atomic rename so a crash never leaves a partial image behind.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var unsafePathChars = regexp.MustCompile(`[^\w.-]+`)

// Manager handles on-disk layout for fetched targets
type Manager struct {
	baseDir string
	mu      sync.Mutex
	created map[string]bool
}

// NewManager creates a storage manager rooted at baseDir
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		baseDir: baseDir,
		created: make(map[string]bool),
	}, nil
}

// BaseDir returns the root output directory
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// TargetDir ensures the directory for one target exists and returns its path.
// The name is sanitized so URL slugs and composite ids are safe path segments.
func (m *Manager) TargetDir(name string) (string, error) {
	safe := unsafePathChars.ReplaceAllString(name, "_")
	if safe == "" {
		safe = "_"
	}
	dir := filepath.Join(m.baseDir, safe)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created[dir] {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create target directory: %w", err)
		}
		m.created[dir] = true
	}
	return dir, nil
}

// SavePage writes the raw page markup as page.html in the target directory
func (m *Manager) SavePage(dir string, html []byte) error {
	return m.save(filepath.Join(dir, "page.html"), strings.NewReader(string(html)))
}

// SaveImage streams image bytes to "<ordinal><ext>" in the target directory.
// Ordinals are 1-based document positions, so filenames are deterministic for
// a given page.
func (m *Manager) SaveImage(dir string, ordinal int, ext string, r io.Reader) (string, error) {
	if ext == "" {
		ext = ".jpg"
	}
	filename := filepath.Join(dir, fmt.Sprintf("%d%s", ordinal, ext))
	if err := m.save(filename, r); err != nil {
		return "", err
	}
	return filename, nil
}

// save writes to a temp file next to the destination and renames into place
func (m *Manager) save(filename string, r io.Reader) error {
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write file data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// ExtFromName returns a usable image extension from a URL path or filename,
// falling back to .jpg when the name carries none.
func ExtFromName(name string) string {
	base := name
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	ext := strings.ToLower(filepath.Ext(base))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4":
		return ext
	default:
		return ".jpg"
	}
}
