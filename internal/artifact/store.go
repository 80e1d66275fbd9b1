// Package artifact provides the durable keyed JSON store that is the single
// source of truth for pipeline output. Single-writer-per-project is assumed:
// concurrent multi-process writers to one artifacts directory are unsupported.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stage artifact keys.
const (
	KeyWorld      = "world.json"
	KeyTheme      = "theme.json"
	KeyCharacters = "characters.json"
	KeyOutline    = "outline.json"
	KeyProgress   = "progress.json"
)

// PlanKey returns the artifact key for a chapter's scene plan.
func PlanKey(n int) string {
	return fmt.Sprintf("chapters/chapter-%02d-plan.json", n)
}

// TextKey returns the artifact key for a chapter's text.
func TextKey(n int) string {
	return fmt.Sprintf("chapters/chapter-%02d-text.json", n)
}

// ReviewKey returns the artifact key for a chapter's consistency review.
func ReviewKey(n int) string {
	return fmt.Sprintf("reviews/review-%02d.json", n)
}

// RevisionKey returns the artifact key for a chapter's revision record.
func RevisionKey(n int) string {
	return fmt.Sprintf("revisions/revision-%02d.json", n)
}

// Store reads and writes JSON artifacts under a project's artifacts directory.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// EnsureLayout creates the artifacts directory structure.
func (s *Store) EnsureLayout() error {
	dirs := []string{
		s.Dir,
		filepath.Join(s.Dir, "chapters"),
		filepath.Join(s.Dir, "reviews"),
		filepath.Join(s.Dir, "revisions"),
		filepath.Join(s.Dir, "backups"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating artifacts dir %s: %w", d, err)
		}
	}
	return nil
}

// Path returns the absolute path for a key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(key))
}

// Exists reports whether an artifact is present.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// ReadRaw returns an artifact's raw JSON bytes.
func (s *Store) ReadRaw(key string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// ReadJSON decodes an artifact into v.
func (s *Store) ReadJSON(key string, v any) error {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// WriteJSON encodes v and writes it atomically. The artifact is either fully
// written or untouched; a crash mid-write never leaves a partial file.
func (s *Store) WriteJSON(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return writeFileAtomic(s.Path(key), data, 0644)
}

// WriteRaw writes pre-encoded JSON atomically after checking it is valid.
func (s *Store) WriteRaw(key string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("artifact %s: invalid JSON", key)
	}
	return writeFileAtomic(s.Path(key), data, 0644)
}

// Backup copies an artifact into backups/ with a timestamp suffix and returns
// the backup key. Used before the revision gate replaces chapter text.
func (s *Store) Backup(key string) (string, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return "", fmt.Errorf("backing up %s: %w", key, err)
	}
	base := filepath.Base(key)
	bak := fmt.Sprintf("backups/%s.%s.bak", base, time.Now().UTC().Format("20060102T150405"))
	if err := writeFileAtomic(s.Path(bak), data, 0644); err != nil {
		return "", fmt.Errorf("backing up %s: %w", key, err)
	}
	return bak, nil
}
