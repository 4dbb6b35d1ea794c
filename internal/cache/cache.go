// Package cache provides the content-addressed document cache. A hit
// short-circuits text acquisition only; cached text is always re-run through
// the current pattern set so behavior stays correct when patterns change.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mhartmann/sortier/internal/model"
)

// Fingerprint returns the hex sha256 digest of the document bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// Entry is what the cache stores per content hash: the acquired text and the
// last extraction result. The final route is deliberately not part of it.
type Entry struct {
	Text   string                 `json:"-"`
	Method model.ExtractionMethod `json:"method"`
	Fields model.PartialRecord    `json:"fields"`
}

// Store persists two artifacts per hash under the cache directory: the raw
// text ("text/<hash>.txt") and the structured metadata ("meta/<hash>.json").
// Entries are never mutated, only replaced; concurrent writers for the same
// hash race harmlessly since content is identical for identical bytes.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a cache store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Lookup returns the cached entry for a hash, or false on a miss. A readable
// text artifact with an unreadable metadata artifact still counts as a hit;
// the fields are simply re-extracted downstream.
func (s *Store) Lookup(hash string) (*Entry, bool) {
	text, err := os.ReadFile(s.textPath(hash))
	if err != nil {
		return nil, false
	}
	entry := &Entry{Text: string(text), Method: model.MethodNativeText}

	if meta, err := os.ReadFile(s.metaPath(hash)); err == nil {
		var stored Entry
		if err := json.Unmarshal(meta, &stored); err == nil {
			entry.Method = stored.Method
			entry.Fields = stored.Fields
		}
	}
	return entry, true
}

// Put writes both artifacts for a hash, replacing any previous entry.
func (s *Store) Put(hash string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.textPath(hash)), 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.metaPath(hash)), 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := os.WriteFile(s.textPath(hash), []byte(entry.Text), 0o640); err != nil {
		return fmt.Errorf("failed to write text artifact: %w", err)
	}
	meta, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(hash), meta, 0o640); err != nil {
		return fmt.Errorf("failed to write metadata artifact: %w", err)
	}
	return nil
}

func (s *Store) textPath(hash string) string {
	return filepath.Join(s.dir, "text", hash+".txt")
}

func (s *Store) metaPath(hash string) string {
	return filepath.Join(s.dir, "meta", hash+".json")
}
