// Package memory holds the named long-lived critique documents maintained by
// the reflection engine. Every mutation is written through to the durable
// blob store immediately; a failed write is logged and the in-memory copy
// stays authoritative for the rest of the process lifetime.
package memory

import (
	"encoding/json"
	"sync"

	"talenerd/internal/diff"
	"talenerd/internal/logging"
	"talenerd/internal/store"
)

// BlobKey is the fixed storage key for the persisted document set.
const BlobKey = "talenerd.memory"

// DocumentSet is the exported/persisted form of the store.
type DocumentSet struct {
	Documents     map[Name]string `json:"documents"`
	CritiqueCount int             `json:"critique_count"`
}

// Store owns the document set and its persistence.
type Store struct {
	mu            sync.RWMutex
	docs          map[Name]string
	critiqueCount int
	blobs         store.BlobStore
}

// NewStore loads the persisted document set from blobs, filling any missing
// document with its default template.
func NewStore(blobs store.BlobStore) *Store {
	s := &Store{
		docs:  make(map[Name]string),
		blobs: blobs,
	}

	for _, name := range AllNames() {
		s.docs[name] = DefaultTemplate(name)
	}

	if blobs == nil {
		return s
	}

	data, ok, err := blobs.Load(BlobKey)
	if err != nil {
		logging.MemoryWarn("Failed to load memory blob: %v", err)
		return s
	}
	if !ok {
		return s
	}

	var set DocumentSet
	if err := json.Unmarshal(data, &set); err != nil {
		logging.MemoryWarn("Failed to parse memory blob, using defaults: %v", err)
		return s
	}

	// Migration: a persisted set may miss documents added since it was
	// written; those keep their defaults.
	for name, text := range set.Documents {
		if text != "" {
			s.docs[name] = text
		}
	}
	s.critiqueCount = set.CritiqueCount

	logging.Memory("Loaded %d memory documents (critique_count=%d)", len(set.Documents), set.CritiqueCount)
	return s
}

// Read returns the current text of a named document. It never fails: an
// unknown or empty document reads as its default template.
func (s *Store) Read(name Name) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.docs[name]
	if !ok || text == "" {
		return DefaultTemplate(name)
	}
	return text
}

// ApplyReplacement unconditionally overwrites a document and persists.
// An empty replacement falls back to the default template so the non-empty
// invariant holds.
func (s *Store) ApplyReplacement(name Name, newText string) {
	if newText == "" {
		newText = DefaultTemplate(name)
	}

	s.mu.Lock()
	old := s.docs[name]
	s.docs[name] = newText
	s.mu.Unlock()

	logging.Memory("Replaced document %q: %s", name, diff.Summarize(old, newText))
	s.persist()
}

// ApplyDiff applies span-replacement instructions in order, each against the
// result of the previous. Instructions whose target occurrence is missing are
// skipped and logged; the batch never fails.
func (s *Store) ApplyDiff(name Name, instructions []diff.Instruction) (applied, skipped int) {
	s.mu.Lock()
	old := s.docs[name]
	if old == "" {
		old = DefaultTemplate(name)
	}
	result := diff.Apply(old, instructions)
	if result.Text == "" {
		result.Text = DefaultTemplate(name)
	}
	s.docs[name] = result.Text
	s.mu.Unlock()

	if result.Skipped > 0 {
		logging.MemoryWarn("ApplyDiff %q: %d/%d instructions skipped (span not found)",
			name, result.Skipped, len(instructions))
	}
	if result.Applied > 0 {
		logging.Memory("Patched document %q: %s", name, diff.Summarize(old, result.Text))
		s.persist()
	}
	return result.Applied, result.Skipped
}

// IncrementCritiqueCount bumps the rolling critiqued-call counter and
// persists it so the synthesis cadence survives restart.
func (s *Store) IncrementCritiqueCount() int {
	s.mu.Lock()
	s.critiqueCount++
	n := s.critiqueCount
	s.mu.Unlock()

	s.persist()
	return n
}

// CritiqueCount returns the rolling critiqued-call counter.
func (s *Store) CritiqueCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.critiqueCount
}

// Reset restores all documents to their default templates and zeroes the
// critique counter.
func (s *Store) Reset() {
	s.mu.Lock()
	for _, name := range AllNames() {
		s.docs[name] = DefaultTemplate(name)
	}
	s.critiqueCount = 0
	s.mu.Unlock()

	logging.Memory("Reset all documents to defaults")
	s.persist()
}

// Export returns a deep copy of the document set.
func (s *Store) Export() DocumentSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(map[Name]string, len(s.docs))
	for name, text := range s.docs {
		docs[name] = text
	}
	return DocumentSet{Documents: docs, CritiqueCount: s.critiqueCount}
}

// Import replaces the document set with the given one. Missing or empty
// documents fall back to their default templates.
func (s *Store) Import(set DocumentSet) {
	s.mu.Lock()
	for _, name := range AllNames() {
		text := set.Documents[name]
		if text == "" {
			text = DefaultTemplate(name)
		}
		s.docs[name] = text
	}
	s.critiqueCount = set.CritiqueCount
	s.mu.Unlock()

	logging.Memory("Imported document set (critique_count=%d)", set.CritiqueCount)
	s.persist()
}

// persist writes the full document set through to the blob store.
func (s *Store) persist() {
	if s.blobs == nil {
		return
	}

	data, err := json.Marshal(s.Export())
	if err != nil {
		logging.MemoryWarn("Failed to marshal memory set: %v", err)
		return
	}
	if err := s.blobs.Persist(BlobKey, data); err != nil {
		logging.MemoryWarn("Failed to persist memory set: %v", err)
	}
}
