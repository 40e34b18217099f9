// Package study keeps the list of simulated patients and derives curves,
// clearance times, summaries and exports from it.
package study

import (
	"sync"

	"github.com/mrcode/bioclear/internal/models"
)

// Study is an append-only list of patient records in insertion order
type Study struct {
	mu      sync.RWMutex
	records []models.StudyRecord
}

// New creates an empty study
func New() *Study {
	return &Study{}
}

// Add appends a record and returns its 0-based position
func (s *Study) Add(r models.StudyRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
	return len(s.records) - 1
}

// Records returns a copy of all records
func (s *Study) Records() []models.StudyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StudyRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records
func (s *Study) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// At returns the record at position i
func (s *Study) At(i int) (models.StudyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.records) {
		return models.StudyRecord{}, false
	}
	return s.records[i], true
}

// Clear removes every record and returns how many were dropped
func (s *Study) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	s.records = nil
	return n
}
