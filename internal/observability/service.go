// Package observability keeps a bounded in-memory log of recent evaluations
// and configures OpenTelemetry tracing.
package observability

import (
	"sync"
	"time"

	"github.com/crsarena/arena-eval/internal/pkg/logger"
)

const defaultMaxEntries = 10000

// Service records recent evaluations.
type Service struct {
	mu      sync.RWMutex
	entries []EvaluationLogEntry
	maxLogs int
	log     *logger.Logger
}

// NewService creates a new observability service. maxEntries <= 0 selects
// the default capacity.
func NewService(log *logger.Logger, maxEntries int) *Service {
	if log == nil {
		log = logger.Discard()
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Service{
		entries: make([]EvaluationLogEntry, 0, min(maxEntries, 1000)),
		maxLogs: maxEntries,
		log:     log,
	}
}

// LogEvaluation records an evaluation outcome.
func (s *Service) LogEvaluation(entry EvaluationLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)

	if len(s.entries) > s.maxLogs {
		// Drop the oldest tenth to amortize the copy.
		drop := max(s.maxLogs/10, len(s.entries)-s.maxLogs)
		s.entries = append(s.entries[:0], s.entries[drop:]...)
	}
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Service) Recent(limit int) []EvaluationLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]EvaluationLogEntry, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// InRange returns entries recorded within [from, to], oldest first.
func (s *Service) InRange(from, to time.Time) []EvaluationLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []EvaluationLogEntry
	for _, e := range s.entries {
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of retained entries.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
