// Package audit provides the append-only history of incident changes.
package audit

import (
	"strings"
	"sync"

	"github.com/bissquit/incident-desk/internal/domain"
	"github.com/bissquit/incident-desk/internal/pkg/clock"
	"github.com/google/uuid"
)

// Log is an append-only, insertion-ordered sequence of audit entries.
// Entries are never mutated or deleted; the entry count only grows.
type Log struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries []domain.AuditEntry
}

// NewLog creates an empty audit log using the given clock for timestamps.
func NewLog(clk clock.Clock) *Log {
	return &Log{clk: clk}
}

// Append records one incident change and returns the immutable entry.
// Reason is trimmed before storage.
func (l *Log) Append(incidentID string, prev, next domain.Status, changedBy domain.Role, reason string) domain.AuditEntry {
	entry := domain.AuditEntry{
		ID:         uuid.NewString(),
		IncidentID: incidentID,
		PrevStatus: prev,
		NewStatus:  next,
		ChangedBy:  changedBy,
		Timestamp:  l.clk.Now(),
		Reason:     strings.TrimSpace(reason),
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	return entry
}

// ForIncident returns the entries for one incident, oldest first.
func (l *Log) ForIncident(incidentID string) []domain.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.AuditEntry
	for _, e := range l.entries {
		if e.IncidentID == incidentID {
			out = append(out, e)
		}
	}
	return out
}

// All returns every entry, oldest first. Callers wanting newest-first must
// reverse at the presentation boundary, not here.
func (l *Log) All() []domain.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries recorded so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
