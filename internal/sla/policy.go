// Package sla implements deadline calculation, breach detection and the
// escalation policy applied when deadlines are missed.
package sla

import (
	"time"

	"github.com/bissquit/incident-desk/internal/domain"
)

// Default response windows per severity tier.
const (
	DefaultCriticalWindow = 4 * time.Hour
	DefaultHighWindow     = 8 * time.Hour
	DefaultMediumWindow   = 24 * time.Hour
	DefaultLowWindow      = 48 * time.Hour
)

// Policy holds the per-severity response windows. The zero value is not
// usable; construct via Default or from config.
type Policy struct {
	windows map[domain.Severity]time.Duration
}

// Default returns the policy with the standard severity windows.
func Default() Policy {
	return New(map[domain.Severity]time.Duration{
		domain.SeverityCritical: DefaultCriticalWindow,
		domain.SeverityHigh:     DefaultHighWindow,
		domain.SeverityMedium:   DefaultMediumWindow,
		domain.SeverityLow:      DefaultLowWindow,
	})
}

// New creates a policy from explicit severity windows. Severities missing
// from the map fall back to the defaults.
func New(windows map[domain.Severity]time.Duration) Policy {
	p := Policy{windows: map[domain.Severity]time.Duration{
		domain.SeverityCritical: DefaultCriticalWindow,
		domain.SeverityHigh:     DefaultHighWindow,
		domain.SeverityMedium:   DefaultMediumWindow,
		domain.SeverityLow:      DefaultLowWindow,
	}}
	for sev, d := range windows {
		if d > 0 {
			p.windows[sev] = d
		}
	}
	return p
}

// Window returns the response window for a severity.
func (p Policy) Window(sev domain.Severity) time.Duration {
	return p.windows[sev]
}

// Deadline computes the SLA deadline for an incident created at createdAt.
// Fixed at creation, never recalculated.
func (p Policy) Deadline(createdAt time.Time, sev domain.Severity) time.Time {
	return createdAt.Add(p.windows[sev])
}

// Breached reports whether the incident has missed its SLA deadline.
// Resolved and Closed incidents are exempt.
func Breached(inc domain.Incident, now time.Time) bool {
	if inc.Status.IsSettled() {
		return false
	}
	return now.After(inc.SLADeadline)
}

// CanEscalate reports whether the incident is below the escalation cap.
// Gates manual escalation as well as the automatic path.
func CanEscalate(inc domain.Incident) bool {
	return inc.EscalationLevel < domain.MaxEscalationLevel
}

// Escalate applies breach escalation to an incident and reports whether
// anything changed. The input is never mutated.
//
// No change when the incident is not breached, or when it is already
// Escalated at the level cap. Otherwise the returned copy has the level
// incremented (capped), status Escalated and UpdatedAt refreshed; reaching
// the cap forces assignment to Admin.
func Escalate(inc domain.Incident, now time.Time) (domain.Incident, bool) {
	if !Breached(inc, now) {
		return inc, false
	}
	if inc.Status == domain.StatusEscalated && inc.EscalationLevel >= domain.MaxEscalationLevel {
		return inc, false
	}

	out := inc
	out.EscalationLevel = min(inc.EscalationLevel+1, domain.MaxEscalationLevel)
	out.Status = domain.StatusEscalated
	out.UpdatedAt = now
	if out.EscalationLevel >= domain.MaxEscalationLevel {
		out.AssignedTo = domain.AdminAssignee
	}
	return out, true
}
