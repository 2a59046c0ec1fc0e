// Package domain contains the incident lifecycle types shared across the application.
package domain

import "time"

// Role identifies who is performing an operation.
type Role string

// Roles.
const (
	RoleReporter Role = "Reporter"
	RoleResolver Role = "Resolver"
	RoleAdmin    Role = "Admin"

	// RoleSystem is the pseudo-role used for SLA-triggered transitions.
	RoleSystem Role = "System"
)

// IsValid checks if the role is one a human actor can hold.
func (r Role) IsValid() bool {
	return r == RoleReporter || r == RoleResolver || r == RoleAdmin
}

// Status represents the lifecycle state of an incident.
type Status string

// Statuses.
const (
	StatusOpen       Status = "Open"
	StatusAssigned   Status = "Assigned"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
	StatusEscalated  Status = "Escalated"
)

// IsValid checks if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusAssigned || s == StatusInProgress ||
		s == StatusResolved || s == StatusClosed || s == StatusEscalated
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusClosed
}

// IsSettled reports whether the incident left active work. Settled incidents
// are exempt from SLA breach checks and never escalate.
func (s Status) IsSettled() bool {
	return s == StatusResolved || s == StatusClosed
}

// Severity represents the impact tier of an incident. It is immutable after
// creation and determines the SLA deadline.
type Severity string

// Severity levels.
const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// IsValid checks if the severity is a known tier.
func (s Severity) IsValid() bool {
	return s == SeverityCritical || s == SeverityHigh ||
		s == SeverityMedium || s == SeverityLow
}

// MaxEscalationLevel caps how many times an incident can be escalated.
// Reaching it forces assignment to Admin.
const MaxEscalationLevel = 2

// AdminAssignee is the assignee value forced when escalation reaches the cap.
const AdminAssignee = "Admin"

// Incident is the unit of tracking. Status is mutated only through validated
// transitions; Severity, ReportedBy and SLADeadline are fixed at creation.
type Incident struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Severity        Severity  `json:"severity"`
	ReportedBy      Role      `json:"reported_by"`
	AssignedTo      string    `json:"assigned_to"`
	Status          Status    `json:"status"`
	EscalationLevel int       `json:"escalation_level"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	SLADeadline     time.Time `json:"sla_deadline"`
	ResolutionNotes string    `json:"resolution_notes"`
}

// AuditEntry is an immutable record of one incident change. Entries are
// append-only and never mutated or deleted after creation.
type AuditEntry struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	PrevStatus Status    `json:"prev_status"`
	NewStatus  Status    `json:"new_status"`
	ChangedBy  Role      `json:"changed_by"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason"`
}
