// Package incidents implements the incident store: the single validated
// mutation surface over the incident collection and its audit trail.
package incidents

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bissquit/incident-desk/internal/audit"
	"github.com/bissquit/incident-desk/internal/domain"
	"github.com/bissquit/incident-desk/internal/pkg/clock"
	"github.com/bissquit/incident-desk/internal/sla"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Audit reasons used when the caller supplies none.
const (
	reasonCreated       = "Incident created"
	reasonAutoEscalated = "Auto-escalated — SLA breached"
)

// Service owns the incident collection and exposes the only mutation
// surface. Every operation takes the acting role explicitly; the service
// holds no notion of a current user. A single mutex serializes all
// mutations so each incident change and its audit entry land atomically.
type Service struct {
	mu       sync.Mutex
	repo     Repository
	log      *audit.Log
	policy   sla.Policy
	clk      clock.Clock
	validate *validator.Validate
}

// NewService creates an incident service.
func NewService(repo Repository, log *audit.Log, policy sla.Policy, clk clock.Clock) *Service {
	return &Service{
		repo:     repo,
		log:      log,
		policy:   policy,
		clk:      clk,
		validate: validator.New(),
	}
}

// CreateIncidentInput holds the fields for creating an incident.
type CreateIncidentInput struct {
	Title       string          `validate:"required,min=8"`
	Description string          `validate:"required,min=20"`
	Severity    domain.Severity `validate:"required,oneof=Critical High Medium Low"`
	AssignedTo  string
}

// Create validates the input, builds the incident (status Open, escalation
// level 0, SLA deadline derived from severity) and records the creation in
// the audit log. On validation failure it returns a *ValidationError with
// field-keyed messages and no state is touched.
func (s *Service) Create(input CreateIncidentInput, reportedBy domain.Role) (domain.Incident, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.AssignedTo = strings.TrimSpace(input.AssignedTo)

	if !reportedBy.IsValid() {
		recordRejected("create", "role_not_allowed")
		return domain.Incident{}, fmt.Errorf("%w: %q", ErrRoleNotAllowed, reportedBy)
	}

	if verr := s.validateCreate(input); verr != nil {
		recordRejected("create", "validation")
		return domain.Incident{}, verr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	inc := domain.Incident{
		ID:              uuid.NewString(),
		Title:           input.Title,
		Description:     input.Description,
		Severity:        input.Severity,
		ReportedBy:      reportedBy,
		AssignedTo:      input.AssignedTo,
		Status:          domain.StatusOpen,
		EscalationLevel: 0,
		CreatedAt:       now,
		UpdatedAt:       now,
		SLADeadline:     s.policy.Deadline(now, input.Severity),
	}

	s.log.Append(inc.ID, "", domain.StatusOpen, reportedBy, reasonCreated)
	s.repo.Insert(inc)

	recordCreated(string(inc.Severity))
	s.syncGauges()

	slog.Info("incident created",
		"incident_id", inc.ID,
		"severity", inc.Severity,
		"reported_by", reportedBy,
		"sla_deadline", inc.SLADeadline,
	)

	return inc, nil
}

// validateCreate runs the field rules and the assignee rule, collecting
// field-keyed messages.
func (s *Service) validateCreate(input CreateIncidentInput) error {
	fields := make(map[string]string)

	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate input: %w", err)
		}
		for _, fe := range verrs {
			switch fe.Field() {
			case "Title":
				if fe.Tag() == "required" {
					fields["title"] = "Title is required."
				} else {
					fields["title"] = "Title must be at least 8 characters."
				}
			case "Description":
				if fe.Tag() == "required" {
					fields["description"] = "Description is required."
				} else {
					fields["description"] = "Description must be at least 20 characters."
				}
			case "Severity":
				if fe.Tag() == "required" {
					fields["severity"] = "Severity is required."
				} else {
					fields["severity"] = "Severity is invalid."
				}
			}
		}
	}

	if input.AssignedTo != "" {
		if err := validateAssignee(input.AssignedTo); err != nil {
			fields["assigned_to"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Transition moves an incident to a new status on behalf of role. Policy
// rejections come back as structured errors; nothing is mutated and no
// audit entry is written on rejection. On success the resolution notes are
// merged (blank new notes keep the prior ones) and the audit reason falls
// back to the trimmed notes.
func (s *Service) Transition(id string, to domain.Status, role domain.Role, notes, reason string) error {
	notes = strings.TrimSpace(notes)
	reason = strings.TrimSpace(reason)

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.repo.Get(id)
	if !ok {
		recordRejected("transition", "not_found")
		return fmt.Errorf("%w: %s", ErrIncidentNotFound, id)
	}

	if !domain.IsTransitionAllowed(inc.Status, to, role) {
		recordRejected("transition", "transition_not_allowed")
		return fmt.Errorf("%w: %s → %s as %s", ErrTransitionNotAllowed, inc.Status, to, role)
	}

	if domain.RequiresNotes(to) && notes == "" {
		recordRejected("transition", "notes_required")
		return ErrResolutionNotesRequired
	}

	auditReason := reason
	if auditReason == "" {
		auditReason = notes
	}
	s.log.Append(inc.ID, inc.Status, to, role, auditReason)

	prev := inc.Status
	inc.Status = to
	if notes != "" {
		inc.ResolutionNotes = notes
	}
	inc.UpdatedAt = s.clk.Now()
	s.repo.Update(inc)

	recordTransition(string(prev), string(to), string(role))
	s.syncGauges()

	slog.Info("incident transitioned",
		"incident_id", inc.ID,
		"from", prev,
		"to", to,
		"role", role,
	)

	return nil
}

// Assign sets the assignee and moves the incident to Assigned. Admin only;
// the assignee must not be "reporter" or "admin" (case-insensitive), and
// the current status must legally transition to Assigned for Admin.
func (s *Service) Assign(id, assignee string, role domain.Role, reason string) error {
	assignee = strings.TrimSpace(assignee)
	reason = strings.TrimSpace(reason)

	if role != domain.RoleAdmin {
		recordRejected("assign", "role_not_allowed")
		return fmt.Errorf("%w: only Admin can assign", ErrRoleNotAllowed)
	}
	if err := validateAssignee(assignee); err != nil {
		recordRejected("assign", "invalid_assignee")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.repo.Get(id)
	if !ok {
		recordRejected("assign", "not_found")
		return fmt.Errorf("%w: %s", ErrIncidentNotFound, id)
	}

	if !domain.IsTransitionAllowed(inc.Status, domain.StatusAssigned, role) {
		recordRejected("assign", "transition_not_allowed")
		return fmt.Errorf("%w: cannot move %s to Assigned", ErrTransitionNotAllowed, inc.Status)
	}

	if reason == "" {
		reason = "Assigned to " + assignee
	}
	s.log.Append(inc.ID, inc.Status, domain.StatusAssigned, role, reason)

	prev := inc.Status
	inc.AssignedTo = assignee
	inc.Status = domain.StatusAssigned
	inc.UpdatedAt = s.clk.Now()
	s.repo.Update(inc)

	recordTransition(string(prev), string(domain.StatusAssigned), string(role))
	s.syncGauges()

	slog.Info("incident assigned", "incident_id", inc.ID, "assigned_to", assignee)

	return nil
}

// Reassign changes the assignee without touching the status. Admin only,
// same assignee rule as Assign. The store does not block reassignment of
// Closed incidents; the audit entry records the change either way.
func (s *Service) Reassign(id, assignee string, role domain.Role, reason string) error {
	assignee = strings.TrimSpace(assignee)
	reason = strings.TrimSpace(reason)

	if role != domain.RoleAdmin {
		recordRejected("reassign", "role_not_allowed")
		return fmt.Errorf("%w: only Admin can reassign", ErrRoleNotAllowed)
	}
	if err := validateAssignee(assignee); err != nil {
		recordRejected("reassign", "invalid_assignee")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.repo.Get(id)
	if !ok {
		recordRejected("reassign", "not_found")
		return fmt.Errorf("%w: %s", ErrIncidentNotFound, id)
	}

	if reason == "" {
		reason = "Reassigned to " + assignee
	}
	s.log.Append(inc.ID, inc.Status, inc.Status, role, reason)

	inc.AssignedTo = assignee
	inc.UpdatedAt = s.clk.Now()
	s.repo.Update(inc)

	s.syncGauges()

	slog.Info("incident reassigned", "incident_id", inc.ID, "assigned_to", assignee)

	return nil
}

// ManualEscalate bumps the escalation level on Admin's request. It needs a
// non-blank reason, works from any status and does not check SLA breach;
// the level/cap/auto-assign rule matches automatic escalation.
func (s *Service) ManualEscalate(id, reason string, role domain.Role) error {
	reason = strings.TrimSpace(reason)

	if role != domain.RoleAdmin {
		recordRejected("escalate", "role_not_allowed")
		return fmt.Errorf("%w: only Admin can escalate", ErrRoleNotAllowed)
	}
	if reason == "" {
		recordRejected("escalate", "reason_required")
		return fmt.Errorf("%w for manual escalation", ErrReasonRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.repo.Get(id)
	if !ok {
		recordRejected("escalate", "not_found")
		return fmt.Errorf("%w: %s", ErrIncidentNotFound, id)
	}

	if !sla.CanEscalate(inc) {
		recordRejected("escalate", "escalation_capped")
		return ErrEscalationCapped
	}

	s.log.Append(inc.ID, inc.Status, domain.StatusEscalated, role, reason)

	prev := inc.Status
	inc.EscalationLevel = min(inc.EscalationLevel+1, domain.MaxEscalationLevel)
	inc.Status = domain.StatusEscalated
	inc.UpdatedAt = s.clk.Now()
	if inc.EscalationLevel >= domain.MaxEscalationLevel {
		inc.AssignedTo = domain.AdminAssignee
	}
	s.repo.Update(inc)

	recordTransition(string(prev), string(domain.StatusEscalated), string(role))
	recordEscalation(triggerManual)
	s.syncGauges()

	slog.Info("incident escalated",
		"incident_id", inc.ID,
		"level", inc.EscalationLevel,
		"trigger", triggerManual,
	)

	return nil
}

// EscalateBreached sweeps every incident for SLA breaches and escalates the
// breached ones as System. Changed incidents are written back as one batch
// with one audit entry each; a sweep with no breaches writes nothing.
// Returns the number of incidents escalated.
func (s *Service) EscalateBreached() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()

	var changed []domain.Incident
	type auditItem struct {
		id   string
		prev domain.Status
		next domain.Status
	}
	var batch []auditItem

	for _, inc := range s.repo.List() {
		updated, ok := sla.Escalate(inc, now)
		if !ok {
			continue
		}
		changed = append(changed, updated)
		batch = append(batch, auditItem{id: inc.ID, prev: inc.Status, next: updated.Status})
	}

	if len(changed) == 0 {
		return 0
	}

	for _, item := range batch {
		s.log.Append(item.id, item.prev, item.next, domain.RoleSystem, reasonAutoEscalated)
	}
	s.repo.UpdateBatch(changed)

	for range changed {
		recordEscalation(triggerSLA)
	}
	s.syncGauges()

	return len(changed)
}

// Get returns one incident by id.
func (s *Service) Get(id string) (domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.repo.Get(id)
	if !ok {
		return domain.Incident{}, fmt.Errorf("%w: %s", ErrIncidentNotFound, id)
	}
	return inc, nil
}

// VisibleTo returns the incidents the given role may see, newest first.
// Reporter sees incidents reported under the Reporter role, Resolver sees
// incidents assigned to someone other than admin, Admin sees everything.
func (s *Service) VisibleTo(role domain.Role) []domain.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.repo.List()
	switch role {
	case domain.RoleAdmin:
		return all
	case domain.RoleReporter:
		var out []domain.Incident
		for _, inc := range all {
			if inc.ReportedBy == domain.RoleReporter {
				out = append(out, inc)
			}
		}
		return out
	case domain.RoleResolver:
		var out []domain.Incident
		for _, inc := range all {
			if inc.AssignedTo != "" && !strings.EqualFold(inc.AssignedTo, "admin") {
				out = append(out, inc)
			}
		}
		return out
	default:
		return nil
	}
}

// AuditTrail returns the audit entries for one incident, oldest first.
func (s *Service) AuditTrail(incidentID string) []domain.AuditEntry {
	return s.log.ForIncident(incidentID)
}

// AuditEntries returns the full audit log, oldest first.
func (s *Service) AuditEntries() []domain.AuditEntry {
	return s.log.All()
}

// validateAssignee rejects blank assignees and the reserved names that
// would shadow roles.
func validateAssignee(assignee string) error {
	if assignee == "" {
		return fmt.Errorf("%w: assignee must not be blank", ErrInvalidAssignee)
	}
	if strings.EqualFold(assignee, "reporter") || strings.EqualFold(assignee, "admin") {
		return fmt.Errorf("%w: cannot assign to %q, must be a valid resolver id", ErrInvalidAssignee, assignee)
	}
	return nil
}

// syncGauges refreshes the active-incident and audit-length gauges.
// Callers hold s.mu.
func (s *Service) syncGauges() {
	active := 0
	for _, inc := range s.repo.List() {
		if !inc.Status.IsSettled() {
			active++
		}
	}
	setActiveIncidents(active)
	setAuditEntries(s.log.Len())
}
