package incidents

import (
	"errors"
	"testing"
	"time"

	"github.com/bissquit/incident-desk/internal/audit"
	"github.com/bissquit/incident-desk/internal/domain"
	"github.com/bissquit/incident-desk/internal/incidents/memory"
	"github.com/bissquit/incident-desk/internal/pkg/clock"
	"github.com/bissquit/incident-desk/internal/sla"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *clock.Fake) {
	clk := clock.NewFake(testStart)
	svc := NewService(memory.NewRepository(), audit.NewLog(clk), sla.Default(), clk)
	return svc, clk
}

func validInput() CreateIncidentInput {
	return CreateIncidentInput{
		Title:       "Database outage",
		Description: "Primary database refuses all new connections.",
		Severity:    domain.SeverityCritical,
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	assert.NotEmpty(t, inc.ID)
	assert.Equal(t, "Database outage", inc.Title)
	assert.Equal(t, domain.StatusOpen, inc.Status)
	assert.Equal(t, 0, inc.EscalationLevel)
	assert.Equal(t, domain.RoleReporter, inc.ReportedBy)
	assert.Equal(t, testStart, inc.CreatedAt)
	assert.Equal(t, testStart, inc.UpdatedAt)
	assert.Equal(t, testStart.Add(4*time.Hour), inc.SLADeadline)
	assert.Empty(t, inc.ResolutionNotes)

	trail := svc.AuditTrail(inc.ID)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.Status(""), trail[0].PrevStatus)
	assert.Equal(t, domain.StatusOpen, trail[0].NewStatus)
	assert.Equal(t, domain.RoleReporter, trail[0].ChangedBy)
	assert.Equal(t, "Incident created", trail[0].Reason)
}

func TestService_Create_TrimsFields(t *testing.T) {
	svc, _ := newTestService()

	input := validInput()
	input.Title = "  Database outage  "
	input.AssignedTo = "  bob  "

	inc, err := svc.Create(input, domain.RoleReporter)
	require.NoError(t, err)
	assert.Equal(t, "Database outage", inc.Title)
	assert.Equal(t, "bob", inc.AssignedTo)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateIncidentInput)
		field   string
		message string
	}{
		{
			name:    "title missing",
			mutate:  func(in *CreateIncidentInput) { in.Title = "" },
			field:   "title",
			message: "Title is required.",
		},
		{
			name:    "title of seven characters",
			mutate:  func(in *CreateIncidentInput) { in.Title = "Outage!" },
			field:   "title",
			message: "Title must be at least 8 characters.",
		},
		{
			name:    "description missing",
			mutate:  func(in *CreateIncidentInput) { in.Description = "" },
			field:   "description",
			message: "Description is required.",
		},
		{
			name:    "description too short",
			mutate:  func(in *CreateIncidentInput) { in.Description = "db is down" },
			field:   "description",
			message: "Description must be at least 20 characters.",
		},
		{
			name:    "severity missing",
			mutate:  func(in *CreateIncidentInput) { in.Severity = "" },
			field:   "severity",
			message: "Severity is required.",
		},
		{
			name:    "severity unknown",
			mutate:  func(in *CreateIncidentInput) { in.Severity = "Catastrophic" },
			field:   "severity",
			message: "Severity is invalid.",
		},
		{
			name:   "assignee shadows a role",
			mutate: func(in *CreateIncidentInput) { in.AssignedTo = "Admin" },
			field:  "assigned_to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()

			input := validInput()
			tt.mutate(&input)

			_, err := svc.Create(input, domain.RoleReporter)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Fields, tt.field)
			if tt.message != "" {
				assert.Equal(t, tt.message, verr.Fields[tt.field])
			}

			// Rejected creation leaves no partial state.
			assert.Empty(t, svc.VisibleTo(domain.RoleAdmin))
			assert.Empty(t, svc.AuditEntries())
		})
	}
}

func TestService_Create_EightCharTitleSucceeds(t *testing.T) {
	svc, _ := newTestService()

	input := validInput()
	input.Title = "Outage!!"

	_, err := svc.Create(input, domain.RoleReporter)
	assert.NoError(t, err)
}

func TestService_Create_InvalidRole(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(validInput(), domain.RoleSystem)
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = svc.Create(validInput(), domain.Role("Intruder"))
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
}

func TestService_Transition(t *testing.T) {
	svc, clk := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	require.NoError(t, svc.Transition(inc.ID, domain.StatusAssigned, domain.RoleAdmin, "", "Taking it"))

	got, err := svc.Get(inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, got.Status)
	assert.Equal(t, testStart.Add(time.Minute), got.UpdatedAt)

	trail := svc.AuditTrail(inc.ID)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.StatusOpen, trail[1].PrevStatus)
	assert.Equal(t, domain.StatusAssigned, trail[1].NewStatus)
	assert.Equal(t, "Taking it", trail[1].Reason)
}

func TestService_Transition_Rejections(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		to      domain.Status
		role    domain.Role
		notes   string
		wantErr error
	}{
		{"unknown incident", "no-such-id", domain.StatusAssigned, domain.RoleAdmin, "", ErrIncidentNotFound},
		{"resolver cannot resolve open", inc.ID, domain.StatusResolved, domain.RoleResolver, "notes here", ErrTransitionNotAllowed},
		{"reporter cannot assign", inc.ID, domain.StatusAssigned, domain.RoleReporter, "", ErrTransitionNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Transition(tt.id, tt.to, tt.role, tt.notes, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejections write no audit entries and change nothing.
	assert.Len(t, svc.AuditEntries(), 1)
	got, err := svc.Get(inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)
}

func TestService_Transition_NotesRequired(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	require.NoError(t, svc.Transition(inc.ID, domain.StatusAssigned, domain.RoleAdmin, "", ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusInProgress, domain.RoleResolver, "", ""))

	err = svc.Transition(inc.ID, domain.StatusResolved, domain.RoleResolver, "   ", "")
	assert.ErrorIs(t, err, ErrResolutionNotesRequired)

	got, _ := svc.Get(inc.ID)
	assert.Equal(t, domain.StatusInProgress, got.Status)

	require.NoError(t, svc.Transition(inc.ID, domain.StatusResolved, domain.RoleResolver, "Restarted the primary.", ""))

	got, _ = svc.Get(inc.ID)
	assert.Equal(t, domain.StatusResolved, got.Status)
	assert.Equal(t, "Restarted the primary.", got.ResolutionNotes)

	// The audit reason falls back to the notes when no reason is given.
	trail := svc.AuditTrail(inc.ID)
	assert.Equal(t, "Restarted the primary.", trail[len(trail)-1].Reason)
}

func TestService_Transition_BlankNotesKeepPrior(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	require.NoError(t, svc.Transition(inc.ID, domain.StatusAssigned, domain.RoleAdmin, "", ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusInProgress, domain.RoleResolver, "Investigating root cause.", ""))

	// Escalation does not require notes; blank notes keep the prior text.
	require.NoError(t, svc.Transition(inc.ID, domain.StatusEscalated, domain.RoleAdmin, "", "Needs senior eyes"))

	got, _ := svc.Get(inc.ID)
	assert.Equal(t, "Investigating root cause.", got.ResolutionNotes)
}

func TestService_Assign(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	require.NoError(t, svc.Assign(inc.ID, "bob", domain.RoleAdmin, ""))

	got, _ := svc.Get(inc.ID)
	assert.Equal(t, "bob", got.AssignedTo)
	assert.Equal(t, domain.StatusAssigned, got.Status)

	trail := svc.AuditTrail(inc.ID)
	require.Len(t, trail, 2)
	assert.Equal(t, "Assigned to bob", trail[1].Reason)
}

func TestService_Assign_Rejections(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	tests := []struct {
		name     string
		assignee string
		role     domain.Role
		wantErr  error
	}{
		{"resolver cannot assign", "bob", domain.RoleResolver, ErrRoleNotAllowed},
		{"reporter cannot assign", "bob", domain.RoleReporter, ErrRoleNotAllowed},
		{"blank assignee", "   ", domain.RoleAdmin, ErrInvalidAssignee},
		{"reserved reporter", "reporter", domain.RoleAdmin, ErrInvalidAssignee},
		{"reserved admin any case", "ADMIN", domain.RoleAdmin, ErrInvalidAssignee},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Assign(inc.ID, tt.assignee, tt.role, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Still Open, untouched, one audit entry from creation.
	got, _ := svc.Get(inc.ID)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Empty(t, got.AssignedTo)
	assert.Len(t, svc.AuditEntries(), 1)

	// Assigning a not-found incident.
	err = svc.Assign("no-such-id", "bob", domain.RoleAdmin, "")
	assert.ErrorIs(t, err, ErrIncidentNotFound)

	// Assign requires the Open/Escalated → Assigned edge to exist.
	require.NoError(t, svc.Assign(inc.ID, "bob", domain.RoleAdmin, ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusInProgress, domain.RoleResolver, "", ""))
	err = svc.Assign(inc.ID, "carol", domain.RoleAdmin, "")
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

func TestService_Reassign(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)
	require.NoError(t, svc.Assign(inc.ID, "bob", domain.RoleAdmin, ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusInProgress, domain.RoleResolver, "", ""))

	require.NoError(t, svc.Reassign(inc.ID, "carol", domain.RoleAdmin, ""))

	got, _ := svc.Get(inc.ID)
	assert.Equal(t, "carol", got.AssignedTo)
	assert.Equal(t, domain.StatusInProgress, got.Status, "reassign never changes status")

	trail := svc.AuditTrail(inc.ID)
	last := trail[len(trail)-1]
	assert.Equal(t, last.PrevStatus, last.NewStatus)
	assert.Equal(t, "Reassigned to carol", last.Reason)
}

func TestService_Reassign_Rejections(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Reassign(inc.ID, "bob", domain.RoleResolver, ""), ErrRoleNotAllowed)
	assert.ErrorIs(t, svc.Reassign(inc.ID, "admin", domain.RoleAdmin, ""), ErrInvalidAssignee)
	assert.ErrorIs(t, svc.Reassign("no-such-id", "bob", domain.RoleAdmin, ""), ErrIncidentNotFound)
}

func TestService_Reassign_AllowedOnClosed(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)
	require.NoError(t, svc.Assign(inc.ID, "bob", domain.RoleAdmin, ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusInProgress, domain.RoleResolver, "", ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusResolved, domain.RoleResolver, "Fixed.", ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusClosed, domain.RoleAdmin, "Verified in production.", ""))

	// The store does not treat Closed as terminal for reassignment.
	require.NoError(t, svc.Reassign(inc.ID, "carol", domain.RoleAdmin, ""))

	got, _ := svc.Get(inc.ID)
	assert.Equal(t, "carol", got.AssignedTo)
	assert.Equal(t, domain.StatusClosed, got.Status)
}

func TestService_ManualEscalate(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)
	require.NoError(t, svc.Assign(inc.ID, "bob", domain.RoleAdmin, ""))

	// Level 0 → 1 keeps the assignee.
	require.NoError(t, svc.ManualEscalate(inc.ID, "Customer impact is growing", domain.RoleAdmin))
	got, _ := svc.Get(inc.ID)
	assert.Equal(t, domain.StatusEscalated, got.Status)
	assert.Equal(t, 1, got.EscalationLevel)
	assert.Equal(t, "bob", got.AssignedTo)

	// Level 1 → 2 forces assignment to Admin.
	require.NoError(t, svc.ManualEscalate(inc.ID, "Still no progress", domain.RoleAdmin))
	got, _ = svc.Get(inc.ID)
	assert.Equal(t, 2, got.EscalationLevel)
	assert.Equal(t, domain.AdminAssignee, got.AssignedTo)

	// The cap is final.
	err = svc.ManualEscalate(inc.ID, "Once more", domain.RoleAdmin)
	assert.ErrorIs(t, err, ErrEscalationCapped)

	trail := svc.AuditTrail(inc.ID)
	assert.Equal(t, "Still no progress", trail[len(trail)-1].Reason)
}

func TestService_ManualEscalate_Rejections(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ManualEscalate(inc.ID, "reason", domain.RoleResolver), ErrRoleNotAllowed)
	assert.ErrorIs(t, svc.ManualEscalate(inc.ID, "   ", domain.RoleAdmin), ErrReasonRequired)
	assert.ErrorIs(t, svc.ManualEscalate("no-such-id", "reason", domain.RoleAdmin), ErrIncidentNotFound)

	assert.Len(t, svc.AuditEntries(), 1, "rejections never reach the audit log")
}

func TestService_EscalateBreached_Scenario(t *testing.T) {
	svc, clk := newTestService()

	critical, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	low := validInput()
	low.Title = "Slow report exports"
	low.Severity = domain.SeverityLow
	lowInc, err := svc.Create(low, domain.RoleReporter)
	require.NoError(t, err)

	assert.Equal(t, testStart.Add(4*time.Hour), critical.SLADeadline)

	// Nothing breached yet, nothing written.
	assert.Zero(t, svc.EscalateBreached())
	assert.Len(t, svc.AuditEntries(), 2)

	// Exactly at the deadline is not a breach.
	clk.Set(testStart.Add(4 * time.Hour))
	assert.Zero(t, svc.EscalateBreached())

	// One instant past the deadline escalates the critical incident only.
	clk.Advance(time.Millisecond)
	assert.Equal(t, 1, svc.EscalateBreached())

	got, _ := svc.Get(critical.ID)
	assert.Equal(t, domain.StatusEscalated, got.Status)
	assert.Equal(t, 1, got.EscalationLevel)

	trail := svc.AuditTrail(critical.ID)
	last := trail[len(trail)-1]
	assert.Equal(t, domain.RoleSystem, last.ChangedBy)
	assert.Equal(t, "Auto-escalated — SLA breached", last.Reason)

	gotLow, _ := svc.Get(lowInc.ID)
	assert.Equal(t, domain.StatusOpen, gotLow.Status, "low severity window has not elapsed")

	// Still breached: next sweep reaches the cap and hands it to Admin.
	assert.Equal(t, 1, svc.EscalateBreached())
	got, _ = svc.Get(critical.ID)
	assert.Equal(t, domain.MaxEscalationLevel, got.EscalationLevel)
	assert.Equal(t, domain.AdminAssignee, got.AssignedTo)

	// Capped incidents stop producing updates and audit entries.
	entries := len(svc.AuditEntries())
	assert.Zero(t, svc.EscalateBreached())
	assert.Len(t, svc.AuditEntries(), entries)
}

func TestService_EscalateBreached_SettledExempt(t *testing.T) {
	svc, clk := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)
	require.NoError(t, svc.Assign(inc.ID, "bob", domain.RoleAdmin, ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusInProgress, domain.RoleResolver, "", ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusResolved, domain.RoleResolver, "Fixed.", ""))

	clk.Advance(100 * time.Hour)
	assert.Zero(t, svc.EscalateBreached(), "resolved incidents never escalate")
}

func TestService_VisibleTo(t *testing.T) {
	svc, _ := newTestService()

	first, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)

	second := validInput()
	second.Title = "Payment gateway timeouts"
	secondInc, err := svc.Create(second, domain.RoleReporter)
	require.NoError(t, err)

	third := validInput()
	third.Title = "Audit backlog cleanup"
	thirdInc, err := svc.Create(third, domain.RoleAdmin)
	require.NoError(t, err)

	require.NoError(t, svc.Assign(secondInc.ID, "bob", domain.RoleAdmin, ""))

	// Admin sees everything, newest first.
	adminView := svc.VisibleTo(domain.RoleAdmin)
	require.Len(t, adminView, 3)
	assert.Equal(t, thirdInc.ID, adminView[0].ID)
	assert.Equal(t, first.ID, adminView[2].ID)

	// Reporter sees only incidents reported as Reporter.
	reporterView := svc.VisibleTo(domain.RoleReporter)
	require.Len(t, reporterView, 2)
	for _, inc := range reporterView {
		assert.Equal(t, domain.RoleReporter, inc.ReportedBy)
	}

	// Resolver sees incidents assigned to someone other than admin.
	resolverView := svc.VisibleTo(domain.RoleResolver)
	require.Len(t, resolverView, 1)
	assert.Equal(t, secondInc.ID, resolverView[0].ID)

	// Escalating to the cap hands the incident to Admin and hides it
	// from resolvers.
	require.NoError(t, svc.ManualEscalate(secondInc.ID, "No movement", domain.RoleAdmin))
	require.NoError(t, svc.ManualEscalate(secondInc.ID, "Still stuck", domain.RoleAdmin))
	assert.Empty(t, svc.VisibleTo(domain.RoleResolver))

	assert.Nil(t, svc.VisibleTo(domain.RoleSystem))
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Get("no-such-id")
	assert.True(t, errors.Is(err, ErrIncidentNotFound))
}

func TestService_AuditEntriesPerOperation(t *testing.T) {
	svc, _ := newTestService()

	inc, err := svc.Create(validInput(), domain.RoleReporter)
	require.NoError(t, err)
	require.NoError(t, svc.Assign(inc.ID, "bob", domain.RoleAdmin, ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusInProgress, domain.RoleResolver, "", ""))
	require.NoError(t, svc.Reassign(inc.ID, "carol", domain.RoleAdmin, ""))
	require.NoError(t, svc.Transition(inc.ID, domain.StatusResolved, domain.RoleResolver, "Fixed.", ""))

	// One entry per successful mutation, insertion order preserved.
	entries := svc.AuditEntries()
	require.Len(t, entries, 5)
	assert.Equal(t, domain.StatusOpen, entries[0].NewStatus)
	assert.Equal(t, domain.StatusAssigned, entries[1].NewStatus)
	assert.Equal(t, domain.StatusInProgress, entries[2].NewStatus)
	assert.Equal(t, domain.StatusInProgress, entries[3].NewStatus)
	assert.Equal(t, domain.StatusResolved, entries[4].NewStatus)
}
