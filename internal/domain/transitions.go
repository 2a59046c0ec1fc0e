package domain

// Transition describes one edge of the status state machine: the target
// status and the roles allowed to take it.
type Transition struct {
	To    Status
	Roles []Role
}

// transitions maps each status to its outgoing edges. RoleSystem appears
// wherever SLA auto-escalation may fire. Escalated is deliberately the only
// status with multiple resolver-role downstream edges.
var transitions = map[Status][]Transition{
	StatusOpen: {
		{To: StatusAssigned, Roles: []Role{RoleAdmin}},
		{To: StatusEscalated, Roles: []Role{RoleAdmin, RoleSystem}},
	},
	StatusAssigned: {
		{To: StatusInProgress, Roles: []Role{RoleResolver}},
		{To: StatusEscalated, Roles: []Role{RoleAdmin, RoleSystem}},
	},
	StatusInProgress: {
		{To: StatusResolved, Roles: []Role{RoleResolver}},
		{To: StatusEscalated, Roles: []Role{RoleAdmin, RoleSystem}},
	},
	StatusResolved: {
		{To: StatusClosed, Roles: []Role{RoleAdmin}},
	},
	StatusClosed: {},
	StatusEscalated: {
		{To: StatusAssigned, Roles: []Role{RoleAdmin}},
		{To: StatusInProgress, Roles: []Role{RoleResolver}},
		{To: StatusResolved, Roles: []Role{RoleResolver}},
		{To: StatusClosed, Roles: []Role{RoleAdmin}},
	},
}

// AllowedTransitions returns the statuses reachable from current for the
// given role, in table order.
func AllowedTransitions(current Status, role Role) []Status {
	var out []Status
	for _, t := range transitions[current] {
		for _, r := range t.Roles {
			if r == role {
				out = append(out, t.To)
				break
			}
		}
	}
	return out
}

// IsTransitionAllowed reports whether moving current → next is legal for the
// given role. Pure function of the transition table.
func IsTransitionAllowed(current, next Status, role Role) bool {
	for _, t := range transitions[current] {
		if t.To != next {
			continue
		}
		for _, r := range t.Roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

// RequiresNotes reports whether entering the status needs non-empty
// resolution notes.
func RequiresNotes(to Status) bool {
	return to == StatusResolved || to == StatusClosed
}
