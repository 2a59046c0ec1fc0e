package incidents

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Policy errors. Expected rejections are returned as values, never panics;
// callers check them with errors.Is.
var (
	ErrIncidentNotFound        = errors.New("incident not found")
	ErrTransitionNotAllowed    = errors.New("status transition not allowed")
	ErrResolutionNotesRequired = errors.New("resolution notes are required for this transition")
	ErrRoleNotAllowed          = errors.New("role not allowed to perform this operation")
	ErrInvalidAssignee         = errors.New("invalid assignee")
	ErrEscalationCapped        = errors.New("incident already at maximum escalation level")
	ErrReasonRequired          = errors.New("a reason is required")
)

// ValidationError carries field-keyed messages from incident creation.
// The caller can render them inline next to the offending fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
