package incidents

import "github.com/bissquit/incident-desk/internal/domain"

// Repository stores the authoritative incident collection. Implementations
// must preserve insertion order for List. All calls are serialized by the
// Service's mutation lock, so implementations need no locking of their own.
type Repository interface {
	// Insert adds a new incident.
	Insert(inc domain.Incident)

	// Get returns the incident with the given id.
	Get(id string) (domain.Incident, bool)

	// Update replaces a stored incident by id.
	Update(inc domain.Incident)

	// UpdateBatch replaces several stored incidents in one step.
	UpdateBatch(incs []domain.Incident)

	// List returns all incidents, newest first.
	List() []domain.Incident

	// Len returns the number of stored incidents.
	Len() int
}
