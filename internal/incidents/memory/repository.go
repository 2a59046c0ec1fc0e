// Package memory provides the in-memory incident repository. All state is
// transient process memory; there is no durable backing store.
package memory

import "github.com/bissquit/incident-desk/internal/domain"

// Repository keeps incidents in a map with a separate insertion-order index.
type Repository struct {
	byID  map[string]domain.Incident
	order []string
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{byID: make(map[string]domain.Incident)}
}

// Insert adds a new incident.
func (r *Repository) Insert(inc domain.Incident) {
	if _, exists := r.byID[inc.ID]; !exists {
		r.order = append(r.order, inc.ID)
	}
	r.byID[inc.ID] = inc
}

// Get returns the incident with the given id.
func (r *Repository) Get(id string) (domain.Incident, bool) {
	inc, ok := r.byID[id]
	return inc, ok
}

// Update replaces a stored incident. Unknown ids are ignored.
func (r *Repository) Update(inc domain.Incident) {
	if _, ok := r.byID[inc.ID]; ok {
		r.byID[inc.ID] = inc
	}
}

// UpdateBatch replaces several stored incidents in one step.
func (r *Repository) UpdateBatch(incs []domain.Incident) {
	for _, inc := range incs {
		r.Update(inc)
	}
}

// List returns all incidents, newest first.
func (r *Repository) List() []domain.Incident {
	out := make([]domain.Incident, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.byID[r.order[i]])
	}
	return out
}

// Len returns the number of stored incidents.
func (r *Repository) Len() int {
	return len(r.byID)
}
