// Package specialist holds the catalogue of expert personas the orchestrator
// can route a query to.
package specialist

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ShayCichocki/soloagency/pkg/models"
)

var (
	// ErrUnknownSpecialist is returned when an id is not registered.
	ErrUnknownSpecialist = errors.New("unknown specialist")
	// ErrSealed is returned when registering after the registry was sealed.
	ErrSealed = errors.New("registry is sealed")
)

// Registry is an ordered catalogue of specialists. It is populated at
// startup, sealed, and then only read.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byID   map[string]models.SpecialistDef
	sealed bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]models.SpecialistDef)}
}

// Register adds a specialist. Ids must be non-empty and unique.
func (r *Registry) Register(def models.SpecialistDef) error {
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		return errors.New("register specialist: empty id")
	}
	if def.ID == models.OrchestratorID {
		return fmt.Errorf("register specialist: id %q is reserved", def.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register specialist %q: %w", def.ID, ErrSealed)
	}
	if _, exists := r.byID[def.ID]; exists {
		return fmt.Errorf("register specialist: duplicate id %q", def.ID)
	}

	r.byID[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Get returns the specialist with the given id.
func (r *Registry) Get(id string) (models.SpecialistDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.byID[id]
	if !ok {
		return models.SpecialistDef{}, fmt.Errorf("%w: %q", ErrUnknownSpecialist, id)
	}
	return def, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// Lookup resolves a loosely formatted id, as a model might echo it back
// ("Strategy", " media "), to a registered id. Labels are accepted too.
func (r *Registry) Lookup(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byID[name]; ok {
		return name, true
	}
	for _, id := range r.order {
		def := r.byID[id]
		if strings.EqualFold(id, name) || strings.EqualFold(def.Label, name) {
			return id, true
		}
	}
	return "", false
}

// All returns every specialist in registration order.
func (r *Registry) All() []models.SpecialistDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]models.SpecialistDef, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.byID[id])
	}
	return defs
}

// Len returns the number of registered specialists.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Validate checks that every id is registered. It is meant to run once at
// startup against configured ids such as the default specialist.
func (r *Registry) Validate(ids ...string) error {
	var errs []error
	for _, id := range ids {
		if !r.Has(id) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownSpecialist, id))
		}
	}
	return errors.Join(errs...)
}
