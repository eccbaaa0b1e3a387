// Package integrator defines the contract between the scheduling engine
// and per-vendor clinic/ERP backends. Vendor implementations live outside
// this repository; what ships here is the interface they satisfy, a static
// registry resolved at startup, and a deterministic mock used by tests and
// local development.
package integrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/careflow/scheduling-engine/internal/scheduling"
)

// SearchRequest asks a vendor backend for raw candidate slots.
type SearchRequest struct {
	TenantID    string
	PatientCode string
	Filter      scheduling.EquivalenceFilter
	// From/To bound the vendor query. From already carries the
	// inter-appointment offset applied by the engine.
	From time.Time
	To   time.Time
}

// Integrator is implemented once per vendor scheduling backend.
type Integrator interface {
	// Name returns the vendor identifier (e.g. "tasy", "mv", "mock").
	Name() string

	// SearchSlots returns raw candidate slots for the given criteria and
	// window. An empty result is not an error.
	SearchSlots(ctx context.Context, req SearchRequest) ([]scheduling.CandidateSlot, error)

	// PatientSchedule loads the patient's current appointments from the
	// vendor. Must be idempotent and safe to retry.
	PatientSchedule(ctx context.Context, tenantID, patientCode string) (*scheduling.PatientScheduleSnapshot, error)
}

// FollowUpSource is implemented by vendors that expose active follow-up
// windows. Integrators without it simply disable the follow-up override.
type FollowUpSource interface {
	FollowUps(ctx context.Context, tenantID, patientCode string) ([]scheduling.FollowUpAppointment, error)
}

// Registry maps vendor names to integrators. It is populated during
// startup wiring and read-only afterwards, so lookups need no locking.
type Registry struct {
	byName map[string]Integrator
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Integrator)}
}

// Register adds an integrator. Duplicate names are a wiring bug.
func (r *Registry) Register(it Integrator) error {
	name := it.Name()
	if name == "" {
		return fmt.Errorf("integrator: empty name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("integrator: %q already registered", name)
	}
	r.byName[name] = it
	return nil
}

// Resolve returns the integrator registered under name.
func (r *Registry) Resolve(name string) (Integrator, error) {
	it, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("integrator: no vendor %q registered", name)
	}
	return it, nil
}

// Names lists registered vendors in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
