package integrator

import (
	"context"
	"fmt"
	"time"

	"github.com/careflow/scheduling-engine/internal/scheduling"
)

// Mock is a deterministic in-memory integrator for local development and
// tests. Slots are generated on a fixed half-hour grid inside business
// hours; the patient schedule is whatever was seeded.
type Mock struct {
	// VendorName defaults to "mock".
	VendorName string
	// Schedules maps "tenant/patient" to a seeded snapshot.
	Schedules map[string]*scheduling.PatientScheduleSnapshot
	// FollowUpWindows maps "tenant/patient" to seeded follow-up windows.
	FollowUpWindows map[string][]scheduling.FollowUpAppointment
	// DoctorIDs rotate across generated slots. Defaults to one doctor.
	DoctorIDs []string
	// OrganizationUnitIDs rotate across generated days. Defaults to one unit.
	OrganizationUnitIDs []string
}

func (m *Mock) Name() string {
	if m.VendorName == "" {
		return "mock"
	}
	return m.VendorName
}

// SearchSlots generates slots every 30 minutes from 08:00 to 18:00 UTC for
// each day in [From, To].
func (m *Mock) SearchSlots(ctx context.Context, req SearchRequest) ([]scheduling.CandidateSlot, error) {
	doctors := m.DoctorIDs
	if len(doctors) == 0 {
		doctors = []string{"doc-1"}
	}
	units := m.OrganizationUnitIDs
	if len(units) == 0 {
		units = []string{"unit-1"}
	}

	var slots []scheduling.CandidateSlot
	day := req.From.UTC().Truncate(24 * time.Hour)
	for i := 0; !day.After(req.To); i++ {
		for halfHour := 0; halfHour < 20; halfHour++ {
			at := day.Add(8*time.Hour + time.Duration(halfHour)*30*time.Minute)
			if at.Before(req.From) || at.After(req.To) {
				continue
			}
			slots = append(slots, scheduling.CandidateSlot{
				AppointmentCode:    fmt.Sprintf("mock-%d-%d", i, halfHour),
				AppointmentDate:    at,
				DoctorID:           doctors[halfHour%len(doctors)],
				OrganizationUnitID: units[i%len(units)],
				DurationMinutes:    30,
			})
		}
		day = day.Add(24 * time.Hour)
	}
	return slots, nil
}

func (m *Mock) PatientSchedule(ctx context.Context, tenantID, patientCode string) (*scheduling.PatientScheduleSnapshot, error) {
	if snap, ok := m.Schedules[tenantID+"/"+patientCode]; ok {
		return snap, nil
	}
	return &scheduling.PatientScheduleSnapshot{}, nil
}

// FollowUps implements FollowUpSource over the seeded windows.
func (m *Mock) FollowUps(ctx context.Context, tenantID, patientCode string) ([]scheduling.FollowUpAppointment, error) {
	return m.FollowUpWindows[tenantID+"/"+patientCode], nil
}
