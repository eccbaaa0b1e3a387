// Package scheduling implements the slot selection and scheduling-rule
// engine: period-window slot selection, inter-appointment spacing
// validation, and same-day conflict filtering. It operates on normalized
// domain objects produced by per-vendor integrators and performs no I/O of
// its own beyond the injected collaborator calls.
package scheduling

import "time"

// CandidateSlot is a prospective bookable appointment returned by a vendor
// integrator. The engine never mutates AppointmentCode or AppointmentDate;
// it only includes, excludes, or reorders candidates.
type CandidateSlot struct {
	// AppointmentCode is the vendor-local slot identifier, opaque to the engine.
	AppointmentCode string
	// AppointmentDate is the absolute slot time in UTC.
	AppointmentDate    time.Time
	DoctorID           string
	OrganizationUnitID string
	// DurationMinutes is 0 when the vendor does not report a duration.
	DurationMinutes int
	IsFollowUp      bool

	// Correlation fields, set when the vendor echoes the search criteria.
	InsuranceID       string
	SpecialityID      string
	ProcedureID       string
	AppointmentTypeID string
	OccupationAreaID  string
}

// EntityRef is a pre-resolved reference to a catalog entity (insurance,
// speciality, procedure, appointment type, occupation area).
type EntityRef struct {
	Code string `json:"code"`
	// SpecialityType further qualifies speciality references on some vendors.
	SpecialityType string `json:"speciality_type,omitempty"`
	// ReferenceInsuranceType groups differently-coded insurances that must
	// be treated as interchangeable for spacing purposes.
	ReferenceInsuranceType string `json:"reference_insurance_type,omitempty"`
}

// EquivalenceFilter is the search criteria used both to fetch candidates
// and to test whether an existing appointment is "the same kind of visit"
// for spacing purposes. Absent criteria are nil.
type EquivalenceFilter struct {
	Insurance       *EntityRef `json:"insurance,omitempty"`
	Speciality      *EntityRef `json:"speciality,omitempty"`
	Procedure       *EntityRef `json:"procedure,omitempty"`
	AppointmentType *EntityRef `json:"appointment_type,omitempty"`
	OccupationArea  *EntityRef `json:"occupation_area,omitempty"`
	// InsuranceIsParticular marks a self-pay insurance; spacing rules do
	// not apply to self-pay patients.
	InsuranceIsParticular bool `json:"insurance_is_particular,omitempty"`
}

// SpacingWindow configures the minimum days a tenant requires between two
// equivalent visits for a given insurance/speciality pair. Empty code
// fields act as wildcards.
type SpacingWindow struct {
	InsuranceCode          string
	ReferenceInsuranceType string
	SpecialityCode         string
	Days                   int
}

// Rules is the per-tenant scheduling rule configuration. A nil *Rules means
// every rule is disabled. Immutable for the duration of a request.
type Rules struct {
	DoNotAllowSameDayScheduling                   bool
	DoNotAllowSameDayAndDoctorScheduling          bool
	DoNotAllowSameHourScheduling                  bool
	MinutesAfterAppointmentCanSchedule            int
	UseProcedureAsInterAppointmentValidation      bool
	UseOccupationAreaAsInterAppointmentValidation bool
	UsesNightTimeInTheSelectionOfPeriod           bool

	SpacingWindows []SpacingWindow
}

// SpacingDays returns the configured inter-appointment window for the
// filter's insurance/speciality pair. Windows with empty codes match any
// value; the first match wins, 0 means no spacing configured.
func (r *Rules) SpacingDays(filter EquivalenceFilter) int {
	if r == nil {
		return 0
	}
	for _, w := range r.SpacingWindows {
		if !w.matchesInsurance(filter.Insurance) {
			continue
		}
		if w.SpecialityCode != "" && (filter.Speciality == nil || filter.Speciality.Code != w.SpecialityCode) {
			continue
		}
		return w.Days
	}
	return 0
}

func (w SpacingWindow) matchesInsurance(ins *EntityRef) bool {
	if w.InsuranceCode == "" && w.ReferenceInsuranceType == "" {
		return true
	}
	if ins == nil {
		return false
	}
	if w.InsuranceCode != "" && ins.Code == w.InsuranceCode {
		return true
	}
	return w.ReferenceInsuranceType != "" && ins.ReferenceInsuranceType == w.ReferenceInsuranceType
}

// SelectionMetadata describes which filtering or limiting rules fired while
// producing a result. Callers surface these flags for observability.
type SelectionMetadata struct {
	NumberOfSchedulesLessThanLimit       bool `json:"number_of_schedules_less_than_limit"`
	DoNotAllowSameDayScheduling          bool `json:"do_not_allow_same_day_scheduling"`
	DoNotAllowSameDayAndDoctorScheduling bool `json:"do_not_allow_same_day_and_doctor_scheduling"`
	DoNotAllowSameHourScheduling         bool `json:"do_not_allow_same_hour_scheduling"`
}

// SelectionResult is the ordered, length-capped output of the slot selector.
type SelectionResult struct {
	Selected []CandidateSlot
	Metadata SelectionMetadata
}

// FollowUpAppointment is an active follow-up window reported by a vendor:
// until LimitDate the patient may book a follow-up visit for the matching
// criteria combination.
type FollowUpAppointment struct {
	Insurance      *EntityRef
	Speciality     *EntityRef
	Procedure      *EntityRef
	OccupationArea *EntityRef
	LimitDate      time.Time
}
