package scheduling

import "time"

// AppointmentRef is the flat {code, date, doctor} projection used for cheap
// same-day lookups against a patient's existing schedule.
type AppointmentRef struct {
	Code     string    `json:"code"`
	Date     time.Time `json:"date"`
	DoctorID string    `json:"doctor_id,omitempty"`
}

// Appointment is a fully-resolved existing appointment carrying the entity
// references needed for equivalence matching.
type Appointment struct {
	Code       string    `json:"code"`
	Date       time.Time `json:"date"`
	DoctorID   string    `json:"doctor_id,omitempty"`
	IsFollowUp bool      `json:"is_follow_up,omitempty"`

	Insurance       *EntityRef `json:"insurance,omitempty"`
	Speciality      *EntityRef `json:"speciality,omitempty"`
	Procedure       *EntityRef `json:"procedure,omitempty"`
	AppointmentType *EntityRef `json:"appointment_type,omitempty"`
	OccupationArea  *EntityRef `json:"occupation_area,omitempty"`
}

// PatientScheduleSnapshot is the cached projection of a patient's existing
// appointments. NextAppointment and LastAppointment carry full entity
// references for equivalence matching; Appointments is the flat list used
// by the same-day rules.
type PatientScheduleSnapshot struct {
	NextAppointment *Appointment     `json:"next_appointment,omitempty"`
	LastAppointment *Appointment     `json:"last_appointment,omitempty"`
	Appointments    []AppointmentRef `json:"appointments,omitempty"`
}

// IsEmpty reports whether the snapshot holds no appointments at all.
func (s *PatientScheduleSnapshot) IsEmpty() bool {
	return s == nil || (s.NextAppointment == nil && s.LastAppointment == nil && len(s.Appointments) == 0)
}
