package scheduling

// SameInsurance reports whether two insurance references are
// interchangeable for spacing purposes: equal codes, or a shared non-empty
// ReferenceInsuranceType grouping key.
func SameInsurance(a, b *EntityRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Code != "" && a.Code == b.Code {
		return true
	}
	return a.ReferenceInsuranceType != "" && a.ReferenceInsuranceType == b.ReferenceInsuranceType
}

// SameEntity compares two entity references by code. Two absent references
// are equal; an absent reference never matches a present one.
func SameEntity(a, b *EntityRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Code == b.Code
}

// matchesFilter reports whether an existing appointment is "the same kind
// of visit" as the current search. The default key is (insurance,
// speciality, procedure, appointment type); tenant rules can narrow it to
// procedure alone or substitute occupation area for procedure.
func matchesFilter(rules *Rules, filter EquivalenceFilter, appt *Appointment) bool {
	if appt == nil {
		return false
	}
	if rules != nil && rules.UseProcedureAsInterAppointmentValidation {
		return SameEntity(filter.Procedure, appt.Procedure)
	}
	occupationArea := rules != nil && rules.UseOccupationAreaAsInterAppointmentValidation
	if !SameInsurance(filter.Insurance, appt.Insurance) {
		return false
	}
	if !SameEntity(filter.Speciality, appt.Speciality) {
		return false
	}
	if !SameEntity(filter.AppointmentType, appt.AppointmentType) {
		return false
	}
	if occupationArea {
		return SameEntity(filter.OccupationArea, appt.OccupationArea)
	}
	return SameEntity(filter.Procedure, appt.Procedure)
}
