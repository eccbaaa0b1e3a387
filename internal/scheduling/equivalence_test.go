package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameInsurance(t *testing.T) {
	tests := []struct {
		name string
		a, b *EntityRef
		want bool
	}{
		{"equal codes", &EntityRef{Code: "20"}, &EntityRef{Code: "20"}, true},
		{"different codes", &EntityRef{Code: "20"}, &EntityRef{Code: "30"}, false},
		{"shared grouping key", &EntityRef{Code: "20", ReferenceInsuranceType: "g"}, &EntityRef{Code: "30", ReferenceInsuranceType: "g"}, true},
		{"empty grouping keys do not match", &EntityRef{Code: "20"}, &EntityRef{Code: "30", ReferenceInsuranceType: ""}, false},
		{"both nil", nil, nil, true},
		{"one nil", &EntityRef{Code: "20"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameInsurance(tt.a, tt.b))
			assert.Equal(t, tt.want, SameInsurance(tt.b, tt.a))
		})
	}
}

func TestSameEntity(t *testing.T) {
	assert.True(t, SameEntity(&EntityRef{Code: "x"}, &EntityRef{Code: "x"}))
	assert.False(t, SameEntity(&EntityRef{Code: "x"}, &EntityRef{Code: "y"}))
	assert.True(t, SameEntity(nil, nil))
	assert.False(t, SameEntity(nil, &EntityRef{Code: "x"}))
}

func TestRulesSpacingDays(t *testing.T) {
	rules := &Rules{SpacingWindows: []SpacingWindow{
		{InsuranceCode: "20", SpecialityCode: "cardio", Days: 31},
		{InsuranceCode: "20", Days: 15},
		{Days: 7},
	}}

	cardio := EquivalenceFilter{Insurance: &EntityRef{Code: "20"}, Speciality: &EntityRef{Code: "cardio"}}
	assert.Equal(t, 31, rules.SpacingDays(cardio))

	derm := EquivalenceFilter{Insurance: &EntityRef{Code: "20"}, Speciality: &EntityRef{Code: "derm"}}
	assert.Equal(t, 15, rules.SpacingDays(derm))

	other := EquivalenceFilter{Insurance: &EntityRef{Code: "99"}}
	assert.Equal(t, 7, rules.SpacingDays(other))

	var nilRules *Rules
	assert.Equal(t, 0, nilRules.SpacingDays(cardio))
}

func TestMatchesFilterDefaultKey(t *testing.T) {
	filter := EquivalenceFilter{
		Insurance:       &EntityRef{Code: "20"},
		Speciality:      &EntityRef{Code: "cardio"},
		Procedure:       &EntityRef{Code: "echo"},
		AppointmentType: &EntityRef{Code: "first"},
	}
	appt := &Appointment{
		Insurance:       &EntityRef{Code: "20"},
		Speciality:      &EntityRef{Code: "cardio"},
		Procedure:       &EntityRef{Code: "echo"},
		AppointmentType: &EntityRef{Code: "first"},
	}
	assert.True(t, matchesFilter(nil, filter, appt))

	appt.AppointmentType = &EntityRef{Code: "return"}
	assert.False(t, matchesFilter(nil, filter, appt))

	assert.False(t, matchesFilter(nil, filter, nil))
}
