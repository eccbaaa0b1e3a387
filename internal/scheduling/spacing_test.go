package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spacingNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return spacingNow }

func cardioFilter() EquivalenceFilter {
	return EquivalenceFilter{
		Insurance:  &EntityRef{Code: "20"},
		Speciality: &EntityRef{Code: "cardio"},
	}
}

func cardioRules() *Rules {
	return &Rules{
		SpacingWindows: []SpacingWindow{
			{InsuranceCode: "20", SpecialityCode: "cardio", Days: 31},
		},
	}
}

func snapshotWith(appt *Appointment) SnapshotFunc {
	return func(ctx context.Context, patientCode string) (*PatientScheduleSnapshot, error) {
		return &PatientScheduleSnapshot{LastAppointment: appt}, nil
	}
}

func TestParticularInsuranceSkipsSpacing(t *testing.T) {
	filter := cardioFilter()
	filter.InsuranceIsParticular = true

	calls := 0
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), filter, "p1", SpacingDeps{
		FetchSnapshot: func(ctx context.Context, patientCode string) (*PatientScheduleSnapshot, error) {
			calls++
			return nil, errors.New("must not be called")
		},
		Now: fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.OffsetDays)
	assert.Empty(t, res.DoctorsScheduled)
	assert.Zero(t, calls, "self-pay must not hit the snapshot")
}

func TestOffsetFromPriorAppointment(t *testing.T) {
	// Matching appointment 10 days ago, 31-day window: 21 days to wait.
	appt := &Appointment{
		Code:       "100",
		Date:       spacingNow.AddDate(0, 0, -10),
		Insurance:  &EntityRef{Code: "20"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, res.OffsetDays)
}

func TestOffsetFlooredAtZero(t *testing.T) {
	// Match 40 days ago already clears a 31-day window.
	appt := &Appointment{
		Code:       "100",
		Date:       spacingNow.AddDate(0, 0, -40),
		Insurance:  &EntityRef{Code: "20"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.OffsetDays)
}

func TestFutureAppointmentExtendsOffset(t *testing.T) {
	appt := &Appointment{
		Code:       "100",
		Date:       spacingNow.AddDate(0, 0, 5),
		Insurance:  &EntityRef{Code: "20"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 36, res.OffsetDays)
}

func TestInsuranceGroupingKeyMatches(t *testing.T) {
	// Codes "20" vs "30" with the same grouping key are interchangeable.
	rules := &Rules{
		SpacingWindows: []SpacingWindow{
			{ReferenceInsuranceType: "group-a", SpecialityCode: "cardio", Days: 31},
		},
	}
	filter := EquivalenceFilter{
		Insurance:  &EntityRef{Code: "20", ReferenceInsuranceType: "group-a"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	appt := &Appointment{
		Code:       "100",
		Date:       spacingNow.AddDate(0, 0, -10),
		Insurance:  &EntityRef{Code: "30", ReferenceInsuranceType: "group-a"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), rules, filter, "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, res.OffsetDays)
}

func TestExcludedCodesDoNotSelfBlock(t *testing.T) {
	// Rescheduling appointment "5566" must not anchor its own spacing.
	appt := &Appointment{
		Code:       "5566",
		Date:       spacingNow.AddDate(0, 0, 3),
		Insurance:  &EntityRef{Code: "20"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		ExcludeCodes:  []string{"5566"},
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.OffsetDays)
}

func TestNonMatchingAppointmentIgnored(t *testing.T) {
	appt := &Appointment{
		Code:       "100",
		Date:       spacingNow.AddDate(0, 0, -10),
		Insurance:  &EntityRef{Code: "99"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.OffsetDays)
}

func TestProcedureOnlyMatchingWhenConfigured(t *testing.T) {
	rules := cardioRules()
	rules.UseProcedureAsInterAppointmentValidation = true
	filter := cardioFilter()
	filter.Procedure = &EntityRef{Code: "echo"}

	// Insurance differs but procedure matches: still anchors the window.
	appt := &Appointment{
		Code:      "100",
		Date:      spacingNow.AddDate(0, 0, -10),
		Insurance: &EntityRef{Code: "other"},
		Procedure: &EntityRef{Code: "echo"},
	}
	res, err := ComputeMinimumOffset(context.Background(), rules, filter, "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, res.OffsetDays)
}

func TestOccupationAreaSubstitutesProcedure(t *testing.T) {
	rules := cardioRules()
	rules.UseOccupationAreaAsInterAppointmentValidation = true
	filter := cardioFilter()
	filter.Procedure = &EntityRef{Code: "echo"}
	filter.OccupationArea = &EntityRef{Code: "imaging"}

	appt := &Appointment{
		Code:           "100",
		Date:           spacingNow.AddDate(0, 0, -10),
		Insurance:      &EntityRef{Code: "20"},
		Speciality:     &EntityRef{Code: "cardio"},
		Procedure:      &EntityRef{Code: "different"},
		OccupationArea: &EntityRef{Code: "imaging"},
	}
	res, err := ComputeMinimumOffset(context.Background(), rules, filter, "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, res.OffsetDays)
}

func TestFollowUpAppointmentUsesTighterWindow(t *testing.T) {
	// 31-day window becomes 3 days for a follow-up anchor.
	appt := &Appointment{
		Code:       "100",
		Date:       spacingNow.AddDate(0, 0, -1),
		IsFollowUp: true,
		Insurance:  &EntityRef{Code: "20"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.OffsetDays)
}

func TestFollowUpWindowOverridesWhenLarger(t *testing.T) {
	appt := &Appointment{
		Code:       "100",
		Date:       spacingNow.AddDate(0, 0, -25),
		Insurance:  &EntityRef{Code: "20"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		FetchFollowUps: func(ctx context.Context, patientCode string) ([]FollowUpAppointment, error) {
			return []FollowUpAppointment{{
				Insurance:  &EntityRef{Code: "20"},
				Speciality: &EntityRef{Code: "cardio"},
				LimitDate:  spacingNow.AddDate(0, 0, 14),
			}}, nil
		},
		Now: fixedNow,
	})
	require.NoError(t, err)
	// Generic computation gives 6; the active follow-up window gives 14.
	assert.Equal(t, 14, res.OffsetDays)
}

func TestFollowUpWindowIgnoredWhenSmaller(t *testing.T) {
	appt := &Appointment{
		Code:       "100",
		Date:       spacingNow.AddDate(0, 0, -10),
		Insurance:  &EntityRef{Code: "20"},
		Speciality: &EntityRef{Code: "cardio"},
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(appt),
		FetchFollowUps: func(ctx context.Context, patientCode string) ([]FollowUpAppointment, error) {
			return []FollowUpAppointment{{
				Insurance:  &EntityRef{Code: "20"},
				Speciality: &EntityRef{Code: "cardio"},
				LimitDate:  spacingNow.AddDate(0, 0, 5),
			}}, nil
		},
		Now: fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, res.OffsetDays)
}

func TestSnapshotFetchErrorPropagates(t *testing.T) {
	upstream := errors.New("vendor timeout")
	_, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: func(ctx context.Context, patientCode string) (*PatientScheduleSnapshot, error) {
			return nil, upstream
		},
		Now: fixedNow,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSnapshotFetch)
	assert.ErrorIs(t, err, upstream)
	assert.True(t, IsRetryable(err))
}

func TestFollowUpFetchErrorPropagates(t *testing.T) {
	_, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: snapshotWith(nil),
		FetchFollowUps: func(ctx context.Context, patientCode string) ([]FollowUpAppointment, error) {
			return nil, errors.New("follow-up endpoint down")
		},
		Now: fixedNow,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFollowUpFetch)
	assert.True(t, IsRetryable(err))
}

func TestMissingCollaboratorDegradesToZero(t *testing.T) {
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, 0, res.OffsetDays)
	assert.Empty(t, res.DoctorsScheduled)
}

func TestDoctorsScheduledCounts(t *testing.T) {
	fetch := func(ctx context.Context, patientCode string) (*PatientScheduleSnapshot, error) {
		return &PatientScheduleSnapshot{
			Appointments: []AppointmentRef{
				{Code: "1", Date: spacingNow, DoctorID: "dr-a"},
				{Code: "2", Date: spacingNow, DoctorID: "dr-a"},
				{Code: "3", Date: spacingNow, DoctorID: "dr-b"},
				{Code: "4", Date: spacingNow, DoctorID: "dr-c"},
				{Code: "5", Date: spacingNow},
			},
		}, nil
	}
	res, err := ComputeMinimumOffset(context.Background(), nil, cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: fetch,
		ExcludeCodes:  []string{"4"},
		Now:           fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"dr-a": 2, "dr-b": 1}, res.DoctorsScheduled)
}

func TestNextAppointmentPreferredOverLast(t *testing.T) {
	fetch := func(ctx context.Context, patientCode string) (*PatientScheduleSnapshot, error) {
		return &PatientScheduleSnapshot{
			NextAppointment: &Appointment{
				Code:       "next",
				Date:       spacingNow.AddDate(0, 0, 2),
				Insurance:  &EntityRef{Code: "20"},
				Speciality: &EntityRef{Code: "cardio"},
			},
			LastAppointment: &Appointment{
				Code:       "last",
				Date:       spacingNow.AddDate(0, 0, -30),
				Insurance:  &EntityRef{Code: "20"},
				Speciality: &EntityRef{Code: "cardio"},
			},
		}, nil
	}
	res, err := ComputeMinimumOffset(context.Background(), cardioRules(), cardioFilter(), "p1", SpacingDeps{
		FetchSnapshot: fetch,
		Now:           fixedNow,
	})
	require.NoError(t, err)
	// Anchored on the upcoming appointment: 2 + 31.
	assert.Equal(t, 33, res.OffsetDays)
}
