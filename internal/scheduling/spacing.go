package scheduling

import (
	"context"
	"errors"
	"time"
)

// ErrFollowUpFetch marks an upstream failure while loading a patient's
// active follow-up windows. Retryable, propagated like ErrSnapshotFetch.
var ErrFollowUpFetch = errors.New("scheduling: follow-up fetch failed")

// SnapshotFunc loads the patient's schedule snapshot. Implementations may
// hit a cache or a live vendor call; they must be idempotent.
type SnapshotFunc func(ctx context.Context, patientCode string) (*PatientScheduleSnapshot, error)

// FollowUpsFunc returns the patient's active follow-up windows. Optional:
// a nil FollowUpsFunc disables the follow-up override without error.
type FollowUpsFunc func(ctx context.Context, patientCode string) ([]FollowUpAppointment, error)

// SpacingDeps carries the injected collaborators for an offset computation.
type SpacingDeps struct {
	FetchSnapshot  SnapshotFunc
	FetchFollowUps FollowUpsFunc
	// ExcludeCodes lists appointment codes ignored entirely, typically the
	// appointment currently being rescheduled.
	ExcludeCodes []string
	// Now overrides the clock in tests. time.Now when nil.
	Now func() time.Time
}

// SpacingResult is the outcome of an inter-appointment offset computation.
type SpacingResult struct {
	// OffsetDays is the minimum number of days from now before a new
	// equivalent appointment may be booked. Applied by callers as a floor
	// on the vendor search window.
	OffsetDays int
	// DoctorsScheduled maps doctor code to the count of the patient's
	// already-scheduled appointments with that doctor. Callers use it to
	// bias doctor selection away from over-booked doctors.
	DoctorsScheduled map[string]int
}

// ComputeMinimumOffset computes how many days must elapse before the
// patient may book another appointment equivalent to the given filter.
//
// Self-pay (particular) insurances are exempt. Snapshot/follow-up fetch
// failures propagate wrapped in ErrSnapshotFetch/ErrFollowUpFetch; all
// other degradations yield a zero offset so availability fails open.
func ComputeMinimumOffset(ctx context.Context, rules *Rules, filter EquivalenceFilter, patientCode string, deps SpacingDeps) (SpacingResult, error) {
	empty := SpacingResult{DoctorsScheduled: map[string]int{}}
	if filter.InsuranceIsParticular {
		return empty, nil
	}
	if patientCode == "" || deps.FetchSnapshot == nil {
		// Missing collaborator or identity: nothing to match against.
		return empty, nil
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	snap, err := deps.FetchSnapshot(ctx, patientCode)
	if err != nil {
		return empty, snapshotFetchError(err)
	}

	excluded := make(map[string]bool, len(deps.ExcludeCodes))
	for _, code := range deps.ExcludeCodes {
		excluded[code] = true
	}

	result := SpacingResult{DoctorsScheduled: countByDoctor(snap, excluded)}

	matched := mostRelevantMatch(rules, filter, snap, excluded)
	if matched != nil {
		window := rules.SpacingDays(filter)
		if matched.IsFollowUp {
			window = followUpWindow(window)
		}
		offset := wholeDaysBetween(now(), matched.Date) + window
		if offset > 0 {
			result.OffsetDays = offset
		}
	}

	if deps.FetchFollowUps != nil {
		followUps, err := deps.FetchFollowUps(ctx, patientCode)
		if err != nil {
			return empty, errors.Join(ErrFollowUpFetch, err)
		}
		for _, fu := range followUps {
			if !followUpMatches(rules, filter, fu) {
				continue
			}
			remaining := wholeDaysBetween(now(), fu.LimitDate)
			if remaining > result.OffsetDays {
				// The larger restriction wins when both computations apply.
				result.OffsetDays = remaining
			}
		}
	}

	return result, nil
}

// mostRelevantMatch picks the single equivalent appointment the spacing
// window anchors on. The upcoming appointment is preferred over the last
// past one when both match; the later date yields the more restrictive
// offset.
func mostRelevantMatch(rules *Rules, filter EquivalenceFilter, snap *PatientScheduleSnapshot, excluded map[string]bool) *Appointment {
	if snap == nil {
		return nil
	}
	for _, appt := range []*Appointment{snap.NextAppointment, snap.LastAppointment} {
		if appt == nil || excluded[appt.Code] {
			continue
		}
		if matchesFilter(rules, filter, appt) {
			return appt
		}
	}
	return nil
}

func countByDoctor(snap *PatientScheduleSnapshot, excluded map[string]bool) map[string]int {
	counts := map[string]int{}
	if snap == nil {
		return counts
	}
	for _, ref := range snap.Appointments {
		if ref.DoctorID == "" || excluded[ref.Code] {
			continue
		}
		counts[ref.DoctorID]++
	}
	return counts
}

func followUpMatches(rules *Rules, filter EquivalenceFilter, fu FollowUpAppointment) bool {
	if rules != nil && rules.UseProcedureAsInterAppointmentValidation {
		return SameEntity(filter.Procedure, fu.Procedure)
	}
	if !SameInsurance(filter.Insurance, fu.Insurance) || !SameEntity(filter.Speciality, fu.Speciality) {
		return false
	}
	if rules != nil && rules.UseOccupationAreaAsInterAppointmentValidation {
		return SameEntity(filter.OccupationArea, fu.OccupationArea)
	}
	return true
}

// followUpWindow is the tighter spacing applied when the matched
// appointment is itself a follow-up: a tenth of the standard window, at
// least one day.
func followUpWindow(days int) int {
	if days <= 0 {
		return 0
	}
	w := days / 10
	if w < 1 {
		w = 1
	}
	return w
}

// wholeDaysBetween returns the calendar-day distance from `from` to `to`,
// negative when `to` is in the past.
func wholeDaysBetween(from, to time.Time) int {
	fromDay := from.UTC().Truncate(24 * time.Hour)
	toDay := to.UTC().Truncate(24 * time.Hour)
	return int(toDay.Sub(fromDay) / (24 * time.Hour))
}
