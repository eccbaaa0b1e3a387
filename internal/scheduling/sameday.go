package scheduling

import (
	"context"
	"time"
)

// SnapshotSource abstracts the cache-aside snapshot store consumed by the
// conflict filter: a cheap cached read plus a live fetch for misses.
type SnapshotSource interface {
	// Cached returns the snapshot when present in cache; ok is false on a miss.
	Cached(ctx context.Context, patientCode string) (snap *PatientScheduleSnapshot, ok bool, err error)
	// Fetch loads the snapshot live from the vendor and repopulates the cache.
	Fetch(ctx context.Context, patientCode string) (*PatientScheduleSnapshot, error)
}

// ApplyConflictRules removes candidates that violate the tenant's same-day,
// same-day-same-doctor, or same-hour rules against the patient's existing
// schedule. Rules are independent and cumulative; metadata records each
// rule that removed at least one candidate.
//
// On a cache miss the snapshot is fetched live unless isRetry is set, in
// which case an empty snapshot is assumed so a retried request cannot loop
// on the fetch that triggered the retry.
func ApplyConflictRules(ctx context.Context, rules *Rules, patientCode string, candidates []CandidateSlot, metadata SelectionMetadata, isRetry bool, snapshots SnapshotSource) ([]CandidateSlot, SelectionMetadata, error) {
	if rules == nil || (!rules.DoNotAllowSameDayScheduling && !rules.DoNotAllowSameDayAndDoctorScheduling && !rules.DoNotAllowSameHourScheduling) {
		return candidates, metadata, nil
	}
	if len(candidates) == 0 || snapshots == nil {
		return candidates, metadata, nil
	}

	snap, err := loadSnapshot(ctx, patientCode, isRetry, snapshots)
	if err != nil {
		return candidates, metadata, err
	}
	if snap.IsEmpty() {
		return candidates, metadata, nil
	}

	kept := make([]CandidateSlot, 0, len(candidates))
	for _, c := range candidates {
		dropped := false
		if rules.DoNotAllowSameDayScheduling && conflictsSameDay(c, snap, false) {
			metadata.DoNotAllowSameDayScheduling = true
			dropped = true
		}
		if rules.DoNotAllowSameDayAndDoctorScheduling && conflictsSameDay(c, snap, true) {
			metadata.DoNotAllowSameDayAndDoctorScheduling = true
			dropped = true
		}
		if rules.DoNotAllowSameHourScheduling && conflictsSameHour(c, snap, rules.MinutesAfterAppointmentCanSchedule) {
			metadata.DoNotAllowSameHourScheduling = true
			dropped = true
		}
		if !dropped {
			kept = append(kept, c)
		}
	}
	return kept, metadata, nil
}

func loadSnapshot(ctx context.Context, patientCode string, isRetry bool, snapshots SnapshotSource) (*PatientScheduleSnapshot, error) {
	snap, ok, err := snapshots.Cached(ctx, patientCode)
	if err == nil && ok {
		return snap, nil
	}
	// Cache read errors count as misses; stale-tolerant cache-aside.
	if isRetry {
		return &PatientScheduleSnapshot{}, nil
	}
	snap, err = snapshots.Fetch(ctx, patientCode)
	if err != nil {
		return nil, snapshotFetchError(err)
	}
	return snap, nil
}

func conflictsSameDay(c CandidateSlot, snap *PatientScheduleSnapshot, sameDoctor bool) bool {
	day := c.AppointmentDate.UTC().Format("2006-01-02")
	for _, appt := range snap.Appointments {
		if appt.Date.UTC().Format("2006-01-02") != day {
			continue
		}
		if !sameDoctor || appt.DoctorID == c.DoctorID {
			return true
		}
	}
	return false
}

func conflictsSameHour(c CandidateSlot, snap *PatientScheduleSnapshot, windowMinutes int) bool {
	if windowMinutes <= 0 {
		return false
	}
	window := time.Duration(windowMinutes) * time.Minute
	for _, appt := range snap.Appointments {
		gap := c.AppointmentDate.Sub(appt.Date)
		if gap < 0 {
			gap = -gap
		}
		if gap <= window {
			return true
		}
	}
	return false
}
