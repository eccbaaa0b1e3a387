package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SortMethod selects the ranking strategy applied after the period filter.
type SortMethod string

const (
	// SortDefault keeps candidates in ascending timestamp order.
	SortDefault SortMethod = "default"
	// SortFirstEachPeriodDay spreads the result across calendar days
	// before exhausting the earliest day.
	SortFirstEachPeriodDay SortMethod = "firstEachPeriodDay"
	// SortFirstEachHourDay spreads the result across clock hours.
	SortFirstEachHourDay SortMethod = "firstEachHourDay"
	// SortCombineDatePeriodByOrganization interleaves organization units so
	// consecutive entries are not all from the same unit.
	SortCombineDatePeriodByOrganization SortMethod = "combineDatePeriodByOrganization"
)

// PeriodOfDay names the requested day period.
type PeriodOfDay string

const (
	PeriodMorning   PeriodOfDay = "morning"
	PeriodAfternoon PeriodOfDay = "afternoon"
	PeriodNight     PeriodOfDay = "night"
)

// SelectOptions controls a single selector invocation.
type SelectOptions struct {
	// Limit caps the result length. Zero or negative means no cap.
	Limit int
	// PeriodStart/PeriodEnd bound the slot's local clock time of day in
	// "HH:MM" form, half-open [start, end). Empty means unbounded.
	PeriodStart string
	PeriodEnd   string
	PeriodOfDay PeriodOfDay
	// NightPeriodWrapsMidnight makes a night window span midnight
	// (tenant rule usesNightTimeInTheSelectionOfPeriod).
	NightPeriodWrapsMidnight bool
	SortMethod               SortMethod
	// Randomize enables the diversity strategies. When false the result is
	// strictly the chronological, period-filtered, limit-capped list.
	Randomize bool
	// Location resolves each slot's clock time of day. UTC when nil.
	Location *time.Location
}

// Select filters candidates by time-of-day window, applies the configured
// sort method, and truncates to the limit. Empty input yields an empty
// result, never an error.
func Select(candidates []CandidateSlot, opts SelectOptions) SelectionResult {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	start, end, bounded := periodWindow(opts)
	wraps := bounded && opts.NightPeriodWrapsMidnight && opts.PeriodOfDay == PeriodNight

	filtered := make([]CandidateSlot, 0, len(candidates))
	for _, c := range candidates {
		if !bounded || inWindow(minuteOfDay(c.AppointmentDate.In(loc)), start, end, wraps) {
			filtered = append(filtered, c)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].AppointmentDate.Before(filtered[j].AppointmentDate)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = len(filtered)
	}

	var selected []CandidateSlot
	if !opts.Randomize {
		selected = truncate(filtered, limit)
	} else {
		switch opts.SortMethod {
		case SortFirstEachPeriodDay:
			selected = pickRoundRobin(filtered, limit, func(c CandidateSlot) string {
				return c.AppointmentDate.In(loc).Format("2006-01-02")
			})
		case SortFirstEachHourDay:
			selected = pickRoundRobin(filtered, limit, func(c CandidateSlot) string {
				return c.AppointmentDate.In(loc).Format("2006-01-02 15")
			})
		case SortCombineDatePeriodByOrganization:
			selected = combineByOrganization(filtered, limit)
		default:
			selected = truncate(filtered, limit)
		}
	}

	return SelectionResult{
		Selected: selected,
		Metadata: SelectionMetadata{
			NumberOfSchedulesLessThanLimit: len(selected) < limit && opts.Limit > 0,
		},
	}
}

func truncate(slots []CandidateSlot, limit int) []CandidateSlot {
	if len(slots) > limit {
		slots = slots[:limit]
	}
	return slots
}

// pickRoundRobin buckets slots by key in chronological bucket order, then
// takes the first of each bucket, the second of each bucket, and so on
// until the limit. This spreads the result across days or hours instead of
// exhausting the earliest bucket first.
func pickRoundRobin(slots []CandidateSlot, limit int, keyOf func(CandidateSlot) string) []CandidateSlot {
	if len(slots) == 0 {
		return nil
	}
	var order []string
	buckets := make(map[string][]CandidateSlot)
	for _, s := range slots {
		key := keyOf(s)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], s)
	}

	picked := make([]CandidateSlot, 0, limit)
	for round := 0; len(picked) < limit; round++ {
		advanced := false
		for _, key := range order {
			bucket := buckets[key]
			if round >= len(bucket) {
				continue
			}
			advanced = true
			picked = append(picked, bucket[round])
			if len(picked) == limit {
				break
			}
		}
		if !advanced {
			break
		}
	}
	return picked
}

// combineByOrganization collapses slots sharing a timestamp across
// organization units, then greedily picks the earliest remaining slot whose
// unit differs from the previous pick, falling back to the earliest
// overall. With a single unit this degenerates to chronological order minus
// the collapsed duplicates.
func combineByOrganization(slots []CandidateSlot, limit int) []CandidateSlot {
	deduped := make([]CandidateSlot, 0, len(slots))
	seen := make(map[int64]bool)
	for _, s := range slots {
		ts := s.AppointmentDate.Unix()
		if seen[ts] {
			continue
		}
		seen[ts] = true
		deduped = append(deduped, s)
	}

	picked := make([]CandidateSlot, 0, limit)
	used := make([]bool, len(deduped))
	lastUnit := ""
	for len(picked) < limit {
		idx := -1
		for i, s := range deduped {
			if used[i] {
				continue
			}
			if s.OrganizationUnitID != lastUnit {
				idx = i
				break
			}
			if idx < 0 {
				idx = i
			}
		}
		if idx < 0 {
			break
		}
		used[idx] = true
		lastUnit = deduped[idx].OrganizationUnitID
		picked = append(picked, deduped[idx])
	}
	return picked
}

func periodWindow(opts SelectOptions) (start, end int, bounded bool) {
	start, end = 0, 24*60
	if opts.PeriodStart == "" && opts.PeriodEnd == "" {
		return start, end, false
	}
	if opts.PeriodStart != "" {
		if m, err := parseClock(opts.PeriodStart); err == nil {
			start = m
		}
	}
	if opts.PeriodEnd != "" {
		if m, err := parseClock(opts.PeriodEnd); err == nil {
			end = m
		}
	}
	return start, end, true
}

func inWindow(tod, start, end int, wrapsMidnight bool) bool {
	if wrapsMidnight && start > end {
		return tod >= start || tod < end
	}
	return tod >= start && tod < end
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("scheduling: invalid clock time %q", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+":"+parts[1], "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("scheduling: invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, fmt.Errorf("scheduling: clock time out of range %q", s)
	}
	return h*60 + m, nil
}
