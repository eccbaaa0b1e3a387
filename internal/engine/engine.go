// Package engine wires the three-stage slot pipeline: inter-appointment
// offset, vendor search, slot selection, same-day conflict filtering.
// Stages run strictly in that order for one request; independent requests
// are safe to run concurrently.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careflow/scheduling-engine/internal/integrator"
	"github.com/careflow/scheduling-engine/internal/observability/metrics"
	"github.com/careflow/scheduling-engine/internal/scheduling"
	"github.com/careflow/scheduling-engine/internal/snapshot"
	"github.com/careflow/scheduling-engine/pkg/logging"
)

var engineTracer = otel.Tracer("careflow.internal.engine")

// RulesProvider loads per-tenant scheduling rules. Nil rules disable every
// rule.
type RulesProvider interface {
	Get(ctx context.Context, tenantID string) (*scheduling.Rules, error)
}

// Engine runs the slot pipeline against a vendor integrator.
type Engine struct {
	registry  *integrator.Registry
	rules     RulesProvider
	snapshots *snapshot.Store
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// New constructs the engine. metrics may be nil.
func New(registry *integrator.Registry, rules RulesProvider, snapshots *snapshot.Store, m *metrics.SchedulingMetrics, logger *logging.Logger) *Engine {
	if registry == nil {
		panic("engine: integrator registry required")
	}
	if snapshots == nil {
		panic("engine: snapshot store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		registry:  registry,
		rules:     rules,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// FindRequest describes one availability search.
type FindRequest struct {
	TenantID    string
	PatientCode string
	// Vendor selects the integrator; resolved against the registry.
	Vendor string
	Filter scheduling.EquivalenceFilter
	// From/To bound the search window. Zero From means now; zero To means
	// thirty days past From.
	From    time.Time
	To      time.Time
	Options scheduling.SelectOptions
	// ExcludeCodes lists appointment codes being rescheduled.
	ExcludeCodes []string
	// IsRetry marks a retried request; a snapshot cache miss then assumes
	// an empty schedule instead of re-fetching.
	IsRetry bool
}

// FindResponse is the pipeline output.
type FindResponse struct {
	RequestID        string
	Vendor           string
	OffsetDays       int
	DoctorsScheduled map[string]int
	Slots            []scheduling.CandidateSlot
	Metadata         scheduling.SelectionMetadata
}

// FindSlots runs validator -> vendor search -> selector -> conflict filter.
func (e *Engine) FindSlots(ctx context.Context, req FindRequest) (*FindResponse, error) {
	started := e.now()
	requestID := uuid.NewString()

	ctx, span := engineTracer.Start(ctx, "engine.find_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("careflow.tenant_id", req.TenantID),
		attribute.String("careflow.vendor", req.Vendor),
		attribute.String("careflow.request_id", requestID),
	)

	it, err := e.registry.Resolve(req.Vendor)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tenantRules, err := e.loadRules(ctx, req.TenantID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	scoped := e.snapshots.Scoped(req.TenantID, e.countingFetcher(it))

	spacing, err := scheduling.ComputeMinimumOffset(ctx, tenantRules, req.Filter, req.PatientCode, scheduling.SpacingDeps{
		FetchSnapshot:  scoped.GetOrFetch,
		FetchFollowUps: e.followUps(it, req.TenantID),
		ExcludeCodes:   req.ExcludeCodes,
		Now:            e.now,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	e.metrics.ObserveOffsetDays(spacing.OffsetDays)

	from, to := e.searchWindow(req, spacing.OffsetDays)
	candidates, err := it.SearchSlots(ctx, integrator.SearchRequest{
		TenantID:    req.TenantID,
		PatientCode: req.PatientCode,
		Filter:      req.Filter,
		From:        from,
		To:          to,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("engine: vendor search: %w", err)
	}

	opts := req.Options
	if tenantRules != nil {
		opts.NightPeriodWrapsMidnight = tenantRules.UsesNightTimeInTheSelectionOfPeriod
	}
	selection := scheduling.Select(candidates, opts)

	slots, meta, err := scheduling.ApplyConflictRules(ctx, tenantRules, req.PatientCode, selection.Selected, selection.Metadata, req.IsRetry, scoped)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	e.observeRules(meta)

	outcome := "ok"
	if len(slots) == 0 {
		outcome = "empty"
	}
	method := string(opts.SortMethod)
	if method == "" {
		method = string(scheduling.SortDefault)
	}
	e.metrics.ObserveSelection(method, outcome)
	e.metrics.ObservePipelineLatency(it.Name(), e.now().Sub(started).Seconds())

	e.logger.Info("slot pipeline complete",
		"request_id", requestID,
		"tenant_id", req.TenantID,
		"vendor", it.Name(),
		"offset_days", spacing.OffsetDays,
		"candidates", len(candidates),
		"selected", len(slots),
	)

	return &FindResponse{
		RequestID:        requestID,
		Vendor:           it.Name(),
		OffsetDays:       spacing.OffsetDays,
		DoctorsScheduled: spacing.DoctorsScheduled,
		Slots:            slots,
		Metadata:         meta,
	}, nil
}

func (e *Engine) loadRules(ctx context.Context, tenantID string) (*scheduling.Rules, error) {
	if e.rules == nil {
		return nil, nil
	}
	tenantRules, err := e.rules.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("engine: load tenant rules: %w", err)
	}
	return tenantRules, nil
}

// searchWindow applies defaults and floors the start of the vendor query by
// the computed inter-appointment offset.
func (e *Engine) searchWindow(req FindRequest, offsetDays int) (time.Time, time.Time) {
	from := req.From
	if from.IsZero() {
		from = e.now()
	}
	if offsetDays > 0 {
		floor := e.now().AddDate(0, 0, offsetDays)
		if floor.After(from) {
			from = floor
		}
	}
	to := req.To
	if to.IsZero() || to.Before(from) {
		to = from.AddDate(0, 0, 30)
	}
	return from, to
}

func (e *Engine) countingFetcher(it integrator.Integrator) snapshot.Fetcher {
	return func(ctx context.Context, tenantID, patientCode string) (*scheduling.PatientScheduleSnapshot, error) {
		snap, err := it.PatientSchedule(ctx, tenantID, patientCode)
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.ObserveSnapshotFetch("vendor", status)
		return snap, err
	}
}

func (e *Engine) followUps(it integrator.Integrator, tenantID string) scheduling.FollowUpsFunc {
	src, ok := it.(integrator.FollowUpSource)
	if !ok {
		return nil
	}
	return func(ctx context.Context, patientCode string) ([]scheduling.FollowUpAppointment, error) {
		return src.FollowUps(ctx, tenantID, patientCode)
	}
}

func (e *Engine) observeRules(meta scheduling.SelectionMetadata) {
	if meta.NumberOfSchedulesLessThanLimit {
		e.metrics.ObserveRuleFired("number_of_schedules_less_than_limit")
	}
	if meta.DoNotAllowSameDayScheduling {
		e.metrics.ObserveRuleFired("do_not_allow_same_day_scheduling")
	}
	if meta.DoNotAllowSameDayAndDoctorScheduling {
		e.metrics.ObserveRuleFired("do_not_allow_same_day_and_doctor_scheduling")
	}
	if meta.DoNotAllowSameHourScheduling {
		e.metrics.ObserveRuleFired("do_not_allow_same_hour_scheduling")
	}
}
