// Package rules loads per-tenant scheduling rule configuration from
// Postgres. A tenant without a rules row gets nil rules, meaning every
// rule is disabled.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow/scheduling-engine/internal/scheduling"
)

type db interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for tenant scheduling rules.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("rules: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(d db) *Repository {
	return &Repository{db: d}
}

const getRulesSQL = `
SELECT do_not_allow_same_day,
       do_not_allow_same_day_and_doctor,
       do_not_allow_same_hour,
       minutes_after_appointment_can_schedule,
       use_procedure_as_inter_appointment_validation,
       use_occupation_area_as_inter_appointment_validation,
       uses_night_time_in_the_selection_of_period
  FROM scheduling_rules
 WHERE tenant_id = $1`

const getWindowsSQL = `
SELECT insurance_code, reference_insurance_type, speciality_code, days
  FROM spacing_windows
 WHERE tenant_id = $1
 ORDER BY insurance_code, speciality_code`

// Get loads the tenant's rules plus spacing windows. Returns (nil, nil)
// when the tenant has no configuration.
func (r *Repository) Get(ctx context.Context, tenantID string) (*scheduling.Rules, error) {
	var rules scheduling.Rules
	err := r.db.QueryRow(ctx, getRulesSQL, tenantID).Scan(
		&rules.DoNotAllowSameDayScheduling,
		&rules.DoNotAllowSameDayAndDoctorScheduling,
		&rules.DoNotAllowSameHourScheduling,
		&rules.MinutesAfterAppointmentCanSchedule,
		&rules.UseProcedureAsInterAppointmentValidation,
		&rules.UseOccupationAreaAsInterAppointmentValidation,
		&rules.UsesNightTimeInTheSelectionOfPeriod,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rules: load for tenant: %w", err)
	}

	windows, err := r.spacingWindows(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	rules.SpacingWindows = windows
	return &rules, nil
}

func (r *Repository) spacingWindows(ctx context.Context, tenantID string) ([]scheduling.SpacingWindow, error) {
	rows, err := r.db.Query(ctx, getWindowsSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("rules: load spacing windows: %w", err)
	}
	defer rows.Close()

	var windows []scheduling.SpacingWindow
	for rows.Next() {
		var w scheduling.SpacingWindow
		if err := rows.Scan(&w.InsuranceCode, &w.ReferenceInsuranceType, &w.SpecialityCode, &w.Days); err != nil {
			return nil, fmt.Errorf("rules: scan spacing window: %w", err)
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rules: iterate spacing windows: %w", err)
	}
	return windows, nil
}
