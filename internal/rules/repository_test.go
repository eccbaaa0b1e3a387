package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestGetReturnsRulesWithWindows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT do_not_allow_same_day").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{
			"do_not_allow_same_day",
			"do_not_allow_same_day_and_doctor",
			"do_not_allow_same_hour",
			"minutes_after_appointment_can_schedule",
			"use_procedure_as_inter_appointment_validation",
			"use_occupation_area_as_inter_appointment_validation",
			"uses_night_time_in_the_selection_of_period",
		}).AddRow(true, false, true, 60, false, false, true))

	mock.ExpectQuery("SELECT insurance_code").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{
			"insurance_code", "reference_insurance_type", "speciality_code", "days",
		}).
			AddRow("20", "group-a", "cardio", 31).
			AddRow("", "", "", 15))

	repo := NewRepositoryWithDB(mock)
	rules, err := repo.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rules == nil {
		t.Fatal("expected rules")
	}
	if !rules.DoNotAllowSameDayScheduling || rules.DoNotAllowSameDayAndDoctorScheduling {
		t.Fatalf("unexpected same-day flags: %+v", rules)
	}
	if rules.MinutesAfterAppointmentCanSchedule != 60 {
		t.Fatalf("expected 60 minutes, got %d", rules.MinutesAfterAppointmentCanSchedule)
	}
	if len(rules.SpacingWindows) != 2 || rules.SpacingWindows[0].Days != 31 {
		t.Fatalf("unexpected spacing windows: %+v", rules.SpacingWindows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetNoRowsMeansDisabled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT do_not_allow_same_day").
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	repo := NewRepositoryWithDB(mock)
	rules, err := repo.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rules != nil {
		t.Fatalf("expected nil rules for unknown tenant, got %+v", rules)
	}
}

func TestGetPropagatesQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	dbErr := errors.New("connection reset")
	mock.ExpectQuery("SELECT do_not_allow_same_day").
		WithArgs("t1").
		WillReturnError(dbErr)

	repo := NewRepositoryWithDB(mock)
	if _, err := repo.Get(context.Background(), "t1"); !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
