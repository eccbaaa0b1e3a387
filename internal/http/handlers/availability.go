// Package handlers exposes the slot pipeline over HTTP for the bot/UI
// layer. The engine itself stays callable as a library; this surface is a
// thin JSON translation.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careflow/scheduling-engine/internal/engine"
	"github.com/careflow/scheduling-engine/internal/scheduling"
	"github.com/careflow/scheduling-engine/internal/tenancy"
	"github.com/careflow/scheduling-engine/pkg/logging"
)

// AvailabilityHandler serves slot availability searches.
type AvailabilityHandler struct {
	engine        *engine.Engine
	defaultVendor string
	defaultLimit  int
	logger        *logging.Logger
}

// NewAvailabilityHandler creates the availability HTTP handler.
func NewAvailabilityHandler(eng *engine.Engine, defaultVendor string, defaultLimit int, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{
		engine:        eng,
		defaultVendor: defaultVendor,
		defaultLimit:  defaultLimit,
		logger:        logger,
	}
}

// Routes returns a chi router with availability routes.
func (h *AvailabilityHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{tenantID}/availability", h.FindSlots)
	return r
}

// AvailabilityRequest is the request body for an availability search.
type AvailabilityRequest struct {
	PatientCode  string                       `json:"patient_code"`
	Vendor       string                       `json:"vendor,omitempty"`
	Filter       scheduling.EquivalenceFilter `json:"filter"`
	From         *time.Time                   `json:"from,omitempty"`
	To           *time.Time                   `json:"to,omitempty"`
	Limit        int                          `json:"limit,omitempty"`
	PeriodStart  string                       `json:"period_start,omitempty"`
	PeriodEnd    string                       `json:"period_end,omitempty"`
	PeriodOfDay  string                       `json:"period_of_day,omitempty"`
	SortMethod   string                       `json:"sort_method,omitempty"`
	Randomize    bool                         `json:"randomize,omitempty"`
	Timezone     string                       `json:"timezone,omitempty"`
	ExcludeCodes []string                     `json:"exclude_codes,omitempty"`
	IsRetry      bool                         `json:"is_retry,omitempty"`
}

// AvailabilitySlot is one offered slot in the response.
type AvailabilitySlot struct {
	AppointmentCode    string    `json:"appointment_code"`
	AppointmentDate    time.Time `json:"appointment_date"`
	DoctorID           string    `json:"doctor_id,omitempty"`
	OrganizationUnitID string    `json:"organization_unit_id,omitempty"`
	DurationMinutes    int       `json:"duration_minutes,omitempty"`
	IsFollowUp         bool      `json:"is_follow_up,omitempty"`
}

// AvailabilityResponse is the availability search result.
type AvailabilityResponse struct {
	RequestID        string                       `json:"request_id"`
	Vendor           string                       `json:"vendor"`
	OffsetDays       int                          `json:"offset_days"`
	DoctorsScheduled map[string]int               `json:"doctors_scheduled,omitempty"`
	Slots            []AvailabilitySlot           `json:"slots"`
	Metadata         scheduling.SelectionMetadata `json:"metadata"`
}

// FindSlots runs the pipeline for a tenant.
// POST /v1/tenants/{tenantID}/availability
func (h *AvailabilityHandler) FindSlots(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		http.Error(w, `{"error": "tenant_id required"}`, http.StatusBadRequest)
		return
	}

	var req AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.PatientCode == "" {
		http.Error(w, `{"error": "patient_code required"}`, http.StatusBadRequest)
		return
	}

	ctx := tenancy.WithTenantID(r.Context(), tenantID)

	findReq := engine.FindRequest{
		TenantID:     tenantID,
		PatientCode:  req.PatientCode,
		Vendor:       req.Vendor,
		Filter:       req.Filter,
		ExcludeCodes: req.ExcludeCodes,
		IsRetry:      req.IsRetry,
		Options: scheduling.SelectOptions{
			Limit:       req.Limit,
			PeriodStart: req.PeriodStart,
			PeriodEnd:   req.PeriodEnd,
			PeriodOfDay: scheduling.PeriodOfDay(req.PeriodOfDay),
			SortMethod:  scheduling.SortMethod(req.SortMethod),
			Randomize:   req.Randomize,
		},
	}
	if findReq.Vendor == "" {
		findReq.Vendor = h.defaultVendor
	}
	if findReq.Options.Limit <= 0 {
		findReq.Options.Limit = h.defaultLimit
	}
	if req.From != nil {
		findReq.From = *req.From
	}
	if req.To != nil {
		findReq.To = *req.To
	}
	if req.Timezone != "" {
		loc, err := time.LoadLocation(req.Timezone)
		if err != nil {
			http.Error(w, `{"error": "invalid timezone"}`, http.StatusBadRequest)
			return
		}
		findReq.Options.Location = loc
	}

	resp, err := h.engine.FindSlots(ctx, findReq)
	if err != nil {
		if scheduling.IsRetryable(err) {
			h.logger.Warn("availability fetch failed upstream", "tenant_id", tenantID, "error", err)
			http.Error(w, `{"error": "unable to verify prior appointments, try again"}`, http.StatusBadGateway)
			return
		}
		h.logger.Error("availability search failed", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	out := AvailabilityResponse{
		RequestID:        resp.RequestID,
		Vendor:           resp.Vendor,
		OffsetDays:       resp.OffsetDays,
		DoctorsScheduled: resp.DoctorsScheduled,
		Slots:            make([]AvailabilitySlot, 0, len(resp.Slots)),
		Metadata:         resp.Metadata,
	}
	for _, s := range resp.Slots {
		out.Slots = append(out.Slots, AvailabilitySlot{
			AppointmentCode:    s.AppointmentCode,
			AppointmentDate:    s.AppointmentDate,
			DoctorID:           s.DoctorID,
			OrganizationUnitID: s.OrganizationUnitID,
			DurationMinutes:    s.DurationMinutes,
			IsFollowUp:         s.IsFollowUp,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Error("failed to encode availability response", "tenant_id", tenantID, "error", err)
	}
}
