package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/metrics"
)

const (
	endpointSlots = "slots"
	endpointDays  = "days"

	maxDurationMinutes = availability.MinutesPerDay
)

type Config struct {
	// Location is the provider's wall-clock zone; query dates are read in it.
	Location    *time.Location
	DefaultDays int
	MaxDays     int
}

type AvailabilityHandler struct {
	store   availability.Store
	engine  *availability.Engine
	days    *availability.DayIndex
	logger  *slog.Logger
	metrics *metrics.AvailabilityMetrics
	cfg     Config
}

func NewAvailabilityHandler(store availability.Store, days *availability.DayIndex, logger *slog.Logger, m *metrics.AvailabilityMetrics, cfg Config) *AvailabilityHandler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 14
	}
	if cfg.MaxDays < cfg.DefaultDays {
		cfg.MaxDays = cfg.DefaultDays
	}
	return &AvailabilityHandler{
		store:   store,
		engine:  availability.NewEngine(store),
		days:    days,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
	}
}

// Routes registers the public availability endpoints on mux.
func (h *AvailabilityHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/days", h.Days)
}

type slotItem struct {
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	IsAvailable    bool   `json:"is_available"`
	ConflictReason string `json:"conflict_reason,omitempty"`
}

type dayItem struct {
	Date          string `json:"date"`
	Label         string `json:"label"`
	OpenSlotCount int    `json:"open_slot_count"`
}

// Slots lists every candidate slot for one date, booked ones included.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	q := r.URL.Query()

	providerID, ok := h.providerID(w, r)
	if !ok {
		h.metrics.ObserveQuery(endpointSlots, "invalid", time.Since(start).Seconds())
		return
	}
	dateStr := strings.TrimSpace(q.Get("date"))
	if dateStr == "" {
		h.metrics.ObserveQuery(endpointSlots, "invalid", time.Since(start).Seconds())
		http.Error(w, "provider_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation(time.DateOnly, dateStr, h.cfg.Location)
	if err != nil {
		h.metrics.ObserveQuery(endpointSlots, "invalid", time.Since(start).Seconds())
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	durationMins, err := h.serviceDuration(r, providerID)
	if err != nil {
		h.metrics.ObserveQuery(endpointSlots, h.writeError(w, err, "provider_id", providerID), time.Since(start).Seconds())
		return
	}

	slots, err := h.engine.SlotsForDate(r.Context(), providerID, date, durationMins)
	if err != nil {
		h.metrics.ObserveQuery(endpointSlots, h.writeError(w, err, "provider_id", providerID, "date", dateStr), time.Since(start).Seconds())
		return
	}
	if sorted, _ := strconv.ParseBool(q.Get("sorted")); sorted {
		availability.SortByStart(slots)
	}

	resp := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, slotItem{
			StartTime:      s.Start.String(),
			EndTime:        s.End.String(),
			IsAvailable:    s.IsAvailable,
			ConflictReason: s.ConflictReason,
		})
	}
	writeJSON(w, resp)
	h.metrics.ObserveQuery(endpointSlots, "ok", time.Since(start).Seconds())
}

// Days lists the upcoming days that still have at least one open slot.
func (h *AvailabilityHandler) Days(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	providerID, ok := h.providerID(w, r)
	if !ok {
		h.metrics.ObserveQuery(endpointDays, "invalid", time.Since(start).Seconds())
		return
	}
	dayCount := h.cfg.DefaultDays
	if v := strings.TrimSpace(r.URL.Query().Get("days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.metrics.ObserveQuery(endpointDays, "invalid", time.Since(start).Seconds())
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
		dayCount = min(n, h.cfg.MaxDays)
	}
	durationMins, err := h.serviceDuration(r, providerID)
	if err != nil {
		h.metrics.ObserveQuery(endpointDays, h.writeError(w, err, "provider_id", providerID), time.Since(start).Seconds())
		return
	}

	days, err := h.days.RankAvailableDays(r.Context(), providerID, dayCount, durationMins)
	if err != nil {
		h.metrics.ObserveQuery(endpointDays, h.writeError(w, err, "provider_id", providerID, "days", dayCount), time.Since(start).Seconds())
		return
	}

	resp := make([]dayItem, 0, len(days))
	for _, d := range days {
		resp = append(resp, dayItem{
			Date:          d.Date.Format(time.DateOnly),
			Label:         d.Label,
			OpenSlotCount: d.OpenSlotCount,
		})
	}
	writeJSON(w, resp)
	h.metrics.ObserveQuery(endpointDays, "ok", time.Since(start).Seconds())
}

func (h *AvailabilityHandler) providerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if raw == "" {
		http.Error(w, "provider_id is required", http.StatusBadRequest)
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid provider_id", http.StatusBadRequest)
		return "", false
	}
	return id.String(), true
}

// serviceDuration reads duration_minutes, falling back to the length of service_id and then
// to the default duration.
func (h *AvailabilityHandler) serviceDuration(r *http.Request, providerID string) (int, error) {
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("duration_minutes")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDurationMinutes {
			return 0, &availability.InputError{Field: "duration_minutes", Reason: "must be between 1 and " + strconv.Itoa(maxDurationMinutes)}
		}
		return n, nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	return availability.ResolveServiceDuration(ctx, h.store, providerID, strings.TrimSpace(q.Get("service_id")))
}

// writeError maps an availability error to a response and returns the outcome label.
func (h *AvailabilityHandler) writeError(w http.ResponseWriter, err error, attrs ...any) string {
	switch {
	case errors.Is(err, availability.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "invalid"
	case errors.Is(err, availability.ErrAvailabilityUnavailable):
		h.logger.Error("availability scan failed", append(attrs, "err", err)...)
		http.Error(w, "could not load availability, please retry", http.StatusServiceUnavailable)
		return "unavailable"
	default:
		h.logger.Error("availability store error", append(attrs, "err", err)...)
		http.Error(w, "availability service unavailable", http.StatusServiceUnavailable)
		return "unavailable"
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
