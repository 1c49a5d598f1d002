package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/metrics"
)

const providerID = "6f1c2a52-3d4e-4f7a-9b1c-2d3e4f5a6b7c"

// Wednesday 2026-01-28, mid-morning.
var now = time.Date(2026, 1, 28, 10, 15, 0, 0, time.UTC)

type brokenStore struct {
	*availability.MemoryStore
	apptErr     error
	durationErr error
}

func (s *brokenStore) ActiveAppointments(ctx context.Context, providerID string, date time.Time) ([]availability.Appointment, error) {
	if s.apptErr != nil {
		return nil, s.apptErr
	}
	return s.MemoryStore.ActiveAppointments(ctx, providerID, date)
}

func (s *brokenStore) ServiceDuration(ctx context.Context, providerID, serviceID string) (int, error) {
	if s.durationErr != nil {
		return 0, s.durationErr
	}
	return s.MemoryStore.ServiceDuration(ctx, providerID, serviceID)
}

func newTestHandler(t *testing.T) (http.Handler, *brokenStore) {
	t.Helper()
	mem := availability.NewMemoryStore()
	mem.SetWindows(providerID,
		availability.WeeklyWindow{DayOfWeek: 5, Start: availability.MustClock("09:00"), End: availability.MustClock("11:00"), IsActive: true},
		availability.WeeklyWindow{DayOfWeek: 4, Start: availability.MustClock("13:00"), End: availability.MustClock("14:00"), IsActive: true},
	)
	mem.AddAppointment(providerID, availability.Appointment{
		Date: time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC), Start: availability.MustClock("09:30"), DurationMinutes: 30, Status: availability.StatusConfirmed,
	})
	mem.SetServiceDuration(providerID, "svc-long", 60)
	store := &brokenStore{MemoryStore: mem}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewAvailabilityMetrics(prometheus.NewRegistry())
	days := availability.NewDayIndex(store,
		availability.WithClock(func() time.Time { return now }),
		availability.WithLogger(logger),
		availability.WithObserver(m),
	)
	h := NewAvailabilityHandler(store, days, logger, m, Config{DefaultDays: 7, MaxDays: 30})

	mux := http.NewServeMux()
	h.Routes(mux)
	return mux, store
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestSlots(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := get(t, h, "/api/v1/public/slots?provider_id="+providerID+"&date=2026-01-30&duration_minutes=30")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}

	var got []slotItem
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []slotItem{
		{StartTime: "09:00", EndTime: "09:30", IsAvailable: true},
		{StartTime: "09:30", EndTime: "10:00", IsAvailable: false, ConflictReason: availability.ConflictAlreadyBooked},
		{StartTime: "10:00", EndTime: "10:30", IsAvailable: true},
		{StartTime: "10:30", EndTime: "11:00", IsAvailable: true},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSlotsServiceDuration(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := get(t, h, "/api/v1/public/slots?provider_id="+providerID+"&date=2026-01-30&service_id=svc-long")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got []slotItem
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	// 60-minute service steps by 60: 09:00 conflicts with the 09:30 booking, 10:00 is free.
	if len(got) != 2 || got[0].IsAvailable || !got[1].IsAvailable || got[1].EndTime != "11:00" {
		t.Fatalf("unexpected slots: %+v", got)
	}
}

func TestSlotsEmptyDayIsEmptyArray(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := get(t, h, "/api/v1/public/slots?provider_id="+providerID+"&date=2026-02-01")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Fatalf("expected [], got %s", body)
	}
}

func TestSlotsBadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := []struct {
		name  string
		query string
	}{
		{"missing provider", "date=2026-01-30"},
		{"bad provider", "provider_id=nope&date=2026-01-30"},
		{"missing date", "provider_id=" + providerID},
		{"bad date", "provider_id=" + providerID + "&date=30/01/2026"},
		{"zero duration", "provider_id=" + providerID + "&date=2026-01-30&duration_minutes=0"},
		{"huge duration", "provider_id=" + providerID + "&date=2026-01-30&duration_minutes=2000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := get(t, h, "/api/v1/public/slots?"+tc.query)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSlotsStoreFailureIsUnavailable(t *testing.T) {
	h, store := newTestHandler(t)
	store.apptErr = errors.New("connection refused")

	rr := get(t, h, "/api/v1/public/slots?provider_id="+providerID+"&date=2026-01-30")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestSlotsServiceLookupFailureIsUnavailable(t *testing.T) {
	h, store := newTestHandler(t)
	store.durationErr = errors.New("connection refused")

	rr := get(t, h, "/api/v1/public/slots?provider_id="+providerID+"&date=2026-01-30&service_id=svc-long")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestSlotsMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/public/slots", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestDays(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := get(t, h, "/api/v1/public/days?provider_id="+providerID)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got []dayItem
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []dayItem{
		{Date: "2026-01-29", Label: "Tomorrow", OpenSlotCount: 2},
		{Date: "2026-01-30", Label: "Friday", OpenSlotCount: 3},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d days, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("day %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestDaysCountIsCapped(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := get(t, h, "/api/v1/public/days?provider_id="+providerID+"&days=500")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got []dayItem
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	// 30 days from Wednesday 2026-01-28 end on Thursday 2026-02-26: five Thursdays, four Fridays.
	if len(got) != 9 {
		t.Fatalf("expected 9 open days within the cap, got %d", len(got))
	}
	if last := got[len(got)-1].Date; last > "2026-02-26" {
		t.Fatalf("day %s is beyond the 30 day cap", last)
	}
}

func TestDaysBadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, q := range []string{"days=3", "provider_id=" + providerID + "&days=0", "provider_id=" + providerID + "&days=abc"} {
		rr := get(t, h, "/api/v1/public/days?"+q)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestDaysAllFetchesFailIsUnavailable(t *testing.T) {
	h, store := newTestHandler(t)
	store.apptErr = errors.New("connection refused")

	rr := get(t, h, "/api/v1/public/days?provider_id="+providerID)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "please retry") {
		t.Fatalf("expected retry hint, got %q", rr.Body.String())
	}
}

func TestDaysNoWindowsIsEmptyArray(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := get(t, h, "/api/v1/public/days?provider_id=11111111-2222-3333-4444-555555555555")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Fatalf("expected [], got %s", body)
	}
}
