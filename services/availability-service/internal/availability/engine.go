package availability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/md-rashed-zaman/bookslots/availability"

// Engine computes a provider's slots for a single date from a Store.
type Engine struct {
	store  Store
	tracer trace.Tracer
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, tracer: otel.Tracer(tracerName)}
}

// SlotsForDate loads the provider's windows and the date's active appointments in parallel
// and generates the date's slots. Store errors are returned as-is.
func (e *Engine) SlotsForDate(ctx context.Context, providerID string, date time.Time, serviceMinutes int) ([]CandidateSlot, error) {
	if providerID == "" {
		return nil, inputErrorf("provider", "id is required")
	}
	if serviceMinutes <= 0 {
		return nil, inputErrorf("service duration", "must be positive (got %d minutes)", serviceMinutes)
	}

	ctx, span := e.tracer.Start(ctx, "availability.SlotsForDate", trace.WithAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("date", date.Format(time.DateOnly)),
		attribute.Int("service.duration_minutes", serviceMinutes),
	))
	defer span.End()

	var (
		windows []WeeklyWindow
		appts   []Appointment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		windows, err = e.store.WeeklyWindows(gctx, providerID)
		return err
	})
	g.Go(func() error {
		var err error
		appts, err = e.store.ActiveAppointments(gctx, providerID, date)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slots, err := GenerateSlots(windows, serviceMinutes, appts, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("slots.total", len(slots)),
		attribute.Int("slots.available", CountAvailable(slots)),
	)
	return slots, nil
}
