package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultDayConcurrency = 4

// Observer receives the outcome of each per-day appointment fetch.
type Observer interface {
	ObserveDayFetch(ok bool)
}

// DayIndex answers which upcoming days still have bookable slots.
type DayIndex struct {
	store       Store
	loc         *time.Location
	now         func() time.Time
	concurrency int
	logger      *slog.Logger
	observer    Observer
	tracer      trace.Tracer
}

type DayIndexOption func(*DayIndex)

// WithLocation sets the provider's wall-clock location used to decide "today".
func WithLocation(loc *time.Location) DayIndexOption {
	return func(d *DayIndex) {
		if loc != nil {
			d.loc = loc
		}
	}
}

func WithClock(now func() time.Time) DayIndexOption {
	return func(d *DayIndex) {
		if now != nil {
			d.now = now
		}
	}
}

// WithConcurrency caps the number of appointment fetches in flight.
func WithConcurrency(n int) DayIndexOption {
	return func(d *DayIndex) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) DayIndexOption {
	return func(d *DayIndex) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithObserver(o Observer) DayIndexOption {
	return func(d *DayIndex) {
		d.observer = o
	}
}

func NewDayIndex(store Store, opts ...DayIndexOption) *DayIndex {
	d := &DayIndex{
		store:       store,
		loc:         time.UTC,
		now:         time.Now,
		concurrency: defaultDayConcurrency,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Today is the current date in the index's location.
func (d *DayIndex) Today() time.Time {
	return DateOnly(d.now().In(d.loc))
}

type dayResult struct {
	open int
	err  error
}

// RankAvailableDays scans dayCount days starting today and returns, in date order, the days
// with at least one open slot.
//
// A day whose appointments cannot be loaded is left out. If every scanned day fails the
// scan returns ErrAvailabilityUnavailable. Failing to load the weekly windows is returned as-is.
func (d *DayIndex) RankAvailableDays(ctx context.Context, providerID string, dayCount, serviceMinutes int) ([]DayAvailability, error) {
	if providerID == "" {
		return nil, inputErrorf("provider", "id is required")
	}
	if dayCount < 0 {
		return nil, inputErrorf("day count", "must not be negative (got %d)", dayCount)
	}
	if serviceMinutes <= 0 {
		return nil, inputErrorf("service duration", "must be positive (got %d minutes)", serviceMinutes)
	}
	if dayCount == 0 {
		return nil, nil
	}

	ctx, span := d.tracer.Start(ctx, "availability.RankAvailableDays", trace.WithAttributes(
		attribute.String("provider.id", providerID),
		attribute.Int("day_count", dayCount),
		attribute.Int("service.duration_minutes", serviceMinutes),
	))
	defer span.End()

	windows, err := d.store.WeeklyWindows(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := validateWindows(windows); err != nil {
		return nil, err
	}

	today := d.Today()
	var offsets []int
	for i := 0; i < dayCount; i++ {
		if HasActiveWindow(windows, today.AddDate(0, 0, i).Weekday()) {
			offsets = append(offsets, i)
		}
	}
	if len(offsets) == 0 {
		return nil, nil
	}

	results := make([]dayResult, len(offsets))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for k, offset := range offsets {
		date := today.AddDate(0, 0, offset)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			open, err := d.openSlots(ctx, providerID, windows, serviceMinutes, date)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.Warn("day availability fetch failed; skipping day",
					"provider_id", providerID,
					"date", date.Format(time.DateOnly),
					"err", err,
				)
				d.observe(false)
				results[k] = dayResult{err: err}
				return nil
			}
			d.observe(true)
			results[k] = dayResult{open: open}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		days []DayAvailability
		errs []error
	)
	for k, offset := range offsets {
		r := results[k]
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if r.open == 0 {
			continue
		}
		date := today.AddDate(0, 0, offset)
		days = append(days, DayAvailability{
			Date:          date,
			Label:         DayLabel(offset, date),
			OpenSlotCount: r.open,
		})
	}
	if len(errs) == len(offsets) {
		err := fmt.Errorf("%w: %w", ErrAvailabilityUnavailable, errors.Join(errs...))
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("days.available", len(days)),
		attribute.Int("days.failed", len(errs)),
	)
	return days, nil
}

func (d *DayIndex) openSlots(ctx context.Context, providerID string, windows []WeeklyWindow, serviceMinutes int, date time.Time) (int, error) {
	appts, err := d.store.ActiveAppointments(ctx, providerID, date)
	if err != nil {
		return 0, err
	}
	slots, err := GenerateSlots(windows, serviceMinutes, appts, date)
	if err != nil {
		return 0, err
	}
	return CountAvailable(slots), nil
}

func (d *DayIndex) observe(ok bool) {
	if d.observer != nil {
		d.observer.ObserveDayFetch(ok)
	}
}

// DayLabel names a day by its distance from today.
func DayLabel(offset int, date time.Time) string {
	switch offset {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return date.Weekday().String()
	}
}
