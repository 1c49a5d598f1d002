package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/bookslots/libs/kafkax"
)

const (
	EventAppointmentBooked      = "booking.appointment.booked.v1"
	EventAppointmentCancelled   = "booking.appointment.cancelled.v1"
	EventAppointmentRescheduled = "booking.appointment.rescheduled.v1"
	EventWindowsUpdated         = "availability.windows.updated.v1"
)

// DefaultTopics lists every event the invalidation handler understands.
func DefaultTopics() []string {
	return []string{
		EventAppointmentBooked,
		EventAppointmentCancelled,
		EventAppointmentRescheduled,
		EventWindowsUpdated,
	}
}

// Invalidator drops cached availability data.
type Invalidator interface {
	InvalidateAppointments(ctx context.Context, providerID string, date time.Time) error
	InvalidateWindows(ctx context.Context, providerID string) error
}

type event struct {
	ProviderID string `json:"provider_id"`
	// StaffID is what booking events call the provider.
	StaffID           string `json:"staff_id"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	PreviousDate      string `json:"previous_date"`
	PreviousStartTime string `json:"previous_start_time"`
}

func (e event) provider() string {
	if id := strings.TrimSpace(e.ProviderID); id != "" {
		return id
	}
	return strings.TrimSpace(e.StaffID)
}

// NewInvalidationHandler maps booking and window events onto cache invalidations. Dates
// given as RFC 3339 instants are converted to loc before the calendar day is taken.
// Malformed events are logged and dropped.
func NewInvalidationHandler(inv Invalidator, loc *time.Location, logger *slog.Logger) Handler {
	if loc == nil {
		loc = time.UTC
	}
	return func(ctx context.Context, msg kafka.Message) error {
		eventType := kafkax.ExtractEventMeta(msg).EventType

		var payload event
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid availability event", "event_type", eventType, "err", err)
			return nil
		}
		providerID := payload.provider()
		if providerID == "" {
			logger.Error("availability event missing provider", "event_type", eventType)
			return nil
		}

		switch eventType {
		case EventWindowsUpdated:
			return inv.InvalidateWindows(ctx, providerID)

		case EventAppointmentBooked, EventAppointmentCancelled, EventAppointmentRescheduled:
			date, err := eventDate(payload.Date, payload.StartTime, loc)
			if err != nil {
				logger.Error("availability event has no usable date", "event_type", eventType, "err", err)
				return nil
			}
			var errs []error
			errs = append(errs, inv.InvalidateAppointments(ctx, providerID, date))

			if eventType == EventAppointmentRescheduled {
				prev, err := eventDate(payload.PreviousDate, payload.PreviousStartTime, loc)
				if err == nil && !prev.Equal(date) {
					errs = append(errs, inv.InvalidateAppointments(ctx, providerID, prev))
				}
			}
			return errors.Join(errs...)

		default:
			logger.Debug("ignoring event", "event_type", eventType)
			return nil
		}
	}
}

func eventDate(date, startTime string, loc *time.Location) (time.Time, error) {
	if date = strings.TrimSpace(date); date != "" {
		return time.ParseInLocation(time.DateOnly, date, loc)
	}
	if startTime = strings.TrimSpace(startTime); startTime != "" {
		ts, err := time.Parse(time.RFC3339, startTime)
		if err != nil {
			return time.Time{}, err
		}
		ts = ts.In(loc)
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, errors.New("neither date nor start_time set")
}
