package availability

import (
	"context"
	"errors"
	"time"
)

// Store is the read side of the provider's availability data.
type Store interface {
	WeeklyWindows(ctx context.Context, providerID string) ([]WeeklyWindow, error)
	// ActiveAppointments returns only pending and confirmed bookings on date.
	ActiveAppointments(ctx context.Context, providerID string, date time.Time) ([]Appointment, error)
}

// ServiceDurations is implemented by stores that know each service's length.
type ServiceDurations interface {
	ServiceDuration(ctx context.Context, providerID, serviceID string) (int, error)
}

// ResolveServiceDuration looks up serviceID's length on store, using
// DefaultServiceDurationMinutes when the service is unknown or has no duration.
func ResolveServiceDuration(ctx context.Context, store Store, providerID, serviceID string) (int, error) {
	if serviceID == "" {
		return DefaultServiceDurationMinutes, nil
	}
	lookup, ok := store.(ServiceDurations)
	if !ok {
		return DefaultServiceDurationMinutes, nil
	}
	mins, err := lookup.ServiceDuration(ctx, providerID, serviceID)
	if errors.Is(err, ErrServiceNotFound) {
		return DefaultServiceDurationMinutes, nil
	}
	if err != nil {
		return 0, err
	}
	if mins <= 0 {
		return DefaultServiceDurationMinutes, nil
	}
	return mins, nil
}
