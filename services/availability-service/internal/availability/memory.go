package availability

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for local runs and tests.
// Like the database store, it only returns pending and confirmed bookings.
type MemoryStore struct {
	mu        sync.RWMutex
	windows   map[string][]WeeklyWindow
	appts     map[string][]Appointment
	durations map[string]map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows:   map[string][]WeeklyWindow{},
		appts:     map[string][]Appointment{},
		durations: map[string]map[string]int{},
	}
}

// SetWindows replaces the provider's weekly windows.
func (s *MemoryStore) SetWindows(providerID string, windows ...WeeklyWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[providerID] = append([]WeeklyWindow(nil), windows...)
}

func (s *MemoryStore) AddAppointment(providerID string, appt Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[providerID] = append(s.appts[providerID], appt)
}

func (s *MemoryStore) SetServiceDuration(providerID, serviceID string, minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.durations[providerID] == nil {
		s.durations[providerID] = map[string]int{}
	}
	s.durations[providerID][serviceID] = minutes
}

func (s *MemoryStore) WeeklyWindows(ctx context.Context, providerID string) ([]WeeklyWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]WeeklyWindow(nil), s.windows[providerID]...), nil
}

func (s *MemoryStore) ActiveAppointments(ctx context.Context, providerID string, date time.Time) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, a := range s.appts[providerID] {
		if a.Status.Active() && sameDate(a.Date, date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) ServiceDuration(ctx context.Context, providerID, serviceID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	mins, ok := s.durations[providerID][serviceID]
	if !ok {
		return 0, ErrServiceNotFound
	}
	return mins, nil
}
