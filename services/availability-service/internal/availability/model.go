package availability

import "time"

const (
	// DefaultServiceDurationMinutes applies whenever a service or booking has no known duration.
	DefaultServiceDurationMinutes = 30

	// MinSlotStepMinutes is the smallest increment between consecutive slot starts.
	// Services shorter than this still snap to 30-minute boundaries.
	MinSlotStepMinutes = 30

	ConflictAlreadyBooked = "already booked"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Active reports whether a booking in this status occupies its time.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// WeeklyWindow is a recurring range on one weekday during which a provider accepts bookings.
type WeeklyWindow struct {
	DayOfWeek int   `json:"day_of_week"` // 0 = Sunday
	Start     Clock `json:"start_time"`
	End       Clock `json:"end_time"`
	IsActive  bool  `json:"is_active"`
}

func (w WeeklyWindow) Matches(day time.Weekday) bool {
	return w.IsActive && w.DayOfWeek == int(day)
}

type Appointment struct {
	ID              string    `json:"id,omitempty"`
	Date            time.Time `json:"date"`
	Start           Clock     `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"` // 0 when the service is unknown
	Status          Status    `json:"status"`
}

// Duration is the booked length in minutes, falling back to the default for unknown services.
func (a Appointment) Duration() int {
	if a.DurationMinutes <= 0 {
		return DefaultServiceDurationMinutes
	}
	return a.DurationMinutes
}

func (a Appointment) End() Clock {
	return a.Start.Add(a.Duration())
}

type CandidateSlot struct {
	Start          Clock  `json:"start_time"`
	End            Clock  `json:"end_time"`
	IsAvailable    bool   `json:"is_available"`
	ConflictReason string `json:"conflict_reason,omitempty"`
}

type DayAvailability struct {
	Date          time.Time
	Label         string
	OpenSlotCount int
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
