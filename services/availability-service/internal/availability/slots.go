package availability

import (
	"sort"
	"time"
)

// GenerateSlots returns the candidate slots for date, one window at a time.
//
// Only active windows for date's weekday are used. Slots start at window.Start and advance
// by max(MinSlotStepMinutes, serviceMinutes); a slot is emitted only when it ends on or
// before window.End. Appointments must already be scoped to date and to active statuses.
// Output keeps window order and is not deduplicated when windows overlap.
func GenerateSlots(windows []WeeklyWindow, serviceMinutes int, appts []Appointment, date time.Time) ([]CandidateSlot, error) {
	if serviceMinutes <= 0 {
		return nil, inputErrorf("service duration", "must be positive (got %d minutes)", serviceMinutes)
	}
	if err := validateWindows(windows); err != nil {
		return nil, err
	}
	if err := validateAppointments(appts); err != nil {
		return nil, err
	}

	step := serviceMinutes
	if step < MinSlotStepMinutes {
		step = MinSlotStepMinutes
	}

	weekday := date.Weekday()
	var slots []CandidateSlot
	for _, w := range windows {
		if !w.Matches(weekday) {
			continue
		}
		for cur := w.Start; cur.Add(serviceMinutes) <= w.End; cur = cur.Add(step) {
			end := cur.Add(serviceMinutes)
			slot := CandidateSlot{Start: cur, End: end, IsAvailable: true}
			if overlapsAny(cur, end, appts) {
				slot.IsAvailable = false
				slot.ConflictReason = ConflictAlreadyBooked
			}
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

// HasActiveWindow reports whether any active window falls on day.
func HasActiveWindow(windows []WeeklyWindow, day time.Weekday) bool {
	for _, w := range windows {
		if w.Matches(day) {
			return true
		}
	}
	return false
}

// CountAvailable returns the number of slots that can still be booked.
func CountAvailable(slots []CandidateSlot) int {
	n := 0
	for _, s := range slots {
		if s.IsAvailable {
			n++
		}
	}
	return n
}

// SortByStart orders slots from several windows into one timeline. Equal starts keep window order.
func SortByStart(slots []CandidateSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start < slots[j].Start
	})
}

func overlapsAny(start, end Clock, appts []Appointment) bool {
	for _, a := range appts {
		// Half-open intervals: touching endpoints do not conflict.
		if start < a.End() && end > a.Start {
			return true
		}
	}
	return false
}

func validateWindows(windows []WeeklyWindow) error {
	for _, w := range windows {
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return inputErrorf("day of week", "%d is outside 0-6", w.DayOfWeek)
		}
		if !w.Start.Valid() || !w.End.Valid() {
			return inputErrorf("window", "time of day out of range (%d-%d minutes)", int(w.Start), int(w.End))
		}
		if w.Start >= w.End {
			return inputErrorf("window", "start %s must be before end %s", w.Start, w.End)
		}
	}
	return nil
}

func validateAppointments(appts []Appointment) error {
	for _, a := range appts {
		if !a.Start.Valid() {
			return inputErrorf("appointment start", "out of range (%d minutes)", int(a.Start))
		}
		if a.DurationMinutes < 0 {
			return inputErrorf("appointment duration", "must not be negative (got %d minutes)", a.DurationMinutes)
		}
	}
	return nil
}
