package availability

import (
	"errors"
	"testing"
	"time"
)

// 2026-01-30 is a Friday.
var friday = time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)

func window(day int, start, end string) WeeklyWindow {
	return WeeklyWindow{DayOfWeek: day, Start: MustClock(start), End: MustClock(end), IsActive: true}
}

func booking(start string, mins int) Appointment {
	return Appointment{Date: friday, Start: MustClock(start), DurationMinutes: mins, Status: StatusConfirmed}
}

func starts(slots []CandidateSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.String())
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGenerateSlots_FridayMorning(t *testing.T) {
	slots, err := GenerateSlots([]WeeklyWindow{window(5, "09:00", "11:00")}, 30, nil, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30"}
	if got := starts(slots); !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, s := range slots {
		if !s.IsAvailable || s.ConflictReason != "" {
			t.Fatalf("expected %s to be available, got %+v", s.Start, s)
		}
		if s.End != s.Start.Add(30) {
			t.Fatalf("expected end %s, got %s", s.Start.Add(30), s.End)
		}
	}
}

func TestGenerateSlots_Conflict(t *testing.T) {
	slots, err := GenerateSlots([]WeeklyWindow{window(5, "09:00", "11:00")}, 30, []Appointment{booking("09:30", 30)}, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start == MustClock("09:30") {
			if s.IsAvailable || s.ConflictReason != ConflictAlreadyBooked {
				t.Fatalf("expected 09:30 to be booked, got %+v", s)
			}
			continue
		}
		if !s.IsAvailable {
			t.Fatalf("expected %s to be available", s.Start)
		}
	}
}

func TestGenerateSlots_DurationExceedsWindow(t *testing.T) {
	slots, err := GenerateSlots([]WeeklyWindow{window(5, "09:00", "09:15")}, 30, nil, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", starts(slots))
	}
}

func TestGenerateSlots_TouchingBoundariesDoNotConflict(t *testing.T) {
	appts := []Appointment{booking("08:30", 30), booking("10:00", 60)}
	slots, err := GenerateSlots([]WeeklyWindow{window(5, "09:00", "10:00")}, 60, appts, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 1 || !slots[0].IsAvailable {
		t.Fatalf("expected one available 09:00-10:00 slot, got %+v", slots)
	}
}

func TestGenerateSlots_StepIsAtLeastThirtyMinutes(t *testing.T) {
	slots, err := GenerateSlots([]WeeklyWindow{window(5, "09:00", "10:00")}, 15, nil, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if got, want := starts(slots), []string{"09:00", "09:30"}; !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if slots[0].End != MustClock("09:15") {
		t.Fatalf("expected slot to last the service duration, got end %s", slots[0].End)
	}

	slots, err = GenerateSlots([]WeeklyWindow{window(5, "09:00", "12:00")}, 45, nil, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if got, want := starts(slots), []string{"09:00", "09:45", "10:30", "11:15"}; !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGenerateSlots_FiltersDayAndInactive(t *testing.T) {
	windows := []WeeklyWindow{
		window(4, "09:00", "10:00"),
		{DayOfWeek: 5, Start: MustClock("13:00"), End: MustClock("14:00"), IsActive: false},
	}
	slots, err := GenerateSlots(windows, 30, nil, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", starts(slots))
	}

	slots, err = GenerateSlots(nil, 30, nil, friday)
	if err != nil || len(slots) != 0 {
		t.Fatalf("expected empty result for no windows, got %v %v", slots, err)
	}
}

func TestGenerateSlots_OverlappingWindowsAreNotMerged(t *testing.T) {
	windows := []WeeklyWindow{
		window(5, "12:00", "14:00"),
		window(5, "09:00", "13:00"),
	}
	slots, err := GenerateSlots(windows, 60, nil, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	want := []string{"12:00", "13:00", "09:00", "10:00", "11:00", "12:00"}
	if got := starts(slots); !equalStrings(got, want) {
		t.Fatalf("expected window order %v, got %v", want, got)
	}

	SortByStart(slots)
	want = []string{"09:00", "10:00", "11:00", "12:00", "12:00", "13:00"}
	if got := starts(slots); !equalStrings(got, want) {
		t.Fatalf("expected sorted %v, got %v", want, got)
	}
}

func TestGenerateSlots_Properties(t *testing.T) {
	windows := []WeeklyWindow{
		window(5, "08:00", "12:10"),
		window(5, "13:30", "18:00"),
		window(5, "16:00", "20:00"),
	}
	appts := []Appointment{
		booking("08:15", 20),
		booking("11:00", 0),
		booking("14:45", 90),
		booking("17:59", 1),
	}
	for _, duration := range []int{10, 15, 30, 45, 60, 90, 240} {
		all, err := GenerateSlots(windows, duration, appts, friday)
		if err != nil {
			t.Fatalf("duration %d: %v", duration, err)
		}
		step := duration
		if step < MinSlotStepMinutes {
			step = MinSlotStepMinutes
		}

		var concatenated []CandidateSlot
		for _, w := range windows {
			slots, err := GenerateSlots([]WeeklyWindow{w}, duration, appts, friday)
			if err != nil {
				t.Fatalf("duration %d: %v", duration, err)
			}
			for i, s := range slots {
				if i == 0 && s.Start != w.Start {
					t.Fatalf("duration %d: first slot %s does not start at window start %s", duration, s.Start, w.Start)
				}
				if i > 0 && s.Start != slots[i-1].Start.Add(step) {
					t.Fatalf("duration %d: slot %s does not follow %s by %d minutes", duration, s.Start, slots[i-1].Start, step)
				}
				if s.End > w.End || s.End != s.Start.Add(duration) {
					t.Fatalf("duration %d: slot %s-%s does not fit window ending %s", duration, s.Start, s.End, w.End)
				}
				conflict := false
				for _, a := range appts {
					if s.Start < a.End() && s.End > a.Start {
						conflict = true
					}
				}
				if s.IsAvailable == conflict {
					t.Fatalf("duration %d: slot %s availability %v disagrees with conflict %v", duration, s.Start, s.IsAvailable, conflict)
				}
			}
			if n := len(slots); n > 0 && slots[n-1].Start.Add(step+duration) <= w.End {
				t.Fatalf("duration %d: window %s-%s stopped early at %s", duration, w.Start, w.End, slots[n-1].Start)
			}
			concatenated = append(concatenated, slots...)
		}
		if len(concatenated) != len(all) {
			t.Fatalf("duration %d: expected %d slots, got %d", duration, len(concatenated), len(all))
		}
		for i := range all {
			if all[i] != concatenated[i] {
				t.Fatalf("duration %d: slot %d differs: %+v vs %+v", duration, i, all[i], concatenated[i])
			}
		}
	}
}

func TestGenerateSlots_NoAppointmentsAllAvailable(t *testing.T) {
	slots, err := GenerateSlots([]WeeklyWindow{window(5, "09:00", "17:00")}, 30, nil, friday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if CountAvailable(slots) != len(slots) || len(slots) != 16 {
		t.Fatalf("expected 16 available slots, got %d of %d", CountAvailable(slots), len(slots))
	}
}

func TestGenerateSlots_InputErrors(t *testing.T) {
	good := []WeeklyWindow{window(5, "09:00", "11:00")}
	tests := []struct {
		name     string
		windows  []WeeklyWindow
		duration int
		appts    []Appointment
	}{
		{name: "zero duration", windows: good, duration: 0},
		{name: "negative duration", windows: good, duration: -30},
		{name: "day of week", windows: []WeeklyWindow{window(7, "09:00", "11:00")}, duration: 30},
		{name: "negative day", windows: []WeeklyWindow{{DayOfWeek: -1, Start: 540, End: 600, IsActive: true}}, duration: 30},
		{name: "start after end", windows: []WeeklyWindow{window(5, "11:00", "09:00")}, duration: 30},
		{name: "out of range clock", windows: []WeeklyWindow{{DayOfWeek: 5, Start: 540, End: 2000, IsActive: true}}, duration: 30},
		{name: "negative appointment duration", windows: good, duration: 30, appts: []Appointment{booking("09:00", -5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateSlots(tt.windows, tt.duration, tt.appts, friday)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var inputErr *InputError
			if !errors.As(err, &inputErr) || inputErr.Field == "" {
				t.Fatalf("expected *InputError with a field, got %#v", err)
			}
		})
	}
}

func TestAppointmentDurationDefault(t *testing.T) {
	a := Appointment{Start: MustClock("10:00")}
	if a.Duration() != DefaultServiceDurationMinutes {
		t.Fatalf("expected default duration, got %d", a.Duration())
	}
	if a.End() != MustClock("10:30") {
		t.Fatalf("expected end 10:30, got %s", a.End())
	}
}
