package slots

import (
	"testing"
	"time"
	_ "time/tzdata"

	"slotbook/internal/model"
)

var day = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time { return clock(hhmm).On(day) }

func appt(start, end string, before, after int, status model.AppointmentStatus) model.Appointment {
	return model.Appointment{
		EmployeeID:   "emp-1",
		Start:        at(start),
		End:          at(end),
		BufferBefore: before,
		BufferAfter:  after,
		Status:       status,
	}
}

func availability(cs []Candidate) map[string]bool {
	out := make(map[string]bool, len(cs))
	for _, c := range cs {
		out[c.Time.String()] = c.Available
	}
	return out
}

func TestFilterAvailability(t *testing.T) {
	candidates := GenerateCandidates(model.Window{iv("09:00", "12:00")}, 30, 30)

	tests := []struct {
		name         string
		service      model.Service
		appointments []model.Appointment
		unavailable  []string
	}{
		{
			name:         "no appointments",
			service:      model.Service{Duration: 30},
			appointments: nil,
			unavailable:  nil,
		},
		{
			name:         "single appointment removes exactly its slot",
			service:      model.Service{Duration: 30},
			appointments: []model.Appointment{appt("10:00", "10:30", 0, 0, model.StatusConfirmed)},
			unavailable:  []string{"10:00"},
		},
		{
			name:         "cancelled appointments do not block",
			service:      model.Service{Duration: 30},
			appointments: []model.Appointment{appt("10:00", "10:30", 0, 0, model.StatusCancelled)},
			unavailable:  nil,
		},
		{
			name:         "pending appointments block",
			service:      model.Service{Duration: 30},
			appointments: []model.Appointment{appt("11:00", "11:30", 0, 0, model.StatusPending)},
			unavailable:  []string{"11:00"},
		},
		{
			name:         "partial overlap blocks",
			service:      model.Service{Duration: 30},
			appointments: []model.Appointment{appt("10:15", "10:45", 0, 0, model.StatusConfirmed)},
			unavailable:  []string{"10:00", "10:30"},
		},
		{
			name:         "requested service buffers widen the booking",
			service:      model.Service{Duration: 30, BufferBefore: 15, BufferAfter: 15},
			appointments: []model.Appointment{appt("10:00", "10:30", 0, 0, model.StatusConfirmed)},
			unavailable:  []string{"09:30", "10:00", "10:30"},
		},
		{
			name:         "appointment buffers widen the busy range",
			service:      model.Service{Duration: 30},
			appointments: []model.Appointment{appt("10:00", "10:30", 0, 30, model.StatusConfirmed)},
			unavailable:  []string{"10:00", "10:30"},
		},
		{
			name:         "long service overlaps later appointment",
			service:      model.Service{Duration: 90},
			appointments: []model.Appointment{appt("11:00", "11:30", 0, 0, model.StatusConfirmed)},
			unavailable:  []string{"10:00", "10:30", "11:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := availability(FilterAvailability(day, candidates, tt.appointments, &tt.service))

			blocked := make(map[string]bool)
			for _, s := range tt.unavailable {
				blocked[s] = true
			}
			for _, c := range candidates {
				key := c.String()
				if got[key] == blocked[key] {
					t.Errorf("slot %s: expected available=%v, got %v", key, !blocked[key], got[key])
				}
			}
		})
	}
}

func TestFilterAvailability_BackToBack(t *testing.T) {
	svc := model.Service{Duration: 30}
	candidates := []model.Clock{clock("09:30"), clock("10:30")}
	appointments := []model.Appointment{appt("10:00", "10:30", 0, 0, model.StatusConfirmed)}

	got := FilterAvailability(day, candidates, appointments, &svc)
	for _, c := range got {
		if !c.Available {
			t.Errorf("slot %s adjacent to appointment should be available", c.Time)
		}
	}
}

func TestFilterAvailability_NeverOverlapsAppointments(t *testing.T) {
	svc := model.Service{Duration: 45, BufferBefore: 10, BufferAfter: 5}
	candidates := GenerateCandidates(model.Window{iv("08:00", "18:00")}, svc.Duration, 15)
	appointments := []model.Appointment{
		appt("09:10", "09:55", 10, 5, model.StatusConfirmed),
		appt("12:00", "13:00", 0, 0, model.StatusPending),
		appt("15:20", "16:05", 5, 10, model.StatusConfirmed),
	}

	for _, c := range Available(FilterAvailability(day, candidates, appointments, &svc)) {
		start := c.Time.On(day).Add(-time.Duration(svc.BufferBefore) * time.Minute)
		end := c.Time.On(day).Add(time.Duration(svc.Duration+svc.BufferAfter) * time.Minute)
		for _, a := range appointments {
			busyStart, busyEnd := a.Occupied()
			if start.Before(busyEnd) && busyStart.Before(end) {
				t.Errorf("available slot %s overlaps appointment %s-%s", c.Time, a.Start.Format("15:04"), a.End.Format("15:04"))
			}
		}
	}
}

func TestFilterAvailability_DaylightSavingDay(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		t.Fatal(err)
	}
	// Clocks jump from 02:00 to 03:00 on this date.
	date := time.Date(2026, 3, 29, 0, 0, 0, 0, zurich)
	svc := model.Service{Duration: 30}
	booked := model.Appointment{
		EmployeeID: "emp-1",
		Start:      time.Date(2026, 3, 29, 10, 0, 0, 0, zurich),
		End:        time.Date(2026, 3, 29, 10, 30, 0, 0, zurich),
		Status:     model.StatusConfirmed,
	}

	got := availability(FilterAvailability(date, []model.Clock{clock("10:00"), clock("11:00")}, []model.Appointment{booked}, &svc))
	if got["10:00"] {
		t.Errorf("10:00 is booked on %s but reported available", date.Format(model.DateFormat))
	}
	if !got["11:00"] {
		t.Errorf("11:00 should be available")
	}
}
