package slots

import (
	"time"

	"slotbook/internal/model"
)

// Candidate is a start time with its availability verdict.
type Candidate struct {
	Time      model.Clock
	Available bool
}

// FilterAvailability marks each candidate start on date as available unless
// the padded booking [t-bufferBefore, t+duration+bufferAfter) overlaps the
// padded range of an active appointment. Appointments must belong to the
// employee the candidates were generated for.
func FilterAvailability(date time.Time, candidates []model.Clock, appointments []model.Appointment, svc *model.Service) []Candidate {
	busy := make([][2]time.Time, 0, len(appointments))
	for i := range appointments {
		if !appointments[i].Active() {
			continue
		}
		start, end := appointments[i].Occupied()
		busy = append(busy, [2]time.Time{start, end})
	}

	before := time.Duration(svc.BufferBefore) * time.Minute
	after := time.Duration(svc.Duration+svc.BufferAfter) * time.Minute

	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		at := c.On(date)
		start, end := at.Add(-before), at.Add(after)

		available := true
		for _, b := range busy {
			if isOverlapping(start, end, b[0], b[1]) {
				available = false
				break
			}
		}
		out[i] = Candidate{Time: c, Available: available}
	}
	return out
}

// Available returns only the available candidates.
func Available(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Available {
			out = append(out, c)
		}
	}
	return out
}

// isOverlapping treats both ranges as half-open, so back-to-back ranges do not overlap.
func isOverlapping(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}
