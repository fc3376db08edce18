package slots

import (
	"slotbook/internal/model"
)

// DefaultGranularity is the slot step used when none is configured.
const DefaultGranularity = 30

// GenerateCandidates returns the ordered start times that fit a booking of
// duration minutes inside window. Starts step by granularity from each
// interval start; unaligned interval starts are kept as-is.
func GenerateCandidates(window model.Window, duration, granularity int) []model.Clock {
	if duration <= 0 {
		return nil
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}

	var out []model.Clock
	for _, iv := range window {
		for cursor := iv.Start; cursor.Add(duration) <= iv.End; cursor = cursor.Add(granularity) {
			out = append(out, cursor)
		}
	}
	return out
}
