package engine

import (
	"millwright/internal/config"
	"millwright/internal/model"
)

// Normalize quantizes every duration in the graph from minutes into integer
// slots, in place. Mode durations follow the configured rounding policy;
// a mode that rounds to zero slots is rejected with InvalidDurationError,
// the task is refused, never padded to a minimum. Precedence lags and due
// dates are converted once here too: lags round up (a lag is a guarantee,
// shrinking it would weaken it), due dates round down (a deadline must not
// drift later than the caller asked for).
//
// Mode data lives in the shared defs, so the conversion is O(template
// modes), not O(concrete tasks).
func Normalize(g *TaskGraph, slotMinutes int, policy config.Rounding) error {
	if g.Normalized {
		return nil
	}
	for di := range g.Defs {
		def := &g.Defs[di]
		for mi := range def.Modes {
			m := &def.Modes[mi]
			slots := quantize(m.Duration, slotMinutes, policy)
			if slots <= 0 {
				return &model.InvalidDurationError{
					TaskID:   def.TemplateTaskID,
					ModeName: m.Name,
					Minutes:  m.Duration,
				}
			}
			m.Duration = slots
		}
	}
	for ei := range g.Edges {
		g.Edges[ei].Lag = SlotsCeil(g.Edges[ei].Lag, slotMinutes)
	}
	for ti := range g.Tasks {
		if g.Tasks[ti].Due >= 0 {
			g.Tasks[ti].Due /= slotMinutes
		}
	}
	g.Normalized = true
	g.SlotMinutes = slotMinutes
	return nil
}

func quantize(minutes, slotMinutes int, policy config.Rounding) int {
	if minutes <= 0 {
		return 0
	}
	if policy == config.Truncate {
		return minutes / slotMinutes
	}
	return SlotsCeil(minutes, slotMinutes)
}

// SlotsCeil converts minutes to slots rounding up. Non-productive spans
// (setup times, lags) always round up so the engine never under-provisions.
func SlotsCeil(minutes, slotMinutes int) int {
	if minutes <= 0 {
		return 0
	}
	return (minutes + slotMinutes - 1) / slotMinutes
}
