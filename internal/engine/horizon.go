package engine

import (
	"math"

	"millwright/internal/config"
	"millwright/internal/model"
)

// EstimateHorizon sizes the schedulable time window for a normalized graph:
// the larger of critical-path length and total workload divided by effective
// parallel capacity, inflated by the configured safety margin, plus the
// worst per-machine downtime. A horizon that is too tight silently turns
// into false infeasibility, so the estimate is deliberately conservative
// rather than minimal. It must be recomputed whenever the template or the
// instance set changes and is never cached across solves.
func EstimateHorizon(g *TaskGraph, prob *model.Problem, cfg *config.Config) int {
	cp := criticalPathSlots(g)

	work := 0
	usable := make(map[int64]bool)
	for t := range g.Tasks {
		work += g.MinDuration(t)
		for _, m := range g.Def(t).Modes {
			usable[m.MachineID] = true
		}
	}
	capacity := 0
	for _, mach := range prob.Machines {
		if usable[mach.ID] && mach.Capacity > 0 {
			capacity += mach.Capacity
		}
	}
	if capacity < 1 {
		capacity = 1
	}
	packed := (work + capacity - 1) / capacity

	base := cp
	if packed > base {
		base = packed
	}

	// Worst-case downtime on any single machine pushes everything behind it.
	maxDown := 0
	for _, mach := range prob.Machines {
		down := 0
		for _, w := range mach.Downtime {
			down += SlotsCeil(w.End, g.SlotMinutes) - w.Start/g.SlotMinutes
		}
		if down > maxDown {
			maxDown = down
		}
	}

	h := int(math.Ceil(float64(base)*cfg.SafetyMargin)) + maxDown
	if h < 1 {
		h = 1
	}
	return h
}

// criticalPathSlots is the longest chain through the expanded graph using
// cheapest modes plus lags. Instances are independent, so this equals the
// template's critical path in slots.
func criticalPathSlots(g *TaskGraph) int {
	pg := buildPrecedenceDAG(g, g.Edges)
	order, ok := pg.TopoOrder()
	if !ok {
		return 0 // cyclic graphs are rejected before this point
	}
	est := pg.LongestFromSources(order)
	longest := 0
	for t := range g.Tasks {
		if f := est[t] + g.MinDuration(t); f > longest {
			longest = f
		}
	}
	return longest
}
