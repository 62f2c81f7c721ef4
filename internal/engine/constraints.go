package engine

import (
	"sort"

	"millwright/internal/config"
	"millwright/internal/model"
)

// Constraint generators. Each is a pure function over the model and one
// slice of problem data, adding exactly one constraint family. Generators
// never decide infeasibility, they only record constraints; infeasibility
// is observed at solve time. Generation order is fixed by the caller and
// every generator iterates slices, not maps, so identical input always
// yields an identical constraint list.

// AddPrecedenceConstraints records one constraint per expanded precedence
// arc: successor start >= predecessor end + lag. Only direct arcs are added;
// the transitive closure is implied by the solver, keeping the record count
// at O(edges), not O(n^3).
func AddPrecedenceConstraints(m *Model) {
	for _, e := range m.Graph.Edges {
		m.Constraints = append(m.Constraints, Constraint{
			Family: config.FamilyPrecedence,
			Pred:   e.Pred,
			Succ:   e.Succ,
			Lag:    e.Lag,
		})
	}
}

// AddCapacityConstraints groups candidate intervals by machine in one O(tasks)
// pass, then records a single disjunctive (capacity 1) or cumulative
// (capacity k) constraint per machine that any task can use. There is never
// a pairwise scan across all tasks.
func AddCapacityConstraints(m *Model, machines []model.Machine) {
	hasCandidate := make(map[int64]bool)
	for t := range m.Vars {
		for _, mode := range m.Vars[t].Modes {
			hasCandidate[mode.MachineID] = true
		}
	}
	for _, mach := range machines {
		if mach.Capacity <= 0 || !hasCandidate[mach.ID] {
			continue
		}
		m.Constraints = append(m.Constraints, Constraint{
			Family:   config.FamilyCapacity,
			Machine:  mach.ID,
			Capacity: mach.Capacity,
		})
	}
}

// AddSetupConstraints records the setup-time matrix entries as constraints.
// A setup applies only between consecutive tasks of different type on the
// same machine; the solver enforces it inside per-machine sequencing, so no
// cross-machine task-pair comparison ever happens. Durations round up;
// a transition never gets less time than the matrix demands.
func AddSetupConstraints(m *Model, setups []model.SetupTimeEntry, slotMinutes int) {
	for _, s := range setups {
		if s.FromType == s.ToType || s.DurationMin <= 0 {
			continue
		}
		m.Constraints = append(m.Constraints, Constraint{
			Family:   config.FamilySetup,
			Machine:  s.MachineID,
			FromType: s.FromType,
			ToType:   s.ToType,
			Slots:    SlotsCeil(s.DurationMin, slotMinutes),
		})
	}
}

// AddCalendarConstraints records machine downtime windows, merged and
// quantized conservatively (start rounds down, end rounds up, so the
// blocked span never shrinks).
func AddCalendarConstraints(m *Model, machines []model.Machine, slotMinutes int) {
	for _, mach := range machines {
		if len(mach.Downtime) == 0 || mach.Capacity <= 0 {
			continue
		}
		for _, w := range mergeWindows(mach.Downtime, slotMinutes) {
			m.Constraints = append(m.Constraints, Constraint{
				Family:  config.FamilyCalendar,
				Machine: mach.ID,
				Window:  w,
			})
		}
	}
}

// mergeWindows quantizes minute windows into slots and coalesces overlaps.
func mergeWindows(wins []model.Window, slotMinutes int) []model.Window {
	out := make([]model.Window, 0, len(wins))
	for _, w := range wins {
		s := w.Start / slotMinutes
		e := SlotsCeil(w.End, slotMinutes)
		if e <= s {
			continue
		}
		out = append(out, model.Window{Start: s, End: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	merged := out[:0]
	for _, w := range out {
		if n := len(merged); n > 0 && w.Start <= merged[n-1].End {
			if w.End > merged[n-1].End {
				merged[n-1].End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
