package engine

import (
	"millwright/internal/config"
	"millwright/internal/model"
)

// MachineStat is the per-machine busy-time KPI for one solved schedule.
type MachineStat struct {
	MachineID   int64
	Name        string
	BusySlots   int
	Utilization float64 // busy time / horizon
}

// TaskSlack is how far a task could slip without growing the makespan.
type TaskSlack struct {
	InstanceID int64
	TaskID     int64
	Slack      int
}

// Schedule is the engine's output contract: assignment records plus derived
// KPIs, handed back to the storage collaborator for persistence.
type Schedule struct {
	Status        Status
	Assignments   []model.InstanceTaskAssignment
	Makespan      int
	Objective     int
	ObjectiveKind config.Objective
	Horizon       int
	SlotMinutes   int
	Machines      []MachineStat
	Slack         []TaskSlack
}

// Extract converts solved variable values into assignment records and KPIs
// in a single pass per concern. A per-machine busy index is accumulated
// while walking the tasks once; extraction never rescans all machines per
// task. It is a pure function of the solved model: no further solving.
func Extract(m *Model, prob *model.Problem, res Result, cfg *config.Config) *Schedule {
	sol := res.Solution
	if sol == nil {
		return nil
	}
	g := m.Graph
	n := len(g.Tasks)

	sched := &Schedule{
		Status:        res.Status,
		Makespan:      sol.Makespan,
		Objective:     sol.Objective,
		ObjectiveKind: cfg.Objective,
		Horizon:       m.Horizon,
		SlotMinutes:   g.SlotMinutes,
		Assignments:   make([]model.InstanceTaskAssignment, 0, n),
	}

	// Single pass: assignment rows + machine busy index.
	busy := make(map[int64]int)
	for t := 0; t < n; t++ {
		mode := m.Vars[t].Modes[sol.ModeIdx[t]]
		sched.Assignments = append(sched.Assignments, model.InstanceTaskAssignment{
			InstanceID: g.Tasks[t].InstanceID,
			TaskID:     g.Def(t).TemplateTaskID,
			ModeID:     mode.ID,
			MachineID:  sol.Machine[t],
			Start:      sol.Start[t],
			End:        sol.End[t],
		})
		busy[sol.Machine[t]] += sol.End[t] - sol.Start[t]
	}
	for _, mach := range prob.Machines {
		b, used := busy[mach.ID]
		if !used && mach.Capacity <= 0 {
			continue
		}
		util := 0.0
		if m.Horizon > 0 {
			util = float64(b) / float64(m.Horizon)
		}
		sched.Machines = append(sched.Machines, MachineStat{
			MachineID:   mach.ID,
			Name:        mach.Name,
			BusySlots:   b,
			Utilization: util,
		})
	}

	sched.Slack = computeSlack(g, sol)
	return sched
}

// computeSlack runs one backward pass anchored at the achieved makespan
// using the *chosen* durations: latest end of a sink is the makespan, and
// each predecessor's latest end is capped by its successors' latest starts
// minus lag. Slack zero marks the critical path.
func computeSlack(g *TaskGraph, sol *Solution) []TaskSlack {
	n := len(g.Tasks)
	succs := make([][]edgeRef, n)
	for _, e := range g.Edges {
		succs[e.Pred] = append(succs[e.Pred], edgeRef{Other: e.Succ, Lag: e.Lag})
	}

	latestStart := make([]int, n)
	pg := buildPrecedenceDAG(g, g.Edges)
	order, ok := pg.TopoOrder()
	if !ok {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}
	for i := n - 1; i >= 0; i-- {
		t := order[i]
		dur := sol.End[t] - sol.Start[t]
		latestEnd := sol.Makespan
		for _, e := range succs[t] {
			if v := latestStart[e.Other] - e.Lag; v < latestEnd {
				latestEnd = v
			}
		}
		latestStart[t] = latestEnd - dur
	}

	out := make([]TaskSlack, n)
	for t := 0; t < n; t++ {
		out[t] = TaskSlack{
			InstanceID: g.Tasks[t].InstanceID,
			TaskID:     g.Def(t).TemplateTaskID,
			Slack:      latestStart[t] - sol.Start[t],
		}
	}
	return out
}
