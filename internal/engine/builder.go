package engine

import (
	"fmt"

	"millwright/internal/dag"
	"millwright/internal/model"
)

// Build creates the decision layer over a normalized graph: one mode
// selector per concrete task with its interval start bounded to [EST, LST].
// The bounds come from forward/backward passes over the precedence DAG
// using cheapest-mode durations; without this tightening every task would
// face the full horizon as its search space, which does not scale past a
// few hundred tasks.
//
// Modes that point at capacity-0 machines are excluded from the selector:
// a deliberately unavailable machine means "task cannot use this machine".
// A task whose every mode is excluded is surfaced here as an explicit
// error, never as silent solve-time infeasibility.
func Build(g *TaskGraph, prob *model.Problem, horizon int) (*Model, error) {
	if !g.Normalized {
		return nil, fmt.Errorf("build: graph is not normalized")
	}

	capacity := make(map[int64]int, len(prob.Machines))
	for _, m := range prob.Machines {
		capacity[m.ID] = m.Capacity
	}

	m := &Model{Graph: g, Horizon: horizon, Vars: make([]Var, len(g.Tasks))}
	for t := range g.Tasks {
		v := Var{TaskIndex: t}
		for _, mode := range g.Def(t).Modes {
			if capacity[mode.MachineID] <= 0 {
				continue
			}
			v.Modes = append(v.Modes, mode)
			if v.MinDur == 0 || mode.Duration < v.MinDur {
				v.MinDur = mode.Duration
			}
		}
		if len(v.Modes) == 0 {
			def := g.Def(t)
			return nil, fmt.Errorf("build: task %q (template task %d) has no usable execution mode: every candidate machine has capacity 0",
				def.Name, def.TemplateTaskID)
		}
		m.Vars[t] = v
	}

	est, lst := computeBounds(len(g.Tasks), g.Edges, m.minDurs(), horizon)
	for t := range m.Vars {
		m.Vars[t].EST = est[t]
		m.Vars[t].LST = lst[t]
	}
	return m, nil
}

func (m *Model) minDurs() []int {
	out := make([]int, len(m.Vars))
	for i := range m.Vars {
		out[i] = m.Vars[i].MinDur
	}
	return out
}

// buildPrecedenceDAG wires expanded edges into a dag.Graph with forward
// weights of pred-duration + lag, ready for longest-path passes.
func buildPrecedenceDAG(g *TaskGraph, edges []Edge) *dag.Graph {
	pg := dag.New(len(g.Tasks))
	for _, e := range edges {
		pg.AddEdge(e.Pred, e.Succ, g.MinDuration(e.Pred)+e.Lag)
	}
	return pg
}

// computeBounds runs the forward (earliest start) and backward (latest
// start) passes. EST uses longest paths from sources; LST subtracts each
// task's cheapest duration and downstream tail from the horizon. Cheapest
// durations keep both bounds valid for every mode choice.
func computeBounds(n int, edges []Edge, minDur []int, horizon int) (est, lst []int) {
	pg := dag.New(n)
	lag := make(map[[2]int]int, len(edges))
	for _, e := range edges {
		pg.AddEdge(e.Pred, e.Succ, minDur[e.Pred]+e.Lag)
		key := [2]int{e.Pred, e.Succ}
		if l, ok := lag[key]; !ok || e.Lag > l {
			lag[key] = e.Lag
		}
	}
	order, ok := pg.TopoOrder()
	if !ok {
		// Cycles are rejected during expansion; a cycle here means a caller
		// fabricated edges by hand. Fall back to untightened bounds.
		est = make([]int, n)
		lst = make([]int, n)
		for i := range lst {
			lst[i] = horizon - minDur[i]
		}
		return est, lst
	}

	est = pg.LongestFromSources(order)

	// Tail: longest remaining work strictly after the task finishes.
	tail := pg.LongestToSinks(order, func(e dag.Edge, from int) int {
		return minDur[e.To] + lag[[2]int{from, e.To}]
	})

	lst = make([]int, n)
	for i := 0; i < n; i++ {
		lst[i] = horizon - minDur[i] - tail[i]
	}
	return est, lst
}
