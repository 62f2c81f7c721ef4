package engine

import (
	"sort"

	"millwright/internal/config"
	"millwright/internal/model"
)

// edgeRef is one active precedence arc seen from one endpoint.
type edgeRef struct {
	Other int
	Lag   int
}

type setupKey struct {
	machine  int64
	from, to string
}

// compiled is the solver-facing view of a model. Everything here derives
// from Model.Constraints, never from the raw problem, so that removing a
// constraint record (as the diagnoser does) genuinely relaxes the search.
type compiled struct {
	g       *TaskGraph
	horizon int
	obj     config.Objective

	modes    [][]Mode // per task, selector domain
	minDur   []int
	taskType []string
	due      []int
	prio     []int
	instOf   []int64

	preds, succs [][]edgeRef
	est, lst     []int

	capacity map[int64]int // machine -> cap; absent = unbounded overlap
	setups   map[setupKey]int
	setupOn  map[int64]bool
	windows  map[int64][]model.Window // merged, sorted by start
}

// compileModel flattens constraint records into indexed lookups and
// recomputes start bounds from the active precedence arcs only, so a
// relaxed model also has relaxed bounds.
func compileModel(m *Model, obj config.Objective) *compiled {
	n := len(m.Vars)
	c := &compiled{
		g:        m.Graph,
		horizon:  m.Horizon,
		obj:      obj,
		modes:    make([][]Mode, n),
		minDur:   make([]int, n),
		taskType: make([]string, n),
		due:      make([]int, n),
		prio:     make([]int, n),
		instOf:   make([]int64, n),
		preds:    make([][]edgeRef, n),
		succs:    make([][]edgeRef, n),
		capacity: make(map[int64]int),
		setups:   make(map[setupKey]int),
		setupOn:  make(map[int64]bool),
		windows:  make(map[int64][]model.Window),
	}
	for t := 0; t < n; t++ {
		c.modes[t] = m.Vars[t].Modes
		c.minDur[t] = m.Vars[t].MinDur
		c.taskType[t] = m.Graph.Def(t).Type
		c.due[t] = m.Graph.Tasks[t].Due
		c.prio[t] = m.Graph.Tasks[t].Priority
		c.instOf[t] = m.Graph.Tasks[t].InstanceID
	}

	var activeEdges []Edge
	for _, con := range m.Constraints {
		switch con.Family {
		case config.FamilyPrecedence:
			activeEdges = append(activeEdges, Edge{Pred: con.Pred, Succ: con.Succ, Lag: con.Lag})
			c.preds[con.Succ] = append(c.preds[con.Succ], edgeRef{Other: con.Pred, Lag: con.Lag})
			c.succs[con.Pred] = append(c.succs[con.Pred], edgeRef{Other: con.Succ, Lag: con.Lag})
		case config.FamilyCapacity:
			c.capacity[con.Machine] = con.Capacity
		case config.FamilySetup:
			c.setups[setupKey{con.Machine, con.FromType, con.ToType}] = con.Slots
			c.setupOn[con.Machine] = true
		case config.FamilyCalendar:
			c.windows[con.Machine] = append(c.windows[con.Machine], con.Window)
		}
	}
	for id := range c.windows {
		sort.Slice(c.windows[id], func(i, j int) bool { return c.windows[id][i].Start < c.windows[id][j].Start })
	}

	c.est, c.lst = computeBounds(n, activeEdges, c.minDur, m.Horizon)
	return c
}

// setup returns the transition cost in slots between two task types on a
// machine, zero when no entry applies.
func (c *compiled) setup(machine int64, from, to string) int {
	if !c.setupOn[machine] || from == to {
		return 0
	}
	return c.setups[setupKey{machine, from, to}]
}
