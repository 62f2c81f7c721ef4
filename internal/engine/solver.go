package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"millwright/internal/config"
)

// Status classifies one solve outcome.
type Status int

const (
	// StatusUnknown: the time limit elapsed before any solution or any
	// infeasibility proof. Not an error; callers may retry with more time.
	StatusUnknown Status = iota
	// StatusOptimal: a solution was found and the search space is exhausted.
	StatusOptimal
	// StatusFeasible: a valid, usable schedule found within the time limit,
	// but optimality is unproven. Returned as a result, never as a failure.
	StatusFeasible
	// StatusInfeasible: the search space is exhausted with no solution.
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	}
	return "UNKNOWN"
}

// Solution holds the solved variable values, indexed by task.
type Solution struct {
	Start     []int
	End       []int
	ModeIdx   []int // index into the task's selector domain
	Machine   []int64
	Makespan  int
	Objective int
}

// SolveStats carries solver diagnostics for logging and persistence.
type SolveStats struct {
	Nodes      int64
	Backtracks int64
	Wall       time.Duration
}

// Result is the classified outcome of one solver run.
type Result struct {
	Status   Status
	Solution *Solution
	Stats    SolveStats
}

// incumbent is the best solution shared across portfolio workers. Workers
// read the bound to prune and offer improvements under the mutex.
type incumbent struct {
	mu   sync.Mutex
	best int
	sol  *Solution
}

func newIncumbent() *incumbent { return &incumbent{best: -1} }

// bound returns the current best objective, ok=false when none exists yet.
func (in *incumbent) bound() (int, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.best, in.sol != nil
}

// offer installs sol if it improves on the current best.
func (in *incumbent) offer(sol *Solution) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.sol != nil && sol.Objective >= in.best {
		return false
	}
	in.best = sol.Objective
	in.sol = sol
	return true
}

func (in *incumbent) take() *Solution {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.sol
}

// heuristic selects the branching order of eligible tasks. The portfolio
// runs one worker per heuristic so diverse schedules surface early.
type heuristic int

const (
	heurEarliestReady heuristic = iota
	heurShortestFirst
	heurMostSuccessors
	heurDuePriority
	numHeuristics
)

// placed is one committed interval on a machine timeline.
type placed struct {
	start, end int
	task       int
}

// search is one worker's depth-first branch-and-bound state. The search
// enumerates active schedules: tasks are dispatched in every eligible order
// and each placement is left-shifted to its earliest feasible start. For
// regular objectives (makespan, tardiness) the active schedules contain an
// optimum, and exhausting them without a solution is an infeasibility proof.
type search struct {
	c    *compiled
	heur heuristic
	inc  *incumbent
	ctx  context.Context

	start, end []int
	modeIdx    []int
	machine    []int64
	scheduled  []bool
	predsLeft  []int
	timelines  map[int64][]placed
	nDone      int

	// tardiness bookkeeping: remaining tasks and running max end per instance
	instLeft map[int64]int
	instEnd  map[int64]int
	partTard int

	nodes      int64
	backtracks int64
	aborted    bool
	exhausted  bool
}

func newSearch(ctx context.Context, c *compiled, heur heuristic, inc *incumbent) *search {
	n := len(c.modes)
	s := &search{
		c: c, heur: heur, inc: inc, ctx: ctx,
		start:     make([]int, n),
		end:       make([]int, n),
		modeIdx:   make([]int, n),
		machine:   make([]int64, n),
		scheduled: make([]bool, n),
		predsLeft: make([]int, n),
		timelines: make(map[int64][]placed),
		instLeft:  make(map[int64]int),
		instEnd:   make(map[int64]int),
	}
	for t := 0; t < n; t++ {
		s.predsLeft[t] = len(c.preds[t])
		s.instLeft[c.instOf[t]]++
	}
	return s
}

// run drives the search to exhaustion or cancellation and classifies.
func (s *search) run() Result {
	began := time.Now()
	s.dfs()
	s.exhausted = !s.aborted

	res := Result{Stats: SolveStats{Nodes: s.nodes, Backtracks: s.backtracks, Wall: time.Since(began)}}
	sol := s.inc.take()
	switch {
	case sol != nil && s.exhausted:
		res.Status, res.Solution = StatusOptimal, sol
	case sol != nil:
		res.Status, res.Solution = StatusFeasible, sol
	case s.exhausted:
		res.Status = StatusInfeasible
	default:
		res.Status = StatusUnknown
	}
	return res
}

const abortCheckMask = 1023

func (s *search) dfs() {
	s.nodes++
	if s.nodes&abortCheckMask == 0 {
		select {
		case <-s.ctx.Done():
			s.aborted = true
		default:
		}
	}
	if s.aborted {
		return
	}

	n := len(s.c.modes)
	if s.nDone == n {
		s.recordSolution()
		return
	}

	if s.pruned() {
		s.backtracks++
		return
	}

	cands := s.eligible()
	if len(cands) == 0 {
		// Unscheduled tasks remain but none is eligible: only possible when a
		// fabricated edge set has a cycle. Treat as a dead branch.
		s.backtracks++
		return
	}

	for _, t := range cands {
		lower := s.readyTime(t)
		for mi, mode := range s.c.modes[t] {
			at := s.earliestStart(t, mode, lower)
			if at < 0 {
				continue
			}
			s.place(t, mi, mode, at)
			s.dfs()
			s.unplace(t, mode)
			if s.aborted {
				return
			}
		}
	}
	s.backtracks++
}

// readyTime is the earliest start permitted by scheduled predecessors and
// the task's static lower bound.
func (s *search) readyTime(t int) int {
	lower := s.c.est[t]
	for _, p := range s.c.preds[t] {
		if s.scheduled[p.Other] {
			if r := s.end[p.Other] + p.Lag; r > lower {
				lower = r
			}
		}
	}
	return lower
}

// eligible returns unscheduled tasks with all predecessors scheduled,
// ordered by the worker's heuristic. Ties break on task index so a single
// worker is fully deterministic.
func (s *search) eligible() []int {
	var out []int
	for t := range s.scheduled {
		if !s.scheduled[t] && s.predsLeft[t] == 0 {
			out = append(out, t)
		}
	}
	c := s.c
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch s.heur {
		case heurShortestFirst:
			if c.minDur[a] != c.minDur[b] {
				return c.minDur[a] < c.minDur[b]
			}
		case heurMostSuccessors:
			if len(c.succs[a]) != len(c.succs[b]) {
				return len(c.succs[a]) > len(c.succs[b])
			}
		case heurDuePriority:
			da, db := dueOrInf(c.due[a]), dueOrInf(c.due[b])
			if da != db {
				return da < db
			}
			if c.prio[a] != c.prio[b] {
				return c.prio[a] > c.prio[b]
			}
		}
		ra, rb := s.readyTime(a), s.readyTime(b)
		if ra != rb {
			return ra < rb
		}
		return a < b
	})
	return out
}

func dueOrInf(due int) int {
	if due < 0 {
		return int(^uint(0) >> 1)
	}
	return due
}

// pruned applies the branch-and-bound cut: when the optimistic completion
// bound of this partial schedule cannot beat the shared incumbent, the
// subtree is dead.
func (s *search) pruned() bool {
	best, ok := s.inc.bound()
	if !ok {
		return false
	}
	switch s.c.obj {
	case config.ObjectiveTardiness:
		// Tardiness only accrues; the partial sum is already a lower bound.
		return s.partTard >= best
	default:
		return s.makespanLowerBound() >= best
	}
}

// makespanLowerBound is max over scheduled ends and, for each unscheduled
// task, its ready time plus cheapest duration plus critical tail.
func (s *search) makespanLowerBound() int {
	lb := 0
	for t := range s.scheduled {
		if s.scheduled[t] {
			if s.end[t] > lb {
				lb = s.end[t]
			}
			continue
		}
		// est already folds the static graph; readyTime folds committed work.
		r := s.c.est[t]
		for _, p := range s.c.preds[t] {
			if s.scheduled[p.Other] {
				if v := s.end[p.Other] + p.Lag; v > r {
					r = v
				}
			}
		}
		if f := r + s.c.minDur[t] + s.tail(t); f > lb {
			lb = f
		}
	}
	return lb
}

// tail is the cheapest remaining chain strictly after t, derived from the
// latest-start bound: lst = horizon - minDur - tail.
func (s *search) tail(t int) int {
	return s.c.horizon - s.c.lst[t] - s.c.minDur[t]
}

func (s *search) place(t, mi int, mode Mode, at int) {
	s.scheduled[t] = true
	s.start[t] = at
	s.end[t] = at + mode.Duration
	s.modeIdx[t] = mi
	s.machine[t] = mode.MachineID
	s.nDone++
	for _, e := range s.c.succs[t] {
		s.predsLeft[e.Other]--
	}

	tl := s.timelines[mode.MachineID]
	i := sort.Search(len(tl), func(i int) bool { return tl[i].start >= at })
	tl = append(tl, placed{})
	copy(tl[i+1:], tl[i:])
	tl[i] = placed{start: at, end: at + mode.Duration, task: t}
	s.timelines[mode.MachineID] = tl

	inst := s.c.instOf[t]
	s.instLeft[inst]--
	if s.end[t] > s.instEnd[inst] {
		s.instEnd[inst] = s.end[t]
	}
	if s.instLeft[inst] == 0 {
		s.partTard += s.instanceTardiness(t, s.instEnd[inst])
	}
}

func (s *search) unplace(t int, mode Mode) {
	inst := s.c.instOf[t]
	if s.instLeft[inst] == 0 {
		s.partTard -= s.instanceTardiness(t, s.instEnd[inst])
	}
	s.instLeft[inst]++
	s.instEnd[inst] = s.recomputeInstEnd(inst, t)

	tl := s.timelines[mode.MachineID]
	for i := range tl {
		if tl[i].task == t {
			s.timelines[mode.MachineID] = append(tl[:i], tl[i+1:]...)
			break
		}
	}

	for _, e := range s.c.succs[t] {
		s.predsLeft[e.Other]++
	}
	s.nDone--
	s.scheduled[t] = false
}

func (s *search) recomputeInstEnd(inst int64, removing int) int {
	m := 0
	for t := range s.scheduled {
		if t != removing && s.scheduled[t] && s.c.instOf[t] == inst && s.end[t] > m {
			m = s.end[t]
		}
	}
	return m
}

func (s *search) instanceTardiness(t, instEnd int) int {
	due := s.c.due[t]
	if due < 0 || instEnd <= due {
		return 0
	}
	w := s.c.prio[t]
	if w < 1 {
		w = 1
	}
	return w * (instEnd - due)
}

func (s *search) recordSolution() {
	n := len(s.c.modes)
	sol := &Solution{
		Start:   append([]int(nil), s.start...),
		End:     append([]int(nil), s.end...),
		ModeIdx: append([]int(nil), s.modeIdx...),
		Machine: append([]int64(nil), s.machine...),
	}
	for t := 0; t < n; t++ {
		if sol.End[t] > sol.Makespan {
			sol.Makespan = sol.End[t]
		}
	}
	if s.c.obj == config.ObjectiveTardiness {
		sol.Objective = s.partTard
	} else {
		sol.Objective = sol.Makespan
	}
	s.inc.offer(sol)
}

// earliestStart left-shifts a (task, mode) placement: the smallest start at
// or after lower that clears downtime windows, the machine's capacity and
// any setup separation against neighbours on the same machine. Returns -1
// when no start at or before the task's latest-start bound exists.
func (s *search) earliestStart(t int, mode Mode, lower int) int {
	d := mode.Duration
	limit := s.c.lst[t]
	if lmax := s.c.horizon - d; lmax < limit {
		limit = lmax
	}
	machID := mode.MachineID
	wins := s.c.windows[machID]
	cap, capped := s.c.capacity[machID]

	at := lower
	for {
		if at > limit {
			return -1
		}
		moved := false
		for _, w := range wins {
			if at < w.End && at+d > w.Start {
				at = w.End
				moved = true
			}
		}
		if moved {
			continue
		}
		if capped {
			var next int
			if cap <= 1 {
				next = s.fitSerial(machID, t, at, d)
			} else {
				next = s.fitCumulative(machID, at, d, cap)
			}
			if next != at {
				at = next
				continue
			}
		}
		return at
	}
}

// fitSerial pushes a candidate start on a capacity-1 machine past every
// conflicting interval, including the setup separation required when the
// neighbouring task carries a different type. Intervals are sorted by
// start, and the candidate only moves right, so a single pass settles it.
func (s *search) fitSerial(machID int64, t, at, d int) int {
	tt := s.c.taskType[t]
	for _, p := range s.timelines[machID] {
		before := s.c.setup(machID, s.c.taskType[p.task], tt) // p runs first
		after := s.c.setup(machID, tt, s.c.taskType[p.task])  // t runs first
		if at >= p.end+before {
			continue
		}
		if at+d+after <= p.start {
			continue
		}
		at = p.end + before
	}
	return at
}

// fitCumulative finds the first start where strictly fewer than cap
// intervals overlap every instant of [at, at+d). Setups are not enforced on
// capacity-k machines: transition time is a property of serialized runs.
func (s *search) fitCumulative(machID int64, at, d, cap int) int {
	tl := s.timelines[machID]
	for {
		overlapping := 0
		for _, p := range tl {
			if p.start < at+d && p.end > at {
				overlapping++
			}
		}
		if overlapping < cap {
			return at
		}
		instant, minEnd := saturatedInstant(tl, at, at+d, cap)
		if instant < 0 {
			return at
		}
		at = minEnd
	}
}

// saturatedInstant scans event points in [from, to) and reports the first
// instant covered by >= cap intervals, along with the earliest end among
// the intervals covering it (the next candidate start).
func saturatedInstant(tl []placed, from, to, cap int) (instant, minEnd int) {
	points := []int{from}
	for _, p := range tl {
		if p.start > from && p.start < to {
			points = append(points, p.start)
		}
	}
	sort.Ints(points)
	for _, pt := range points {
		count := 0
		minEnd = -1
		for _, p := range tl {
			if p.start <= pt && p.end > pt {
				count++
				if minEnd < 0 || p.end < minEnd {
					minEnd = p.end
				}
			}
		}
		if count >= cap {
			return pt, minEnd
		}
	}
	return -1, -1
}
