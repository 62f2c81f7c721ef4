package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"millwright/internal/config"
	"millwright/internal/model"
)

// DiagState is one state of the infeasibility post-mortem.
type DiagState string

const (
	StateCheckingSanity      DiagState = "checking-sanity"
	StateIsolatingGroups     DiagState = "isolating-groups"
	StateBinarySearchHorizon DiagState = "binary-search-horizon"
	StateMinimalSubset       DiagState = "minimal-subset"
	StateReporting           DiagState = "reporting"
)

// DiagnosticReport is the structured output of a diagnosis run. Reporting is
// the terminal state and always produces one, even when no single cause
// could be isolated.
type DiagnosticReport struct {
	SanityIssues        []string
	ConflictingFamilies []config.Family
	MinFeasibleHorizon  int // -1 when none found up to the search cap
	MinimalSubset       []string
	Trace               []DiagState
}

// Diagnoser re-solves reduced variants of an infeasible problem to isolate
// the conflict. Every attempt gets a fresh model, so constraint state is never
// shared across attempts. Attempts run strictly sequentially, each one
// depending on the previous result.
type Diagnoser struct {
	prob *model.Problem
	cfg  *config.Config

	// attemptBudget caps each individual re-solve; diagnosis runs many of
	// them, so one attempt never gets the full solve budget.
	attemptBudget time.Duration
}

func NewDiagnoser(prob *model.Problem, cfg *config.Config) *Diagnoser {
	budget := cfg.TimeLimit / 10
	if budget < time.Second {
		budget = time.Second
	}
	return &Diagnoser{prob: prob, cfg: cfg, attemptBudget: budget}
}

// Run walks the state machine: sanity checks short-circuit straight to
// reporting; otherwise each constraint family is disabled in turn, the
// minimum feasible horizon is binary-searched, and the conflicting
// constraint set is shrunk to a minimal reproducing subset.
func (d *Diagnoser) Run(ctx context.Context) (*DiagnosticReport, error) {
	rep := &DiagnosticReport{MinFeasibleHorizon: -1}
	state := StateCheckingSanity
	for {
		rep.Trace = append(rep.Trace, state)
		switch state {
		case StateCheckingSanity:
			rep.SanityIssues = d.sanityIssues()
			if len(rep.SanityIssues) > 0 {
				state = StateReporting
				continue
			}
			state = StateIsolatingGroups

		case StateIsolatingGroups:
			// A family is conflicting only when removing it *restores*
			// feasibility; a baseline that already solves implicates none.
			base, err := d.attempt(ctx, d.cfg, 0)
			if err != nil {
				return nil, fmt.Errorf("diagnose: baseline: %w", err)
			}
			if base != StatusOptimal && base != StatusFeasible {
				for _, fam := range config.AllFamilies {
					st, err := d.attempt(ctx, d.cfg.WithDisabled(fam), 0)
					if err != nil {
						return nil, fmt.Errorf("diagnose: relax %s: %w", fam, err)
					}
					if st == StatusOptimal || st == StatusFeasible {
						rep.ConflictingFamilies = append(rep.ConflictingFamilies, fam)
					}
				}
			}
			state = StateBinarySearchHorizon

		case StateBinarySearchHorizon:
			h, err := d.minFeasibleHorizon(ctx)
			if err != nil {
				return nil, err
			}
			rep.MinFeasibleHorizon = h
			state = StateMinimalSubset

		case StateMinimalSubset:
			subset, err := d.minimalSubset(ctx)
			if err != nil {
				return nil, err
			}
			rep.MinimalSubset = subset
			state = StateReporting

		case StateReporting:
			return rep, nil
		}
	}
}

// sanityIssues collects the cheap structural causes that make any solve
// attempt pointless: broken validation, cyclic precedence, durations that
// quantize away, machines whose downtime swallows the whole horizon.
func (d *Diagnoser) sanityIssues() []string {
	var issues []string

	if err := d.prob.Validate(); err != nil {
		issues = append(issues, err.Error())
		var verr *model.InvalidTemplateError
		if errors.As(err, &verr) {
			return issues // structure is broken; deeper checks would lie
		}
	}

	g, err := Expand(d.prob)
	if err != nil {
		issues = append(issues, err.Error())
		return issues
	}
	if err := Normalize(g, d.cfg.SlotMinutes, d.cfg.Rounding); err != nil {
		issues = append(issues, err.Error())
		return issues
	}

	horizon := d.cfg.Horizon
	if horizon <= 0 {
		horizon = EstimateHorizon(g, d.prob, d.cfg)
	}
	for _, mach := range d.prob.Machines {
		if mach.Capacity <= 0 || len(mach.Downtime) == 0 {
			continue
		}
		for _, w := range mergeWindows(mach.Downtime, d.cfg.SlotMinutes) {
			if w.Start <= 0 && w.End >= horizon {
				issues = append(issues, fmt.Sprintf("machine %d (%s) is down for the entire horizon [0,%d)", mach.ID, mach.Name, horizon))
			}
		}
	}
	return issues
}

// attempt solves one reduced variant sequentially (a single deterministic
// worker) on a fresh model. horizon 0 keeps the variant's own sizing.
func (d *Diagnoser) attempt(ctx context.Context, cfg *config.Config, horizon int) (Status, error) {
	variant := *cfg
	if horizon > 0 {
		variant.Horizon = horizon
	}
	variant.TimeLimit = d.attemptBudget
	variant.Workers = 1

	m, err := NewOrchestrator(&variant).BuildModel(d.prob)
	if err != nil {
		return StatusUnknown, err
	}
	res := solvePortfolio(ctx, m, &variant, 1)
	return res.Status, nil
}

// minFeasibleHorizon binary-searches the smallest horizon at which the full
// model becomes feasible. Feasibility is monotone in the horizon. The current
// horizon is probed first: infeasible there, it bounds the answer from below
// and a generous serialization bound from above; feasible there (diagnosis of
// an already-solvable problem), the search runs downward over (0, current]
// instead. Returns -1 when even the upper bound fails.
func (d *Diagnoser) minFeasibleHorizon(ctx context.Context) (int, error) {
	g, err := Expand(d.prob)
	if err != nil {
		return -1, err
	}
	if err := Normalize(g, d.cfg.SlotMinutes, d.cfg.Rounding); err != nil {
		return -1, err
	}

	cur := d.cfg.Horizon
	if cur <= 0 {
		cur = EstimateHorizon(g, d.prob, d.cfg)
	}

	var lo, hi int
	st, err := d.attempt(ctx, d.cfg, cur)
	if err != nil {
		return -1, err
	}
	if st == StatusOptimal || st == StatusFeasible {
		// Nothing schedules in zero time, so horizon 0 is a sound lower end.
		lo, hi = 0, cur
	} else {
		lo = cur
		hi = serializationBound(g, d.prob, d.cfg)
		if hi <= lo {
			hi = lo + 1
		}
		st, err := d.attempt(ctx, d.cfg, hi)
		if err != nil {
			return -1, err
		}
		if st != StatusOptimal && st != StatusFeasible {
			return -1, nil
		}
	}

	// Invariant: infeasible at lo, feasible at hi.
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		st, err := d.attempt(ctx, d.cfg, mid)
		if err != nil {
			return -1, err
		}
		if st == StatusOptimal || st == StatusFeasible {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}

// serializationBound is a horizon guaranteed to fit everything: all tasks at
// their longest mode run back to back on one machine, plus every lag, every
// setup at its worst and all downtime.
func serializationBound(g *TaskGraph, prob *model.Problem, cfg *config.Config) int {
	total := 0
	for t := range g.Tasks {
		maxDur := 0
		for _, m := range g.Def(t).Modes {
			if m.Duration > maxDur {
				maxDur = m.Duration
			}
		}
		total += maxDur
	}
	for _, e := range g.Edges {
		total += e.Lag
	}
	maxSetup := 0
	for _, s := range prob.Setups {
		if slots := SlotsCeil(s.DurationMin, cfg.SlotMinutes); slots > maxSetup {
			maxSetup = slots
		}
	}
	total += maxSetup * len(g.Tasks)
	for _, mach := range prob.Machines {
		for _, w := range mergeWindows(mach.Downtime, cfg.SlotMinutes) {
			total += w.End - w.Start
		}
	}
	return total + 1
}

// minimalSubset shrinks the constraint list with a deletion filter: walk the
// records in generation order and drop any whose removal keeps the problem
// infeasible. What survives is a minimal reproducing subset. The walk order
// is fixed, so re-running diagnosis on an unchanged problem reproduces the
// same subset.
func (d *Diagnoser) minimalSubset(ctx context.Context) ([]string, error) {
	m, err := NewOrchestrator(d.cfg).BuildModel(d.prob)
	if err != nil {
		return nil, err
	}

	// The filter only makes sense over a broken full set; a feasible model
	// has no conflicting subset at all.
	st, err := d.attemptWithConstraints(ctx, m, m.Constraints)
	if err != nil {
		return nil, err
	}
	if st != StatusInfeasible {
		return nil, nil
	}

	active := append([]Constraint(nil), m.Constraints...)
	for i := 0; i < len(active); i++ {
		trial := make([]Constraint, 0, len(active)-1)
		trial = append(trial, active[:i]...)
		trial = append(trial, active[i+1:]...)

		st, err := d.attemptWithConstraints(ctx, m, trial)
		if err != nil {
			return nil, err
		}
		if st == StatusInfeasible {
			// Still broken without it: the record is not part of the core.
			active = trial
			i--
		}
	}

	out := make([]string, len(active))
	for i, c := range active {
		out[i] = c.String()
	}
	return out, nil
}

// attemptWithConstraints re-solves the same variable layer under an explicit
// constraint list, on a fresh compiled model per attempt.
func (d *Diagnoser) attemptWithConstraints(ctx context.Context, base *Model, cons []Constraint) (Status, error) {
	variant := *d.cfg
	variant.TimeLimit = d.attemptBudget
	variant.Workers = 1

	m := &Model{Graph: base.Graph, Vars: base.Vars, Horizon: base.Horizon, Constraints: cons}
	res := solvePortfolio(ctx, m, &variant, 1)
	return res.Status, nil
}
