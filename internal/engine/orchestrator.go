package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"millwright/internal/config"
	"millwright/internal/model"
)

// Outcome is the classified result of one orchestrated solve.
type Outcome struct {
	Status   Status
	Schedule *Schedule // non-nil when a solution exists
	Stats    SolveStats
	Horizon  int
	Workers  int
}

// Orchestrator runs the full pipeline: validate, expand, normalize,
// estimate the horizon, build variables, generate constraints, then solve a
// parallel portfolio and classify the outcome. Model building is strictly
// single-threaded and deterministic; the solve step is the only stage that
// fans out, and that parallelism is opaque to everything downstream.
type Orchestrator struct {
	cfg *config.Config
}

func NewOrchestrator(cfg *config.Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// BuildModel assembles the constraint model for a problem. Validation errors
// (InvalidTemplateError, InvalidDurationError) surface here, before any
// solving; they are never silently corrected. Generators run in a fixed
// order and only for enabled families.
func (o *Orchestrator) BuildModel(prob *model.Problem) (*Model, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	g, err := Expand(prob)
	if err != nil {
		return nil, err
	}
	if err := Normalize(g, o.cfg.SlotMinutes, o.cfg.Rounding); err != nil {
		return nil, err
	}

	horizon := o.cfg.Horizon
	if horizon <= 0 {
		horizon = EstimateHorizon(g, prob, o.cfg)
	}

	m, err := Build(g, prob, horizon)
	if err != nil {
		return nil, err
	}
	if o.cfg.FamilyEnabled(config.FamilyPrecedence) {
		AddPrecedenceConstraints(m)
	}
	if o.cfg.FamilyEnabled(config.FamilyCapacity) {
		AddCapacityConstraints(m, prob.Machines)
	}
	if o.cfg.FamilyEnabled(config.FamilySetup) {
		AddSetupConstraints(m, prob.Setups, o.cfg.SlotMinutes)
	}
	if o.cfg.FamilyEnabled(config.FamilyCalendar) {
		AddCalendarConstraints(m, prob.Machines, o.cfg.SlotMinutes)
	}
	return m, nil
}

// Solve builds the model and runs the worker portfolio. On infeasibility it
// returns a nil-schedule outcome with StatusInfeasible; callers invoke the
// diagnoser separately. A time-limited feasible schedule comes back as a
// valid StatusFeasible result, never as a failure.
func (o *Orchestrator) Solve(ctx context.Context, prob *model.Problem) (*Outcome, error) {
	m, err := o.BuildModel(prob)
	if err != nil {
		return nil, err
	}

	workers := o.cfg.EffectiveWorkers()
	res := solvePortfolio(ctx, m, o.cfg, workers)

	out := &Outcome{
		Status:  res.Status,
		Stats:   res.Stats,
		Horizon: m.Horizon,
		Workers: workers,
	}
	if res.Solution != nil {
		out.Schedule = Extract(m, prob, res, o.cfg)
	}
	return out, nil
}

// solvePortfolio runs up to `workers` concurrent searches over the same
// compiled model, one branching heuristic each, sharing one incumbent for
// pruning. Cancellation is cooperative via the context deadline only.
func solvePortfolio(ctx context.Context, m *Model, cfg *config.Config, workers int) Result {
	c := compileModel(m, cfg.Objective)

	if cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.TimeLimit)
		defer cancel()
	}

	if workers > int(numHeuristics) {
		workers = int(numHeuristics)
	}
	if workers < 1 {
		workers = 1
	}

	inc := newIncumbent()
	results := make([]Result, workers)
	began := time.Now()

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		eg.Go(func() error {
			s := newSearch(ctx, c, heuristic(w), inc)
			results[w] = s.run()
			return nil
		})
	}
	eg.Wait()

	agg := Result{Stats: SolveStats{Wall: time.Since(began)}}
	exhausted := false
	for _, r := range results {
		agg.Stats.Nodes += r.Stats.Nodes
		agg.Stats.Backtracks += r.Stats.Backtracks
		if r.Status == StatusOptimal || r.Status == StatusInfeasible {
			exhausted = true
		}
	}
	agg.Solution = inc.take()
	switch {
	case agg.Solution != nil && exhausted:
		agg.Status = StatusOptimal
	case agg.Solution != nil:
		agg.Status = StatusFeasible
	case exhausted:
		agg.Status = StatusInfeasible
	default:
		agg.Status = StatusUnknown
	}
	return agg
}

// SolveOrError wraps Solve for callers that prefer errors over statuses:
// proven infeasibility comes back as an InfeasibleError.
func (o *Orchestrator) SolveOrError(ctx context.Context, prob *model.Problem) (*Outcome, error) {
	out, err := o.Solve(ctx, prob)
	if err != nil {
		return nil, err
	}
	if out.Status == StatusInfeasible {
		return out, &model.InfeasibleError{
			Reason: fmt.Sprintf("no timetable exists within horizon %d", out.Horizon),
		}
	}
	return out, nil
}
