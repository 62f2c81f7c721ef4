package engine

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"millwright/internal/config"
	"millwright/internal/model"
)

func TestDiagnose_CapacityConflictIsolated(t *testing.T) {
	// Three 5-slot tasks on one unit machine at horizon 10: provably broken.
	cfg := testConfig()
	cfg.Horizon = 10
	prob := singleTaskProblem(5, 3, 1)

	out := mustSolve(t, prob, cfg)
	if out.Status != StatusInfeasible {
		t.Fatalf("Status = %v, want INFEASIBLE before diagnosing", out.Status)
	}

	rep, err := NewDiagnoser(prob, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(rep.SanityIssues) != 0 {
		t.Errorf("SanityIssues = %v, want none", rep.SanityIssues)
	}
	if len(rep.ConflictingFamilies) != 1 || rep.ConflictingFamilies[0] != config.FamilyCapacity {
		t.Errorf("ConflictingFamilies = %v, want [capacity]", rep.ConflictingFamilies)
	}
	if rep.MinFeasibleHorizon != 15 {
		t.Errorf("MinFeasibleHorizon = %d, want 15", rep.MinFeasibleHorizon)
	}
	if len(rep.MinimalSubset) != 1 || !strings.Contains(rep.MinimalSubset[0], "mutual exclusion") {
		t.Errorf("MinimalSubset = %v, want the single mutual-exclusion record", rep.MinimalSubset)
	}
	if rep.Trace[len(rep.Trace)-1] != StateReporting {
		t.Errorf("terminal state = %v, want reporting", rep.Trace[len(rep.Trace)-1])
	}
}

func TestDiagnose_Idempotent(t *testing.T) {
	cfg := testConfig()
	cfg.Horizon = 10
	prob := singleTaskProblem(5, 3, 1)

	first, err := NewDiagnoser(prob, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := NewDiagnoser(prob, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !reflect.DeepEqual(first.MinimalSubset, second.MinimalSubset) {
		t.Errorf("minimal subsets differ across runs: %v vs %v", first.MinimalSubset, second.MinimalSubset)
	}
	if first.MinFeasibleHorizon != second.MinFeasibleHorizon {
		t.Errorf("min horizons differ: %d vs %d", first.MinFeasibleHorizon, second.MinFeasibleHorizon)
	}
}

func TestDiagnose_SanityShortCircuitsOnCycle(t *testing.T) {
	cfg := testConfig()
	prob := chainProblem()
	prob.Template.Precedences = append(prob.Template.Precedences, model.TemplatePrecedence{PredID: 12, SuccID: 10})

	rep, err := NewDiagnoser(prob, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rep.SanityIssues) == 0 {
		t.Fatal("SanityIssues empty, want the cycle reported")
	}
	// Straight to reporting: no relaxation states in between.
	want := []DiagState{StateCheckingSanity, StateReporting}
	if !reflect.DeepEqual(rep.Trace, want) {
		t.Errorf("Trace = %v, want %v", rep.Trace, want)
	}
}

func TestDiagnose_SanityCatchesAllDayDowntime(t *testing.T) {
	cfg := testConfig()
	cfg.Horizon = 10
	prob := singleTaskProblem(5, 1, 1)
	prob.Machines[0].Downtime = []model.Window{{Start: 0, End: 10}}

	rep, err := NewDiagnoser(prob, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	found := false
	for _, issue := range rep.SanityIssues {
		if strings.Contains(issue, "down for the entire horizon") {
			found = true
		}
	}
	if !found {
		t.Errorf("SanityIssues = %v, want full-horizon downtime flagged", rep.SanityIssues)
	}
}

func TestDiagnose_MinHorizonOnFeasibleProblem(t *testing.T) {
	// The chain (durations 2, 3, 4 on one serial machine) needs exactly 9
	// slots. Diagnosing it at a generous horizon must search downward and
	// report 9, never a value above a horizon that already solves.
	cfg := testConfig()
	cfg.Horizon = 20
	prob := chainProblem()

	out := mustSolve(t, prob, cfg)
	if out.Status != StatusOptimal {
		t.Fatalf("Status = %v, want OPTIMAL before diagnosing", out.Status)
	}

	rep, err := NewDiagnoser(prob, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.MinFeasibleHorizon != 9 {
		t.Errorf("MinFeasibleHorizon = %d, want 9", rep.MinFeasibleHorizon)
	}
	if len(rep.ConflictingFamilies) != 0 {
		t.Errorf("ConflictingFamilies = %v, want none on a feasible problem", rep.ConflictingFamilies)
	}
	if len(rep.MinimalSubset) != 0 {
		t.Errorf("MinimalSubset = %v, want none on a feasible problem", rep.MinimalSubset)
	}
}

func TestDiagnose_AlwaysReports(t *testing.T) {
	// A feasible problem still yields a structured report, not an error.
	rep, err := NewDiagnoser(chainProblem(), testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep == nil {
		t.Fatal("Run() returned a nil report")
	}
	if rep.Trace[len(rep.Trace)-1] != StateReporting {
		t.Errorf("terminal state = %v, want reporting", rep.Trace[len(rep.Trace)-1])
	}
}
