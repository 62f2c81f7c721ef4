package engine

import (
	"reflect"
	"testing"

	"millwright/internal/config"
	"millwright/internal/model"
)

func TestAddPrecedenceConstraints_OnePerDirectEdge(t *testing.T) {
	prob := chainProblem()
	prob.Instances = append(prob.Instances, model.JobInstance{ID: 501, TemplateID: 1, Priority: 1})
	m := buildChain(t, prob, 30)
	AddPrecedenceConstraints(m)
	// 2 edges x 2 instances; never a transitive closure.
	if len(m.Constraints) != 4 {
		t.Errorf("constraint count = %d, want 4 (direct edges only)", len(m.Constraints))
	}
}

func TestAddCapacityConstraints_OnePerUsedMachine(t *testing.T) {
	prob := chainProblem()
	prob.Machines = append(prob.Machines,
		model.Machine{ID: 2, Name: "idle", Capacity: 1},     // never a candidate
		model.Machine{ID: 3, Name: "disabled", Capacity: 0}, // deliberately off
	)
	m := buildChain(t, prob, 30)
	AddCapacityConstraints(m, prob.Machines)
	if len(m.Constraints) != 1 {
		t.Fatalf("constraint count = %d, want 1", len(m.Constraints))
	}
	c := m.Constraints[0]
	if c.Machine != 1 || c.Capacity != 1 {
		t.Errorf("constraint = machine %d cap %d, want machine 1 cap 1", c.Machine, c.Capacity)
	}
}

func TestAddSetupConstraints_QuantizesUpAndSkipsSameType(t *testing.T) {
	prob := chainProblem()
	prob.Setups = []model.SetupTimeEntry{
		{FromType: "cut", ToType: "mill", MachineID: 1, DurationMin: 20},
		{FromType: "cut", ToType: "cut", MachineID: 1, DurationMin: 20}, // same type: no-op
	}
	m := buildChain(t, prob, 30)
	AddSetupConstraints(m, prob.Setups, 15)
	if len(m.Constraints) != 1 {
		t.Fatalf("constraint count = %d, want 1", len(m.Constraints))
	}
	if m.Constraints[0].Slots != 2 {
		t.Errorf("setup slots = %d, want 2 (20 min rounds up at 15-min slots)", m.Constraints[0].Slots)
	}
}

func TestAddCalendarConstraints_MergesWindows(t *testing.T) {
	prob := chainProblem()
	prob.Machines[0].Downtime = []model.Window{
		{Start: 30, End: 60},
		{Start: 50, End: 90}, // overlaps previous
		{Start: 200, End: 230},
	}
	m := buildChain(t, prob, 300)
	AddCalendarConstraints(m, prob.Machines, 15)
	if len(m.Constraints) != 2 {
		t.Fatalf("constraint count = %d, want 2 after merging", len(m.Constraints))
	}
	w := m.Constraints[0].Window
	if w.Start != 2 || w.End != 6 {
		t.Errorf("merged window = [%d,%d), want [2,6)", w.Start, w.End)
	}
}

func TestGenerators_Deterministic(t *testing.T) {
	build := func() []Constraint {
		prob := chainProblem()
		prob.Setups = []model.SetupTimeEntry{{FromType: "cut", ToType: "mill", MachineID: 1, DurationMin: 4}}
		prob.Machines[0].Downtime = []model.Window{{Start: 3, End: 5}}
		m := buildChain(t, prob, 30)
		AddPrecedenceConstraints(m)
		AddCapacityConstraints(m, prob.Machines)
		AddSetupConstraints(m, prob.Setups, 1)
		AddCalendarConstraints(m, prob.Machines, 1)
		return m.Constraints
	}
	a, b := build(), build()
	if !reflect.DeepEqual(a, b) {
		t.Error("two builds over identical input produced different constraint lists")
	}
}

func TestEstimateHorizon_CoversCriticalPathAndWorkload(t *testing.T) {
	cfg := testConfig()
	prob := chainProblem()
	g := expandChain(t, prob)
	if err := Normalize(g, 1, config.RoundUp); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	h := EstimateHorizon(g, prob, cfg)
	// Critical path is 9 slots; with the 1.2 margin the horizon must be
	// at least 10 and comfortably above the path itself.
	if h < 10 {
		t.Errorf("horizon = %d, want >= 10 (9-slot critical path x 1.2 margin)", h)
	}
}

func TestEstimateHorizon_WorkloadDominatesOnParallelTasks(t *testing.T) {
	cfg := testConfig()
	prob := singleTaskProblem(5, 4, 1) // 20 slots of work, no precedence
	g := expandChain(t, prob)
	if err := Normalize(g, 1, config.RoundUp); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	h := EstimateHorizon(g, prob, cfg)
	if h < 20 {
		t.Errorf("horizon = %d, want >= 20 (total workload on one unit machine)", h)
	}
}

func TestEstimateHorizon_AddsDowntime(t *testing.T) {
	cfg := testConfig()
	prob := singleTaskProblem(5, 2, 1)
	base := func() int {
		g := expandChain(t, prob)
		Normalize(g, 1, config.RoundUp)
		return EstimateHorizon(g, prob, cfg)
	}
	h1 := base()
	prob.Machines[0].Downtime = []model.Window{{Start: 0, End: 10}}
	h2 := base()
	if h2 <= h1 {
		t.Errorf("horizon with downtime = %d, want > %d", h2, h1)
	}
}
