package engine

import (
	"strings"
	"testing"

	"millwright/internal/config"
	"millwright/internal/model"
)

func buildChain(t *testing.T, prob *model.Problem, horizon int) *Model {
	t.Helper()
	g := expandChain(t, prob)
	if err := Normalize(g, 1, config.RoundUp); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	m, err := Build(g, prob, horizon)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

func TestBuild_TightensBounds(t *testing.T) {
	m := buildChain(t, chainProblem(), 20)
	// Chain 2 -> 3 -> 4 at horizon 20.
	wantEST := []int{0, 2, 5}
	wantLST := []int{11, 13, 16}
	for i, v := range m.Vars {
		if v.EST != wantEST[i] {
			t.Errorf("EST[%d] = %d, want %d", i, v.EST, wantEST[i])
		}
		if v.LST != wantLST[i] {
			t.Errorf("LST[%d] = %d, want %d", i, v.LST, wantLST[i])
		}
	}
}

func TestBuild_LagWidensBounds(t *testing.T) {
	prob := chainProblem()
	prob.Template.Precedences[0].LagMin = 3
	m := buildChain(t, prob, 20)
	if m.Vars[1].EST != 5 {
		t.Errorf("EST of successor = %d, want 5 (2 duration + 3 lag)", m.Vars[1].EST)
	}
}

func TestBuild_ExcludesCapacityZeroModes(t *testing.T) {
	prob := chainProblem()
	prob.Machines = append(prob.Machines, model.Machine{ID: 2, Name: "mill-2", Capacity: 0})
	prob.Template.Modes = append(prob.Template.Modes,
		model.TemplateTaskMode{ID: 103, TaskID: 10, MachineID: 2, DurationMin: 1, Name: "fast"})
	m := buildChain(t, prob, 20)
	for _, mode := range m.Vars[0].Modes {
		if mode.MachineID == 2 {
			t.Error("mode on capacity-0 machine survived into the selector domain")
		}
	}
	if len(m.Vars[0].Modes) != 1 {
		t.Errorf("selector domain size = %d, want 1", len(m.Vars[0].Modes))
	}
}

func TestBuild_AllModesExcludedIsExplicitError(t *testing.T) {
	prob := chainProblem()
	prob.Machines[0].Capacity = 0
	g := expandChain(t, prob)
	if err := Normalize(g, 1, config.RoundUp); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	_, err := Build(g, prob, 20)
	if err == nil {
		t.Fatal("Build() = nil error, want explicit no-usable-mode error")
	}
	if !strings.Contains(err.Error(), "no usable execution mode") {
		t.Errorf("error = %q, want it to name the missing mode", err)
	}
}

func TestBuild_RejectsUnnormalizedGraph(t *testing.T) {
	prob := chainProblem()
	g := expandChain(t, prob)
	if _, err := Build(g, prob, 20); err == nil {
		t.Fatal("Build() accepted an unnormalized graph")
	}
}
