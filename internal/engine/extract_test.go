package engine

import (
	"testing"

	"millwright/internal/model"
)

func TestExtract_AssignmentInvariants(t *testing.T) {
	cfg := testConfig()
	cfg.Horizon = 20
	out := mustSolve(t, chainProblem(), cfg)
	s := out.Schedule

	if len(s.Assignments) != 3 {
		t.Fatalf("assignment count = %d, want 3 (one per instance-task pair)", len(s.Assignments))
	}
	for _, a := range s.Assignments {
		if a.Start < 0 {
			t.Errorf("task %d starts at %d, want >= 0", a.TaskID, a.Start)
		}
		if a.End <= a.Start {
			t.Errorf("task %d has empty interval [%d,%d)", a.TaskID, a.Start, a.End)
		}
		if a.MachineID != 1 || a.ModeID == 0 {
			t.Errorf("task %d missing machine/mode: %+v", a.TaskID, a)
		}
	}
}

func TestExtract_EndMinusStartEqualsModeDuration(t *testing.T) {
	out := mustSolve(t, chainProblem(), testConfig())
	wantDur := map[int64]int{10: 2, 11: 3, 12: 4}
	for _, a := range out.Schedule.Assignments {
		if got := a.End - a.Start; got != wantDur[a.TaskID] {
			t.Errorf("task %d duration = %d, want %d (selected mode's duration)", a.TaskID, got, wantDur[a.TaskID])
		}
	}
}

func TestExtract_MachineUtilization(t *testing.T) {
	cfg := testConfig()
	cfg.Horizon = 20
	out := mustSolve(t, chainProblem(), cfg)

	if len(out.Schedule.Machines) != 1 {
		t.Fatalf("machine stats count = %d, want 1", len(out.Schedule.Machines))
	}
	st := out.Schedule.Machines[0]
	if st.BusySlots != 9 {
		t.Errorf("BusySlots = %d, want 9", st.BusySlots)
	}
	if st.Utilization != 9.0/20.0 {
		t.Errorf("Utilization = %v, want %v (busy / horizon)", st.Utilization, 9.0/20.0)
	}
}

func TestExtract_IdleMachineReported(t *testing.T) {
	prob := chainProblem()
	prob.Machines = append(prob.Machines, model.Machine{ID: 2, Name: "spare", Capacity: 1})
	out := mustSolve(t, prob, testConfig())

	var spare *MachineStat
	for i := range out.Schedule.Machines {
		if out.Schedule.Machines[i].MachineID == 2 {
			spare = &out.Schedule.Machines[i]
		}
	}
	if spare == nil {
		t.Fatal("idle machine missing from stats")
	}
	if spare.BusySlots != 0 || spare.Utilization != 0 {
		t.Errorf("idle machine stats = %+v, want zero busy/utilization", *spare)
	}
}

func TestExtract_SlackOnParallelBranch(t *testing.T) {
	// Diamond: cut precedes both mill (3) and polish (4); no join. The
	// shorter branch carries slack once both land after the shared pred.
	prob := chainProblem()
	prob.Template.Precedences = []model.TemplatePrecedence{
		{PredID: 10, SuccID: 11},
		{PredID: 10, SuccID: 12},
	}
	prob.Machines = append(prob.Machines,
		model.Machine{ID: 2, Name: "mill-2", Capacity: 1},
		model.Machine{ID: 3, Name: "mill-3", Capacity: 1},
	)
	prob.Template.Modes[1].MachineID = 2
	prob.Template.Modes[2].MachineID = 3
	out := mustSolve(t, prob, testConfig())
	if out.Status != StatusOptimal {
		t.Fatalf("Status = %v, want OPTIMAL", out.Status)
	}
	if out.Schedule.Makespan != 6 {
		t.Fatalf("Makespan = %d, want 6 (2 + longest branch 4)", out.Schedule.Makespan)
	}

	slack := make(map[int64]int)
	for _, s := range out.Schedule.Slack {
		slack[s.TaskID] = s.Slack
	}
	if slack[10] != 0 || slack[12] != 0 {
		t.Errorf("critical tasks slack = %d/%d, want 0/0", slack[10], slack[12])
	}
	if slack[11] != 1 {
		t.Errorf("short-branch slack = %d, want 1 (3-slot task inside a 4-slot window)", slack[11])
	}
}
