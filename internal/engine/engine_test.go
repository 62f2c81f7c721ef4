package engine

import (
	"context"
	"testing"
	"time"

	"millwright/internal/config"
	"millwright/internal/model"
)

// testConfig uses 1-minute slots so test durations read directly as slots,
// and a single worker so runs are fully deterministic.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SlotMinutes = 1
	cfg.TimeLimit = 5 * time.Second
	cfg.Workers = 1
	return cfg
}

// chainProblem is a 3-task linear chain (durations 2, 3, 4) with one mode
// each on a single unit-capacity machine.
func chainProblem() *model.Problem {
	return &model.Problem{
		Template: model.JobTemplate{
			ID: 1,
			Tasks: []model.TemplateTask{
				{ID: 10, TemplateID: 1, Name: "cut", Position: 1, Type: "cut"},
				{ID: 11, TemplateID: 1, Name: "mill", Position: 2, Type: "mill"},
				{ID: 12, TemplateID: 1, Name: "polish", Position: 3, Type: "polish"},
			},
			Modes: []model.TemplateTaskMode{
				{ID: 100, TaskID: 10, MachineID: 1, DurationMin: 2, Name: "std"},
				{ID: 101, TaskID: 11, MachineID: 1, DurationMin: 3, Name: "std"},
				{ID: 102, TaskID: 12, MachineID: 1, DurationMin: 4, Name: "std"},
			},
			Precedences: []model.TemplatePrecedence{
				{PredID: 10, SuccID: 11},
				{PredID: 11, SuccID: 12},
			},
		},
		Instances: []model.JobInstance{{ID: 500, TemplateID: 1, Priority: 1, Status: model.StatusPending}},
		Machines:  []model.Machine{{ID: 1, Name: "mill-1", Capacity: 1}},
	}
}

// singleTaskProblem builds one task of the given duration per instance, all
// competing for one machine of the given capacity.
func singleTaskProblem(duration, instances, capacity int) *model.Problem {
	p := &model.Problem{
		Template: model.JobTemplate{
			ID:    1,
			Tasks: []model.TemplateTask{{ID: 10, TemplateID: 1, Name: "run", Position: 1, Type: "run"}},
			Modes: []model.TemplateTaskMode{{ID: 100, TaskID: 10, MachineID: 1, DurationMin: duration, Name: "std"}},
		},
		Machines: []model.Machine{{ID: 1, Name: "cell-1", Capacity: capacity}},
	}
	for i := 0; i < instances; i++ {
		p.Instances = append(p.Instances, model.JobInstance{ID: int64(500 + i), TemplateID: 1, Priority: 1, Status: model.StatusPending})
	}
	return p
}

func mustSolve(t *testing.T, prob *model.Problem, cfg *config.Config) *Outcome {
	t.Helper()
	out, err := NewOrchestrator(cfg).Solve(context.Background(), prob)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	return out
}

// assignmentByTask indexes assignments by (instance, template task).
func assignmentByTask(out *Outcome) map[[2]int64]model.InstanceTaskAssignment {
	idx := make(map[[2]int64]model.InstanceTaskAssignment)
	for _, a := range out.Schedule.Assignments {
		idx[[2]int64{a.InstanceID, a.TaskID}] = a
	}
	return idx
}
