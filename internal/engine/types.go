package engine

import (
	"fmt"

	"millwright/internal/config"
	"millwright/internal/model"
)

// Mode is one (machine, duration) execution option of a task definition.
// Duration is in minutes after expansion and in slots after normalization.
type Mode struct {
	ID        int64
	MachineID int64
	Duration  int
	Name      string
}

// TaskDef is the per-template-task data shared by every instance of the
// template. Concrete tasks reference a def by index instead of carrying
// per-instance copies of mode data.
type TaskDef struct {
	TemplateTaskID int64
	Name           string
	Type           string
	Unattended     bool
	SetupOnly      bool
	Modes          []Mode
}

// Task is one concrete task of one job instance.
type Task struct {
	Index      int
	InstanceID int64
	Def        int // index into TaskGraph.Defs
	Due        int // minutes (slots once normalized); -1 = no due date
	Priority   int
}

// Edge is one expanded precedence arc between two concrete tasks.
// Lag is in minutes after expansion and in slots after normalization.
type Edge struct {
	Pred int
	Succ int
	Lag  int
}

// TaskGraph is the expanded, flat task graph for one solve: every concrete
// task across all instances plus per-instance precedence arcs.
type TaskGraph struct {
	Defs  []TaskDef
	Tasks []Task
	Edges []Edge

	// Normalized flips once durations and lags are quantized into slots.
	Normalized  bool
	SlotMinutes int
}

// Def returns the shared definition of a concrete task.
func (g *TaskGraph) Def(t int) *TaskDef { return &g.Defs[g.Tasks[t].Def] }

// MinDuration returns the cheapest mode duration of a concrete task.
func (g *TaskGraph) MinDuration(t int) int {
	d := -1
	for _, m := range g.Def(t).Modes {
		if d < 0 || m.Duration < d {
			d = m.Duration
		}
	}
	if d < 0 {
		return 0
	}
	return d
}

// Constraint is one record added by a constraint generator. Exactly one
// family's field group is meaningful per record; the diagnoser removes
// records individually to shrink conflicts, so every piece of solve-time
// semantics must be expressed here rather than hard-wired into the model.
type Constraint struct {
	Family config.Family

	// Precedence: successor starts at or after predecessor end plus lag.
	Pred, Succ, Lag int

	// Capacity: at most Capacity intervals overlap on Machine.
	Machine  int64
	Capacity int

	// Setup: switching Machine from FromType to ToType costs Slots idle time.
	FromType, ToType string
	Slots            int

	// Calendar: no interval on Machine may intersect Window.
	Window model.Window
}

func (c Constraint) String() string {
	switch c.Family {
	case config.FamilyPrecedence:
		return fmt.Sprintf("precedence: task %d before task %d (lag %d)", c.Pred, c.Succ, c.Lag)
	case config.FamilyCapacity:
		if c.Capacity <= 1 {
			return fmt.Sprintf("machine mutual exclusion on machine %d", c.Machine)
		}
		return fmt.Sprintf("capacity %d on machine %d", c.Capacity, c.Machine)
	case config.FamilySetup:
		return fmt.Sprintf("setup %s->%s on machine %d (%d slots)", c.FromType, c.ToType, c.Machine, c.Slots)
	case config.FamilyCalendar:
		return fmt.Sprintf("downtime [%d,%d) on machine %d", c.Window.Start, c.Window.End, c.Machine)
	}
	return "unknown constraint"
}

// Var is the decision layer for one concrete task: a mode selector over
// Modes plus an interval whose start is bounded to [EST, LST]. The interval
// is optional per machine: it occupies a machine's timeline only when the
// selected mode runs there.
type Var struct {
	TaskIndex int
	Modes     []Mode // usable modes; capacity-0 machines already excluded
	MinDur    int
	EST       int // earliest start, slots
	LST       int // latest start, slots
}

// Model is the constraint model handed to the solver: the normalized task
// graph, decision variables and the generated constraint records.
type Model struct {
	Graph       *TaskGraph
	Vars        []Var
	Horizon     int
	Constraints []Constraint
}
