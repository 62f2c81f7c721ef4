package model

import "time"

// InstanceStatus tracks a job instance through its lifecycle. Instances are
// immutable once an assignment is committed, except for these transitions.
type InstanceStatus string

const (
	StatusPending   InstanceStatus = "pending"
	StatusScheduled InstanceStatus = "scheduled"
	StatusDone      InstanceStatus = "done"
	StatusCanceled  InstanceStatus = "canceled"
)

// JobTemplate is a reusable definition of a job's task structure, shared by
// many instances. Metrics is derived, never authoritative: it is recomputed
// via ComputeMetrics whenever tasks, modes or precedences change.
type JobTemplate struct {
	ID          int64
	Name        string
	Tasks       []TemplateTask
	Modes       []TemplateTaskMode
	Precedences []TemplatePrecedence
	Metrics     TemplateMetrics
}

// TemplateMetrics caches aggregate figures over a template, all in minutes.
type TemplateMetrics struct {
	TaskCount       int
	TotalMinMinutes int // sum of each task's cheapest mode
	CriticalPathMin int // longest precedence chain using cheapest modes
}

// TemplateTask is one step of a template. Position defines a stable total
// order used for deterministic expansion and must be unique per template.
type TemplateTask struct {
	ID         int64
	TemplateID int64
	Name       string
	Position   int
	Type       string // setup-time matrix key
	Department string
	Unattended bool
	SetupOnly  bool
}

// TemplateTaskMode is one (machine, duration) execution option for a task.
// Exactly one mode is chosen per concrete task instance.
type TemplateTaskMode struct {
	ID          int64
	TaskID      int64
	MachineID   int64
	DurationMin int
	Name        string
}

// TemplatePrecedence orders two template tasks with an optional lag.
type TemplatePrecedence struct {
	PredID int64
	SuccID int64
	LagMin int
}

// JobInstance is one concrete occurrence of a template.
type JobInstance struct {
	ID         int64
	TemplateID int64
	Due        time.Time
	Priority   int
	Status     InstanceStatus
}

// InstanceTaskAssignment is the engine's primary output: one row per
// (instance, task) pair, written once per solve. Start/End are in slots.
type InstanceTaskAssignment struct {
	InstanceID int64
	TaskID     int64
	ModeID     int64
	MachineID  int64
	Start      int
	End        int
}

// Window is a half-open [Start, End) span on a machine's timeline.
type Window struct {
	Start int
	End   int
}

// Machine describes one schedulable resource. Capacity is how many tasks it
// may run concurrently; capacity 0 marks the machine deliberately
// unavailable, meaning no task may select it (never silent infeasibility).
type Machine struct {
	ID       int64
	Name     string
	Capacity int
	Downtime []Window // minutes until normalized
}

// SetupTimeEntry is the extra non-productive time inserted when a machine
// switches between task types on consecutive runs.
type SetupTimeEntry struct {
	FromType    string
	ToType      string
	MachineID   int64
	DurationMin int
}

// Problem bundles everything one solve consumes. The engine owns the derived
// in-memory model for the duration of the solve and never mutates the
// template definition itself.
type Problem struct {
	Template  JobTemplate
	Instances []JobInstance
	Machines  []Machine
	Setups    []SetupTimeEntry

	// Start anchors slot 0 on the wall clock. Due dates are only enforced
	// when an origin is set; a zero Start leaves them unanchored.
	Start time.Time
}

// MachineByID returns the machine with the given id, or nil.
func (p *Problem) MachineByID(id int64) *Machine {
	for i := range p.Machines {
		if p.Machines[i].ID == id {
			return &p.Machines[i]
		}
	}
	return nil
}

// TaskByID returns the template task with the given id, or nil.
func (t *JobTemplate) TaskByID(id int64) *TemplateTask {
	for i := range t.Tasks {
		if t.Tasks[i].ID == id {
			return &t.Tasks[i]
		}
	}
	return nil
}

// ModesForTask returns the execution modes of one template task, in
// declaration order.
func (t *JobTemplate) ModesForTask(taskID int64) []TemplateTaskMode {
	var out []TemplateTaskMode
	for _, m := range t.Modes {
		if m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out
}
