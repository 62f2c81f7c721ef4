package model

import "fmt"

// Validate checks the structural invariants of a problem before any model
// building: unique task, machine, and instance ids, unique task positions,
// unique mode names per task, no dangling
// mode/precedence references, no precedence self-loops, positive raw
// durations, and machine references that resolve. Cycle detection over the
// precedence graph happens separately during expansion.
func (p *Problem) Validate() error {
	t := &p.Template
	if len(t.Tasks) == 0 {
		return &InvalidTemplateError{TemplateID: t.ID, Reason: "template has no tasks"}
	}

	taskIDs := make(map[int64]bool, len(t.Tasks))
	positions := make(map[int]int64, len(t.Tasks))
	for _, task := range t.Tasks {
		if taskIDs[task.ID] {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("duplicate task id %d", task.ID)}
		}
		taskIDs[task.ID] = true
		if other, ok := positions[task.Position]; ok {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("tasks %d and %d share position %d", other, task.ID, task.Position)}
		}
		positions[task.Position] = task.ID
	}

	machines := make(map[int64]*Machine, len(p.Machines))
	for i := range p.Machines {
		m := &p.Machines[i]
		if machines[m.ID] != nil {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("duplicate machine id %d", m.ID)}
		}
		if m.Capacity < 0 {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("machine %d has negative capacity %d", m.ID, m.Capacity)}
		}
		machines[m.ID] = m
	}

	modeNames := make(map[int64]map[string]bool, len(t.Tasks))
	modeCount := make(map[int64]int, len(t.Tasks))
	for _, mode := range t.Modes {
		if !taskIDs[mode.TaskID] {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("mode %q references unknown task %d", mode.Name, mode.TaskID)}
		}
		if mode.DurationMin <= 0 {
			return &InvalidDurationError{TaskID: mode.TaskID, ModeName: mode.Name, Minutes: mode.DurationMin}
		}
		if machines[mode.MachineID] == nil {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("mode %q references unknown machine %d", mode.Name, mode.MachineID)}
		}
		names := modeNames[mode.TaskID]
		if names == nil {
			names = make(map[string]bool)
			modeNames[mode.TaskID] = names
		}
		if names[mode.Name] {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("task %d has duplicate mode name %q", mode.TaskID, mode.Name)}
		}
		names[mode.Name] = true
		modeCount[mode.TaskID]++
	}
	for _, task := range t.Tasks {
		if modeCount[task.ID] == 0 {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("task %d has no execution modes", task.ID)}
		}
	}

	for _, prec := range t.Precedences {
		if prec.PredID == prec.SuccID {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("precedence self-loop on task %d", prec.PredID)}
		}
		if !taskIDs[prec.PredID] || !taskIDs[prec.SuccID] {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("precedence %d->%d references unknown task", prec.PredID, prec.SuccID)}
		}
		if prec.LagMin < 0 {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("precedence %d->%d has negative lag %d", prec.PredID, prec.SuccID, prec.LagMin)}
		}
	}

	instanceIDs := make(map[int64]bool, len(p.Instances))
	for _, inst := range p.Instances {
		if instanceIDs[inst.ID] {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("duplicate instance id %d", inst.ID)}
		}
		instanceIDs[inst.ID] = true
		if inst.TemplateID != t.ID {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("instance %d references template %d", inst.ID, inst.TemplateID)}
		}
	}

	for _, s := range p.Setups {
		if machines[s.MachineID] == nil {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("setup entry %s->%s references unknown machine %d", s.FromType, s.ToType, s.MachineID)}
		}
		if s.DurationMin < 0 {
			return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("setup entry %s->%s has negative duration", s.FromType, s.ToType)}
		}
	}

	for i := range p.Machines {
		for _, w := range p.Machines[i].Downtime {
			if w.End <= w.Start || w.Start < 0 {
				return &InvalidTemplateError{TemplateID: t.ID, Reason: fmt.Sprintf("machine %d has malformed downtime window [%d,%d)", p.Machines[i].ID, w.Start, w.End)}
			}
		}
	}

	return nil
}
