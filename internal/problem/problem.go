// Package problem loads scheduling problem definitions from YAML files and
// converts them into validated model types. This is the file-based face of
// the input contract; the SQLite store covers the persistent one.
package problem

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"millwright/internal/model"
)

// Definition mirrors the YAML problem schema.
type Definition struct {
	Template  TemplateDef   `yaml:"template"`
	Instances []InstanceDef `yaml:"instances"`
	Machines  []MachineDef  `yaml:"machines"`
	Setups    []SetupDef    `yaml:"setup_times"`
	Start     time.Time     `yaml:"start"` // timeline origin; optional
}

type TemplateDef struct {
	ID          int64           `yaml:"id"`
	Name        string          `yaml:"name"`
	Tasks       []TaskDef       `yaml:"tasks"`
	Precedences []PrecedenceDef `yaml:"precedences"`
}

type TaskDef struct {
	ID         int64     `yaml:"id"`
	Name       string    `yaml:"name"`
	Position   int       `yaml:"position"`
	Type       string    `yaml:"type"`
	Department string    `yaml:"department"`
	Unattended bool      `yaml:"unattended"`
	SetupOnly  bool      `yaml:"setup_only"`
	Modes      []ModeDef `yaml:"modes"`
}

type ModeDef struct {
	Machine string `yaml:"machine"` // machine name, resolved on convert
	Minutes int    `yaml:"minutes"`
	Name    string `yaml:"name"`
}

type PrecedenceDef struct {
	Before     int64 `yaml:"before"`
	After      int64 `yaml:"after"`
	LagMinutes int   `yaml:"lag_minutes"`
}

type InstanceDef struct {
	ID       int64     `yaml:"id"`
	Due      time.Time `yaml:"due"`
	Priority int       `yaml:"priority"`
}

type MachineDef struct {
	Name     string        `yaml:"name"`
	Capacity int           `yaml:"capacity"`
	Downtime []DowntimeDef `yaml:"downtime"`
}

type DowntimeDef struct {
	StartMinutes int `yaml:"start_minutes"`
	EndMinutes   int `yaml:"end_minutes"`
}

type SetupDef struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Machine string `yaml:"machine"`
	Minutes int    `yaml:"minutes"`
}

// ParseYAML decodes a problem definition from YAML bytes.
func ParseYAML(data []byte) (*Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("problem: definition payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("problem: decode definition: %w", err)
	}
	return &def, nil
}

// LoadFile loads and converts a problem definition from a file path.
func LoadFile(path string) (*model.Problem, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("problem: read %s: %w", path, err)
	}
	def, err := ParseYAML(content)
	if err != nil {
		return nil, fmt.Errorf("problem: %s: %w", path, err)
	}
	return def.Convert()
}

// Convert resolves a parsed definition into validated model types. Machine
// names become synthetic ids in declaration order; mode ids are assigned
// sequentially so assignments can reference them stably.
func (d *Definition) Convert() (*model.Problem, error) {
	p := &model.Problem{Start: d.Start}

	machineID := make(map[string]int64, len(d.Machines))
	for i, m := range d.Machines {
		if m.Name == "" {
			return nil, fmt.Errorf("problem: machine %d has no name", i)
		}
		if _, dup := machineID[m.Name]; dup {
			return nil, fmt.Errorf("problem: duplicate machine name %q", m.Name)
		}
		id := int64(i + 1)
		machineID[m.Name] = id
		mach := model.Machine{ID: id, Name: m.Name, Capacity: m.Capacity}
		for _, w := range m.Downtime {
			mach.Downtime = append(mach.Downtime, model.Window{Start: w.StartMinutes, End: w.EndMinutes})
		}
		p.Machines = append(p.Machines, mach)
	}

	tpl := model.JobTemplate{ID: d.Template.ID, Name: d.Template.Name}
	var modeID int64
	for _, task := range d.Template.Tasks {
		tpl.Tasks = append(tpl.Tasks, model.TemplateTask{
			ID:         task.ID,
			TemplateID: tpl.ID,
			Name:       task.Name,
			Position:   task.Position,
			Type:       task.Type,
			Department: task.Department,
			Unattended: task.Unattended,
			SetupOnly:  task.SetupOnly,
		})
		for _, mode := range task.Modes {
			id, ok := machineID[mode.Machine]
			if !ok {
				return nil, fmt.Errorf("problem: task %d mode %q references unknown machine %q", task.ID, mode.Name, mode.Machine)
			}
			modeID++
			tpl.Modes = append(tpl.Modes, model.TemplateTaskMode{
				ID:          modeID,
				TaskID:      task.ID,
				MachineID:   id,
				DurationMin: mode.Minutes,
				Name:        mode.Name,
			})
		}
	}
	for _, prec := range d.Template.Precedences {
		tpl.Precedences = append(tpl.Precedences, model.TemplatePrecedence{
			PredID: prec.Before,
			SuccID: prec.After,
			LagMin: prec.LagMinutes,
		})
	}
	tpl.Metrics = model.ComputeMetrics(&tpl)
	p.Template = tpl

	for _, inst := range d.Instances {
		p.Instances = append(p.Instances, model.JobInstance{
			ID:         inst.ID,
			TemplateID: tpl.ID,
			Due:        inst.Due,
			Priority:   inst.Priority,
			Status:     model.StatusPending,
		})
	}

	for _, s := range d.Setups {
		id, ok := machineID[s.Machine]
		if !ok {
			return nil, fmt.Errorf("problem: setup %s->%s references unknown machine %q", s.From, s.To, s.Machine)
		}
		p.Setups = append(p.Setups, model.SetupTimeEntry{
			FromType:    s.From,
			ToType:      s.To,
			MachineID:   id,
			DurationMin: s.Minutes,
		})
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
