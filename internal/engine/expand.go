package engine

import (
	"fmt"
	"sort"

	"millwright/internal/dag"
	"millwright/internal/model"
)

// Expand turns one template plus N instance records into a flat concrete
// task graph. Cost is O(template_size x instance_count): mode and flag data
// lives once in shared TaskDefs, only the thin Task and Edge records are
// materialized per instance. The template's precedence relation is verified
// acyclic before any task is created; a cycle is rejected with
// InvalidTemplateError.
func Expand(prob *model.Problem) (*TaskGraph, error) {
	tpl := &prob.Template

	// Stable task order: by declared position.
	tasks := append([]model.TemplateTask(nil), tpl.Tasks...)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Position < tasks[j].Position })

	defIdx := make(map[int64]int, len(tasks))
	defs := make([]TaskDef, 0, len(tasks))
	for _, tt := range tasks {
		def := TaskDef{
			TemplateTaskID: tt.ID,
			Name:           tt.Name,
			Type:           tt.Type,
			Unattended:     tt.Unattended,
			SetupOnly:      tt.SetupOnly,
		}
		for _, m := range tpl.ModesForTask(tt.ID) {
			def.Modes = append(def.Modes, Mode{ID: m.ID, MachineID: m.MachineID, Duration: m.DurationMin, Name: m.Name})
		}
		defIdx[tt.ID] = len(defs)
		defs = append(defs, def)
	}

	if err := checkAcyclic(tpl, defIdx, len(defs)); err != nil {
		return nil, err
	}

	g := &TaskGraph{Defs: defs}
	for _, inst := range prob.Instances {
		base := len(g.Tasks)
		due := -1
		if !inst.Due.IsZero() && !prob.Start.IsZero() {
			due = int(inst.Due.Sub(prob.Start).Minutes())
			if due < 0 {
				due = 0
			}
		}
		for di := range defs {
			g.Tasks = append(g.Tasks, Task{
				Index:      base + di,
				InstanceID: inst.ID,
				Def:        di,
				Due:        due,
				Priority:   inst.Priority,
			})
		}
		// Direct precedences only, re-anchored per instance. No transitive
		// closure: constraint count stays O(edges x instances).
		for _, p := range tpl.Precedences {
			g.Edges = append(g.Edges, Edge{
				Pred: base + defIdx[p.PredID],
				Succ: base + defIdx[p.SuccID],
				Lag:  p.LagMin,
			})
		}
	}
	return g, nil
}

// checkAcyclic runs a depth-first traversal over the template precedence
// graph and rejects cycles with a readable task-id path.
func checkAcyclic(tpl *model.JobTemplate, defIdx map[int64]int, n int) error {
	pg := dag.New(n)
	for _, p := range tpl.Precedences {
		pi, ok1 := defIdx[p.PredID]
		si, ok2 := defIdx[p.SuccID]
		if !ok1 || !ok2 {
			return &model.InvalidTemplateError{
				TemplateID: tpl.ID,
				Reason:     fmt.Sprintf("precedence %d->%d references unknown task", p.PredID, p.SuccID),
			}
		}
		pg.AddEdge(pi, si, 0)
	}
	if cycle := pg.FindCycle(); cycle != nil {
		byIdx := make([]int64, n)
		for id, idx := range defIdx {
			byIdx[idx] = id
		}
		ids := make([]int64, 0, len(cycle))
		for _, c := range cycle {
			ids = append(ids, byIdx[c])
		}
		return &model.InvalidTemplateError{
			TemplateID: tpl.ID,
			Reason:     fmt.Sprintf("precedence graph contains a cycle through tasks %v", ids),
		}
	}
	return nil
}
