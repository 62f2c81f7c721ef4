package store

import (
	"database/sql"
	"fmt"
	"time"

	"millwright/internal/model"
)

// SaveProblem writes a problem definition in one transaction, replacing any
// previous rows for the same template id. Runs referencing the template are
// kept; they carry their own copy of the schedule.
func (s *Store) SaveProblem(p *model.Problem) error {
	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("save problem: begin tx: %w", err)
	}
	defer tx.Rollback()

	t := &p.Template
	if _, err := tx.Exec(`DELETE FROM templates WHERE id = ?`, t.ID); err != nil {
		return fmt.Errorf("save problem: clear template %d: %w", t.ID, err)
	}
	if _, err := tx.Exec(`INSERT INTO templates (id, name, task_count, total_min_minutes, critical_path_min) VALUES (?,?,?,?,?)`,
		t.ID, t.Name, t.Metrics.TaskCount, t.Metrics.TotalMinMinutes, t.Metrics.CriticalPathMin); err != nil {
		return fmt.Errorf("save problem: template %d: %w", t.ID, err)
	}

	for _, task := range t.Tasks {
		if _, err := tx.Exec(`INSERT INTO template_tasks (id, template_id, name, position, type, department, unattended, setup_only) VALUES (?,?,?,?,?,?,?,?)`,
			task.ID, t.ID, task.Name, task.Position, task.Type, task.Department, task.Unattended, task.SetupOnly); err != nil {
			return fmt.Errorf("save problem: task %d: %w", task.ID, err)
		}
	}
	for _, mode := range t.Modes {
		if _, err := tx.Exec(`INSERT INTO task_modes (id, task_id, machine_id, duration_min, name) VALUES (?,?,?,?,?)`,
			mode.ID, mode.TaskID, mode.MachineID, mode.DurationMin, mode.Name); err != nil {
			return fmt.Errorf("save problem: mode %d: %w", mode.ID, err)
		}
	}
	for _, prec := range t.Precedences {
		if _, err := tx.Exec(`INSERT INTO precedences (template_id, pred_id, succ_id, lag_min) VALUES (?,?,?,?)`,
			t.ID, prec.PredID, prec.SuccID, prec.LagMin); err != nil {
			return fmt.Errorf("save problem: precedence %d->%d: %w", prec.PredID, prec.SuccID, err)
		}
	}

	for _, m := range p.Machines {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO machines (id, name, capacity) VALUES (?,?,?)`,
			m.ID, m.Name, m.Capacity); err != nil {
			return fmt.Errorf("save problem: machine %d: %w", m.ID, err)
		}
		if _, err := tx.Exec(`DELETE FROM machine_downtime WHERE machine_id = ?`, m.ID); err != nil {
			return fmt.Errorf("save problem: clear downtime %d: %w", m.ID, err)
		}
		for _, w := range m.Downtime {
			if _, err := tx.Exec(`INSERT INTO machine_downtime (machine_id, start_min, end_min) VALUES (?,?,?)`,
				m.ID, w.Start, w.End); err != nil {
				return fmt.Errorf("save problem: downtime %d: %w", m.ID, err)
			}
		}
	}

	for _, entry := range p.Setups {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO setup_times (machine_id, from_type, to_type, duration_min) VALUES (?,?,?,?)`,
			entry.MachineID, entry.FromType, entry.ToType, entry.DurationMin); err != nil {
			return fmt.Errorf("save problem: setup %s->%s: %w", entry.FromType, entry.ToType, err)
		}
	}

	for _, inst := range p.Instances {
		var due any
		if !inst.Due.IsZero() {
			due = inst.Due.UTC().Format(time.RFC3339)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO instances (id, template_id, due, priority, status) VALUES (?,?,?,?,?)`,
			inst.ID, inst.TemplateID, due, inst.Priority, string(inst.Status)); err != nil {
			return fmt.Errorf("save problem: instance %d: %w", inst.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save problem: commit: %w", err)
	}
	return nil
}

// LoadProblem reconstructs a validated problem for one template id, or nil
// when the template is unknown. Machines and setup entries are global; only
// instances and template rows are filtered by template.
func (s *Store) LoadProblem(templateID int64) (*model.Problem, error) {
	p := &model.Problem{}
	t := &p.Template

	err := s.sql.QueryRow(`SELECT id, name, task_count, total_min_minutes, critical_path_min FROM templates WHERE id = ?`, templateID).
		Scan(&t.ID, &t.Name, &t.Metrics.TaskCount, &t.Metrics.TotalMinMinutes, &t.Metrics.CriticalPathMin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load problem %d: template: %w", templateID, err)
	}

	rows, err := s.sql.Query(`SELECT id, name, position, type, department, unattended, setup_only
		FROM template_tasks WHERE template_id = ? ORDER BY position`, templateID)
	if err != nil {
		return nil, fmt.Errorf("load problem %d: tasks: %w", templateID, err)
	}
	for rows.Next() {
		task := model.TemplateTask{TemplateID: templateID}
		if err := rows.Scan(&task.ID, &task.Name, &task.Position, &task.Type, &task.Department, &task.Unattended, &task.SetupOnly); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load problem %d: scan task: %w", templateID, err)
		}
		t.Tasks = append(t.Tasks, task)
	}
	rows.Close()

	rows, err = s.sql.Query(`SELECT m.id, m.task_id, m.machine_id, m.duration_min, m.name
		FROM task_modes m JOIN template_tasks tt ON tt.id = m.task_id
		WHERE tt.template_id = ? ORDER BY m.id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("load problem %d: modes: %w", templateID, err)
	}
	for rows.Next() {
		var mode model.TemplateTaskMode
		if err := rows.Scan(&mode.ID, &mode.TaskID, &mode.MachineID, &mode.DurationMin, &mode.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load problem %d: scan mode: %w", templateID, err)
		}
		t.Modes = append(t.Modes, mode)
	}
	rows.Close()

	rows, err = s.sql.Query(`SELECT pred_id, succ_id, lag_min FROM precedences WHERE template_id = ? ORDER BY pred_id, succ_id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("load problem %d: precedences: %w", templateID, err)
	}
	for rows.Next() {
		var prec model.TemplatePrecedence
		if err := rows.Scan(&prec.PredID, &prec.SuccID, &prec.LagMin); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load problem %d: scan precedence: %w", templateID, err)
		}
		t.Precedences = append(t.Precedences, prec)
	}
	rows.Close()

	rows, err = s.sql.Query(`SELECT id, name, capacity FROM machines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load problem %d: machines: %w", templateID, err)
	}
	for rows.Next() {
		var m model.Machine
		if err := rows.Scan(&m.ID, &m.Name, &m.Capacity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load problem %d: scan machine: %w", templateID, err)
		}
		p.Machines = append(p.Machines, m)
	}
	rows.Close()

	rows, err = s.sql.Query(`SELECT machine_id, start_min, end_min FROM machine_downtime ORDER BY machine_id, start_min`)
	if err != nil {
		return nil, fmt.Errorf("load problem %d: downtime: %w", templateID, err)
	}
	for rows.Next() {
		var machID int64
		var w model.Window
		if err := rows.Scan(&machID, &w.Start, &w.End); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load problem %d: scan downtime: %w", templateID, err)
		}
		if m := p.MachineByID(machID); m != nil {
			m.Downtime = append(m.Downtime, w)
		}
	}
	rows.Close()

	rows, err = s.sql.Query(`SELECT machine_id, from_type, to_type, duration_min FROM setup_times ORDER BY machine_id, from_type, to_type`)
	if err != nil {
		return nil, fmt.Errorf("load problem %d: setups: %w", templateID, err)
	}
	for rows.Next() {
		var entry model.SetupTimeEntry
		if err := rows.Scan(&entry.MachineID, &entry.FromType, &entry.ToType, &entry.DurationMin); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load problem %d: scan setup: %w", templateID, err)
		}
		p.Setups = append(p.Setups, entry)
	}
	rows.Close()

	rows, err = s.sql.Query(`SELECT id, due, priority, status FROM instances WHERE template_id = ? ORDER BY id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("load problem %d: instances: %w", templateID, err)
	}
	for rows.Next() {
		inst := model.JobInstance{TemplateID: templateID}
		var due sql.NullString
		var status string
		if err := rows.Scan(&inst.ID, &due, &inst.Priority, &status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load problem %d: scan instance: %w", templateID, err)
		}
		if due.Valid {
			inst.Due, _ = time.Parse(time.RFC3339, due.String)
		}
		inst.Status = model.InstanceStatus(status)
		p.Instances = append(p.Instances, inst)
	}
	rows.Close()

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("load problem %d: %w", templateID, err)
	}
	return p, nil
}
