package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"millwright/internal/engine"
	"millwright/internal/model"
)

// RunRecord is one persisted solve outcome. Infeasible and unknown runs are
// recorded too, with zero makespan and no assignment rows.
type RunRecord struct {
	ID            string
	CreatedAt     time.Time
	TemplateID    int64
	Status        string
	ObjectiveKind string
	Objective     int
	Makespan      int
	Horizon       int
	SlotMinutes   int
	Workers       int
	Nodes         int64
	Backtracks    int64
	Wall          time.Duration
}

// Run is a record together with its schedule rows.
type Run struct {
	RunRecord
	Assignments []model.InstanceTaskAssignment
	Machines    []MachineStatRow
}

// MachineStatRow is a persisted per-machine KPI.
type MachineStatRow struct {
	MachineID   int64
	Name        string
	BusySlots   int
	Utilization float64
}

// SaveRun persists one solve outcome atomically and returns the new run id.
func (s *Store) SaveRun(templateID int64, out *engine.Outcome) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.sql.Begin()
	if err != nil {
		return "", fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback()

	objective, makespan, slotMinutes := 0, 0, 0
	objectiveKind := ""
	if out.Schedule != nil {
		objective = out.Schedule.Objective
		makespan = out.Schedule.Makespan
		slotMinutes = out.Schedule.SlotMinutes
		objectiveKind = string(out.Schedule.ObjectiveKind)
	}

	if _, err := tx.Exec(`INSERT INTO solve_runs (
		id, created_at, template_id, status, objective_kind, objective,
		makespan, horizon, slot_minutes, workers, nodes, backtracks, wall_ms
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, now, templateID, out.Status.String(), objectiveKind, objective,
		makespan, out.Horizon, slotMinutes, out.Workers,
		out.Stats.Nodes, out.Stats.Backtracks, out.Stats.Wall.Milliseconds(),
	); err != nil {
		return "", fmt.Errorf("save run: insert run: %w", err)
	}

	if out.Schedule != nil {
		stmt, err := tx.Prepare(`INSERT INTO assignments (
			run_id, instance_id, task_id, mode_id, machine_id, start_slot, end_slot
		) VALUES (?,?,?,?,?,?,?)`)
		if err != nil {
			return "", fmt.Errorf("save run: prepare assignments: %w", err)
		}
		for _, a := range out.Schedule.Assignments {
			if _, err := stmt.Exec(id, a.InstanceID, a.TaskID, a.ModeID, a.MachineID, a.Start, a.End); err != nil {
				stmt.Close()
				return "", fmt.Errorf("save run: assignment instance %d task %d: %w", a.InstanceID, a.TaskID, err)
			}
		}
		stmt.Close()

		for _, m := range out.Schedule.Machines {
			if _, err := tx.Exec(`INSERT INTO machine_stats (run_id, machine_id, name, busy_slots, utilization) VALUES (?,?,?,?,?)`,
				id, m.MachineID, m.Name, m.BusySlots, m.Utilization); err != nil {
				return "", fmt.Errorf("save run: machine stat %d: %w", m.MachineID, err)
			}
		}

		// Committing assignments moves the covered instances to scheduled.
		seen := make(map[int64]bool)
		for _, a := range out.Schedule.Assignments {
			if seen[a.InstanceID] {
				continue
			}
			seen[a.InstanceID] = true
			if _, err := tx.Exec(`UPDATE instances SET status = ? WHERE id = ? AND status = ?`,
				string(model.StatusScheduled), a.InstanceID, string(model.StatusPending)); err != nil {
				return "", fmt.Errorf("save run: mark instance %d scheduled: %w", a.InstanceID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save run: commit: %w", err)
	}
	return id, nil
}

// GetRun loads one run with its assignments and machine stats, or nil when
// the id is unknown.
func (s *Store) GetRun(id string) (*Run, error) {
	var r Run
	var created string
	var wallMS int64
	err := s.sql.QueryRow(`SELECT id, created_at, template_id, status, objective_kind, objective,
		makespan, horizon, slot_minutes, workers, nodes, backtracks, wall_ms
		FROM solve_runs WHERE id = ?`, id).Scan(
		&r.ID, &created, &r.TemplateID, &r.Status, &r.ObjectiveKind, &r.Objective,
		&r.Makespan, &r.Horizon, &r.SlotMinutes, &r.Workers, &r.Nodes, &r.Backtracks, &wallMS,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, created)
	r.Wall = time.Duration(wallMS) * time.Millisecond

	rows, err := s.sql.Query(`SELECT instance_id, task_id, mode_id, machine_id, start_slot, end_slot
		FROM assignments WHERE run_id = ? ORDER BY start_slot, instance_id, task_id`, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: assignments: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var a model.InstanceTaskAssignment
		if err := rows.Scan(&a.InstanceID, &a.TaskID, &a.ModeID, &a.MachineID, &a.Start, &a.End); err != nil {
			return nil, fmt.Errorf("get run %s: scan assignment: %w", id, err)
		}
		r.Assignments = append(r.Assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get run %s: assignments: %w", id, err)
	}

	stats, err := s.sql.Query(`SELECT machine_id, name, busy_slots, utilization
		FROM machine_stats WHERE run_id = ? ORDER BY machine_id`, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: machine stats: %w", id, err)
	}
	defer stats.Close()
	for stats.Next() {
		var m MachineStatRow
		if err := stats.Scan(&m.MachineID, &m.Name, &m.BusySlots, &m.Utilization); err != nil {
			return nil, fmt.Errorf("get run %s: scan machine stat: %w", id, err)
		}
		r.Machines = append(r.Machines, m)
	}
	return &r, stats.Err()
}

// ListRuns returns the most recent run records, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.sql.Query(`SELECT id, created_at, template_id, status, objective_kind, objective,
		makespan, horizon, slot_minutes, workers, nodes, backtracks, wall_ms
		FROM solve_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var created string
		var wallMS int64
		if err := rows.Scan(&r.ID, &created, &r.TemplateID, &r.Status, &r.ObjectiveKind, &r.Objective,
			&r.Makespan, &r.Horizon, &r.SlotMinutes, &r.Workers, &r.Nodes, &r.Backtracks, &wallMS); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		r.Wall = time.Duration(wallMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
