package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"millwright/internal/config"
	"millwright/internal/engine"
	"millwright/internal/logger"
	"millwright/internal/model"
	"millwright/internal/problem"
	"millwright/internal/store"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	problemPath := flag.String("problem", "", "path to the problem definition YAML")
	dbPath := flag.String("db", "millwright.db", "path to the SQLite database")
	timeLimit := flag.Duration("time-limit", 30*time.Second, "wall-clock budget for the solve")
	workers := flag.Int("workers", 0, "parallel solver workers (0 = derive from cores)")
	objective := flag.String("objective", "makespan", "objective to minimize: makespan or tardiness")
	slotMinutes := flag.Int("slot-minutes", 15, "time quantization granularity in minutes")
	horizon := flag.Int("horizon", 0, "scheduling horizon in slots (0 = estimate)")
	diagnose := flag.Bool("diagnose", false, "run infeasibility diagnosis even on a solved problem")
	noStore := flag.Bool("no-store", false, "skip persisting the problem and the run")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return 0
	}

	logger.Banner(version)

	if *problemPath == "" {
		logger.Error("CLI", "no problem file given; use -problem file.yaml")
		return 2
	}

	cfg := config.Default()
	cfg.TimeLimit = *timeLimit
	cfg.Workers = *workers
	cfg.Objective = config.Objective(*objective)
	cfg.SlotMinutes = *slotMinutes
	cfg.Horizon = *horizon
	if err := cfg.Validate(); err != nil {
		logger.Error("CLI", err.Error())
		return 2
	}

	prob, err := problem.LoadFile(*problemPath)
	if err != nil {
		logger.Error("LOAD", err.Error())
		return 2
	}
	logger.Info("LOAD", fmt.Sprintf("Template %q: %d tasks, %d instances, %d machines",
		prob.Template.Name, len(prob.Template.Tasks), len(prob.Instances), len(prob.Machines)))

	var db *store.Store
	if !*noStore {
		db, err = store.Open(*dbPath)
		if err != nil {
			logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
			return 2
		}
		defer db.Close()
		if err := db.SaveProblem(prob); err != nil {
			logger.Error("DB", err.Error())
			return 2
		}
	}

	orch := engine.NewOrchestrator(cfg)
	out, err := orch.Solve(context.Background(), prob)
	if err != nil {
		logger.Error("SOLVE", err.Error())
		return 2
	}

	printOutcome(out, cfg)

	if db != nil {
		id, err := db.SaveRun(prob.Template.ID, out)
		if err != nil {
			logger.Error("DB", err.Error())
			return 2
		}
		logger.Success("DB", fmt.Sprintf("Saved run %s", id))
	}

	if out.Status == engine.StatusInfeasible || *diagnose {
		if err := runDiagnosis(prob, cfg); err != nil {
			logger.Error("DIAG", err.Error())
			return 2
		}
	}

	switch out.Status {
	case engine.StatusOptimal, engine.StatusFeasible:
		return 0
	default:
		return 1
	}
}

func printOutcome(out *engine.Outcome, cfg *config.Config) {
	logger.Section("Solve")
	logger.Stats("Status", out.Status.String())
	logger.Stats("Horizon", fmt.Sprintf("%d slots (%s)", out.Horizon, slotsToClock(out.Horizon, cfg.SlotMinutes)))
	logger.Stats("Workers", out.Workers)
	logger.Stats("Nodes", out.Stats.Nodes)
	logger.Stats("Backtracks", out.Stats.Backtracks)
	logger.Stats("Wall", out.Stats.Wall.Round(time.Millisecond))

	sched := out.Schedule
	if sched == nil {
		return
	}

	logger.Section("Schedule")
	logger.Stats("Objective", fmt.Sprintf("%s = %d", sched.ObjectiveKind, sched.Objective))
	logger.Stats("Makespan", fmt.Sprintf("%d slots (%s)", sched.Makespan, slotsToClock(sched.Makespan, sched.SlotMinutes)))
	for _, a := range sched.Assignments {
		fmt.Printf("  instance %-4d task %-4d machine %-3d [%4d, %4d)\n",
			a.InstanceID, a.TaskID, a.MachineID, a.Start, a.End)
	}

	logger.Section("Machines")
	for _, m := range sched.Machines {
		logger.Stats(m.Name, fmt.Sprintf("busy %d slots, utilization %.1f%%", m.BusySlots, m.Utilization*100))
	}

	critical := 0
	for _, s := range sched.Slack {
		if s.Slack == 0 {
			critical++
		}
	}
	logger.Stats("Critical tasks", fmt.Sprintf("%d of %d", critical, len(sched.Slack)))
}

func runDiagnosis(prob *model.Problem, cfg *config.Config) error {
	logger.Section("Diagnosis")
	rep, err := engine.NewDiagnoser(prob, cfg).Run(context.Background())
	if err != nil {
		return err
	}
	for _, issue := range rep.SanityIssues {
		logger.Warn("DIAG", issue)
	}
	if len(rep.ConflictingFamilies) > 0 {
		logger.Stats("Conflicting families", fmt.Sprintf("%v", rep.ConflictingFamilies))
	}
	if rep.MinFeasibleHorizon >= 0 {
		logger.Stats("Min feasible horizon", fmt.Sprintf("%d slots (%s)",
			rep.MinFeasibleHorizon, slotsToClock(rep.MinFeasibleHorizon, cfg.SlotMinutes)))
	}
	for _, c := range rep.MinimalSubset {
		logger.Info("DIAG", "conflict: "+c)
	}
	return nil
}

// slotsToClock renders a slot count as hours and minutes.
func slotsToClock(slots, slotMinutes int) string {
	min := slots * slotMinutes
	return fmt.Sprintf("%dh%02dm", min/60, min%60)
}
