package model

// ComputeMetrics derives the cached aggregate metrics for a template from
// scratch. It is a pure function of the template's tasks, modes and
// precedences; callers replace t.Metrics wholesale whenever any of those
// change; the cache is never patched incrementally.
func ComputeMetrics(t *JobTemplate) TemplateMetrics {
	m := TemplateMetrics{TaskCount: len(t.Tasks)}

	// Cheapest mode per task.
	minDur := make(map[int64]int, len(t.Tasks))
	for _, task := range t.Tasks {
		minDur[task.ID] = -1
	}
	for _, mode := range t.Modes {
		if d, ok := minDur[mode.TaskID]; ok && (d < 0 || mode.DurationMin < d) {
			minDur[mode.TaskID] = mode.DurationMin
		}
	}
	for _, d := range minDur {
		if d > 0 {
			m.TotalMinMinutes += d
		}
	}

	m.CriticalPathMin = criticalPathMinutes(t, minDur)
	return m
}

// criticalPathMinutes returns the longest chain through the precedence DAG
// using each task's cheapest mode plus edge lags. Returns the plain duration
// sum when the graph is cyclic; cycle rejection happens in Validate, not here.
func criticalPathMinutes(t *JobTemplate, minDur map[int64]int) int {
	succs := make(map[int64][]TemplatePrecedence, len(t.Tasks))
	indeg := make(map[int64]int, len(t.Tasks))
	for _, task := range t.Tasks {
		indeg[task.ID] = 0
	}
	for _, p := range t.Precedences {
		if _, ok := indeg[p.PredID]; !ok {
			continue
		}
		if _, ok := indeg[p.SuccID]; !ok {
			continue
		}
		succs[p.PredID] = append(succs[p.PredID], p)
		indeg[p.SuccID]++
	}

	// Kahn topological order with a longest-finish relaxation.
	finish := make(map[int64]int, len(t.Tasks))
	queue := make([]int64, 0, len(t.Tasks))
	for _, task := range t.Tasks {
		if indeg[task.ID] == 0 {
			queue = append(queue, task.ID)
			finish[task.ID] = dur(minDur, task.ID)
		}
	}
	seen := 0
	longest := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		seen++
		if finish[id] > longest {
			longest = finish[id]
		}
		for _, p := range succs[id] {
			cand := finish[id] + p.LagMin + dur(minDur, p.SuccID)
			if cand > finish[p.SuccID] {
				finish[p.SuccID] = cand
			}
			indeg[p.SuccID]--
			if indeg[p.SuccID] == 0 {
				queue = append(queue, p.SuccID)
			}
		}
	}
	if seen != len(t.Tasks) {
		// Cyclic: fall back to total work so the figure is still an upper-ish
		// signal; Validate rejects the template before any solve.
		total := 0
		for _, d := range minDur {
			if d > 0 {
				total += d
			}
		}
		return total
	}
	return longest
}

func dur(minDur map[int64]int, id int64) int {
	if d := minDur[id]; d > 0 {
		return d
	}
	return 0
}
