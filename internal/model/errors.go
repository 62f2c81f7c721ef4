package model

import "fmt"

// InvalidTemplateError reports a structurally broken template: cyclic
// precedence, dangling references, duplicate positions or mode names.
// Detected before solving and surfaced immediately, never silently corrected.
type InvalidTemplateError struct {
	TemplateID int64
	Reason     string
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid template %d: %s", e.TemplateID, e.Reason)
}

// InvalidDurationError reports a mode whose duration is non-positive or
// rounds to zero slots under the active quantization policy. The task is
// rejected rather than assigned a minimum duration; callers decide the
// correction policy.
type InvalidDurationError struct {
	TaskID   int64
	ModeName string
	Minutes  int
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration on task %d mode %q: %d min rounds to zero slots", e.TaskID, e.ModeName, e.Minutes)
}

// InfeasibleError marks a solve that proved no timetable exists. The
// orchestrator attaches a diagnostic report alongside it; the error itself
// carries only the headline reason.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	return "infeasible: " + e.Reason
}
