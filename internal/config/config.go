package config

import (
	"fmt"
	"runtime"
	"time"
)

// Objective selects what the solver minimizes.
type Objective string

const (
	ObjectiveMakespan  Objective = "makespan"
	ObjectiveTardiness Objective = "tardiness" // priority-weighted lateness vs. due dates
)

// Rounding is the policy for quantizing minute durations into slots.
// RoundUp is the safe default: a task never gets less time than it needs.
type Rounding string

const (
	RoundUp  Rounding = "up"
	Truncate Rounding = "truncate"
)

// Family names one constraint family that can be toggled for diagnostic runs.
type Family string

const (
	FamilyPrecedence Family = "precedence"
	FamilyCapacity   Family = "capacity"
	FamilySetup      Family = "setup"
	FamilyCalendar   Family = "calendar"
)

// AllFamilies lists every constraint family in generation order.
var AllFamilies = []Family{FamilyPrecedence, FamilyCapacity, FamilySetup, FamilyCalendar}

// Config holds the solve configuration surface (in-memory representation).
// Persistence of problems and results is handled by internal/store.
type Config struct {
	TimeLimit    time.Duration // wall-clock budget for one solve
	Workers      int           // 0 = derive from available cores
	Objective    Objective
	SlotMinutes  int      // quantization granularity, minutes per slot
	Rounding     Rounding // sub-slot rounding policy
	SafetyMargin float64  // horizon inflation factor, > 1
	Horizon      int      // explicit horizon in slots; 0 = estimate per solve

	// Disabled lists constraint families to leave out of the model.
	// Empty means all families are active; only diagnostic runs set this.
	Disabled []Family
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		TimeLimit:    30 * time.Second,
		Workers:      0,
		Objective:    ObjectiveMakespan,
		SlotMinutes:  15,
		Rounding:     RoundUp,
		SafetyMargin: 1.2,
	}
}

// EffectiveWorkers resolves the worker count: an explicit positive value wins,
// otherwise 75% of available cores, never less than one.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := runtime.NumCPU() * 3 / 4
	if n < 1 {
		n = 1
	}
	return n
}

// FamilyEnabled reports whether a constraint family participates in the model.
func (c *Config) FamilyEnabled(f Family) bool {
	for _, d := range c.Disabled {
		if d == f {
			return false
		}
	}
	return true
}

// WithDisabled returns a copy of the config with one more family disabled.
// The receiver is not modified; diagnostic runs derive fresh configs per attempt.
func (c *Config) WithDisabled(f Family) *Config {
	out := *c
	out.Disabled = append(append([]Family(nil), c.Disabled...), f)
	return &out
}

// Validate rejects configs that would misbehave downstream.
func (c *Config) Validate() error {
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("config: slot minutes must be positive, got %d", c.SlotMinutes)
	}
	if c.SafetyMargin < 1 {
		return fmt.Errorf("config: safety margin must be >= 1, got %v", c.SafetyMargin)
	}
	switch c.Objective {
	case ObjectiveMakespan, ObjectiveTardiness:
	default:
		return fmt.Errorf("config: unknown objective %q", c.Objective)
	}
	switch c.Rounding {
	case RoundUp, Truncate:
	default:
		return fmt.Errorf("config: unknown rounding policy %q", c.Rounding)
	}
	return nil
}
