package logger

import (
	"bytes"
	"os"
	"testing"
)

// capture redirects stdout for the duration of fn so test output stays clean.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestLevels_NoPanic(t *testing.T) {
	out := capture(t, func() {
		Info("SOLVE", "message")
		Success("SOLVE", "message")
		Warn("SOLVE", "message")
		Error("SOLVE", "message")
	})
	if out == "" {
		t.Error("expected output from level helpers, got none")
	}
}

func TestBanner_NoPanic(t *testing.T) {
	capture(t, func() {
		Banner("v1.0.0")
		Banner("") // empty version falls back to "dev"
	})
}

func TestSectionAndStats_NoPanic(t *testing.T) {
	out := capture(t, func() {
		Section("Results")
		Stats("makespan", 42)
	})
	if out == "" {
		t.Error("expected output from Section/Stats, got none")
	}
}
