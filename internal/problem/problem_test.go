package problem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
template:
  id: 1
  name: gear-housing
  tasks:
    - id: 10
      name: cut
      position: 1
      type: cutting
      modes:
        - machine: saw
          minutes: 30
          name: standard
        - machine: laser
          minutes: 20
          name: fast
    - id: 11
      name: mill
      position: 2
      type: milling
      modes:
        - machine: mill-a
          minutes: 45
          name: standard
  precedences:
    - before: 10
      after: 11
      lag_minutes: 15
instances:
  - id: 100
    priority: 2
  - id: 101
    priority: 1
machines:
  - name: saw
    capacity: 1
  - name: laser
    capacity: 1
    downtime:
      - start_minutes: 60
        end_minutes: 120
  - name: mill-a
    capacity: 2
setup_times:
  - from: cutting
    to: milling
    machine: mill-a
    minutes: 10
`

func TestParseYAMLAndConvert(t *testing.T) {
	def, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	prob, err := def.Convert()
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if got := len(prob.Template.Tasks); got != 2 {
		t.Errorf("len(Tasks) = %d, want 2", got)
	}
	if got := len(prob.Template.Modes); got != 3 {
		t.Errorf("len(Modes) = %d, want 3", got)
	}
	if got := len(prob.Instances); got != 2 {
		t.Errorf("len(Instances) = %d, want 2", got)
	}
	if got := len(prob.Machines); got != 3 {
		t.Errorf("len(Machines) = %d, want 3", got)
	}

	// Machine names resolve to ids in declaration order.
	laser := prob.MachineByID(2)
	if laser == nil || laser.Name != "laser" {
		t.Fatalf("MachineByID(2) = %+v, want laser", laser)
	}
	if len(laser.Downtime) != 1 || laser.Downtime[0].Start != 60 || laser.Downtime[0].End != 120 {
		t.Errorf("laser downtime = %+v, want [{60 120}]", laser.Downtime)
	}

	fast := prob.Template.Modes[1]
	if fast.MachineID != 2 || fast.DurationMin != 20 {
		t.Errorf("fast mode = %+v, want machine 2 duration 20", fast)
	}

	if len(prob.Setups) != 1 || prob.Setups[0].MachineID != 3 {
		t.Errorf("setups = %+v, want one entry on machine 3", prob.Setups)
	}

	// Derived metrics are populated on conversion.
	if prob.Template.Metrics.TaskCount != 2 {
		t.Errorf("Metrics.TaskCount = %d, want 2", prob.Template.Metrics.TaskCount)
	}
	if prob.Template.Metrics.CriticalPathMin != 20+15+45 {
		t.Errorf("Metrics.CriticalPathMin = %d, want 80", prob.Template.Metrics.CriticalPathMin)
	}
}

func TestParseYAML_Empty(t *testing.T) {
	if _, err := ParseYAML([]byte("  \n\t")); err == nil {
		t.Error("ParseYAML(blank) error = nil, want error")
	}
}

func TestConvert_UnknownMachine(t *testing.T) {
	bad := strings.Replace(sampleYAML, "machine: laser\n          minutes: 20", "machine: ghost\n          minutes: 20", 1)
	def, err := ParseYAML([]byte(bad))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	if _, err := def.Convert(); err == nil || !strings.Contains(err.Error(), "unknown machine") {
		t.Errorf("Convert() error = %v, want unknown machine", err)
	}
}

func TestConvert_DuplicateMachineName(t *testing.T) {
	bad := strings.Replace(sampleYAML, "- name: laser", "- name: saw", 1)
	def, err := ParseYAML([]byte(bad))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	if _, err := def.Convert(); err == nil || !strings.Contains(err.Error(), "duplicate machine") {
		t.Errorf("Convert() error = %v, want duplicate machine", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "problem.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	prob, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if prob.Template.Name != "gear-housing" {
		t.Errorf("Template.Name = %q, want gear-housing", prob.Template.Name)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFile(missing) error = nil, want error")
	}
}
