package deck

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWrite_SectionOrder(t *testing.T) {
	d := New()
	d.EnableTabular("results.dat")
	d.Method = []string{"conmin_frcg"}
	d.Variables = []string{"continuous_design = 2"}
	d.Responses = []string{"objective_functions = 1"}
	d.SetFork("driver.sh")

	var sb strings.Builder
	if err := d.Write(&sb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := sb.String()

	order := []string{"environment", "method", "model", "variables", "responses", "interface"}
	last := -1
	for _, sec := range order {
		idx := strings.Index(out, sec+"\n")
		if idx < 0 {
			t.Fatalf("Section %s missing from output:\n%s", sec, out)
		}
		if idx < last {
			t.Errorf("Section %s out of order", sec)
		}
		last = idx
	}
}

func TestWrite_SkipsEmptySections(t *testing.T) {
	d := New()
	d.Method = []string{"sampling"}

	var sb strings.Builder
	if err := d.Write(&sb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := sb.String()

	if strings.Contains(out, "environment") {
		t.Error("Empty environment section should be skipped")
	}
	if strings.Contains(out, "interface") {
		t.Error("Empty interface section should be skipped")
	}
	if !strings.Contains(out, "method\n    sampling\n") {
		t.Errorf("Method section malformed:\n%s", out)
	}
}

func TestWrite_Indentation(t *testing.T) {
	d := New()
	d.Variables = []string{
		"continuous_design = 2",
		"    lower_bounds  -10 -10",
	}

	var sb strings.Builder
	if err := d.Write(&sb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	lines := strings.Split(sb.String(), "\n")
	var found bool
	for i, line := range lines {
		if line == "variables" {
			if lines[i+1] != "    continuous_design = 2" {
				t.Errorf("Content line not indented: %q", lines[i+1])
			}
			if lines[i+2] != "        lower_bounds  -10 -10" {
				t.Errorf("Nested line lost its extra indentation: %q", lines[i+2])
			}
			found = true
		}
	}
	if !found {
		t.Fatal("variables section not written")
	}
}

func TestEnableTabular(t *testing.T) {
	d := New()
	d.EnableTabular("dakota_tabular.dat")

	var sb strings.Builder
	if err := d.Write(&sb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := sb.String()

	if !strings.Contains(out, "tabular_data") {
		t.Error("tabular_data keyword missing")
	}
	if !strings.Contains(out, "tabular_data_file = 'dakota_tabular.dat'") {
		t.Errorf("Tabular file not quoted correctly:\n%s", out)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dakota.in")

	d := New()
	d.Method = []string{"multidim_parameter_study", "    partitions = 4 4"}
	if err := d.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written deck: %v", err)
	}
	if !strings.Contains(string(data), "partitions = 4 4") {
		t.Errorf("Written deck missing content:\n%s", data)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not exist after write")
	}
}

func TestFormattingHelpers(t *testing.T) {
	if got := Quote("x1"); got != "'x1'" {
		t.Errorf("Quote: expected 'x1', got %s", got)
	}
	if got := strings.Join(QuoteAll([]string{"a", "b"}), " "); got != "'a' 'b'" {
		t.Errorf("QuoteAll: got %s", got)
	}
	if got := Floats([]float64{-1.5, 0, 2e-7}); got != "-1.5 0 2e-07" {
		t.Errorf("Floats: got %s", got)
	}
	if got := Ints([]int{4, 8}); got != "4 8" {
		t.Errorf("Ints: got %s", got)
	}
}
