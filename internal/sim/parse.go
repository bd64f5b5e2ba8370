// Package sim is a stand-in for the external optimization toolkit. It
// parses an input deck, runs the requested method against built-in test
// functions and writes the tabular iterate file, so examples and
// integration tests work on machines where the real toolkit is not
// installed. The methods are deliberately simple; this is a test
// double, not a reimplementation.
package sim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// methodKeywords are the bare method-section lines that select a method.
var methodKeywords = map[string]bool{
	"conmin_frcg":              true,
	"conmin_mfd":               true,
	"multidim_parameter_study": true,
	"vector_parameter_study":   true,
	"sampling":                 true,
}

// Variables is the parsed variables section.
type Variables struct {
	Kind        string // continuous_design or uniform_uncertain
	Descriptors []string
	Lower       []float64
	Upper       []float64
	Initial     []float64 // nil when the deck has no initial_point
}

// Input is the parsed deck, reduced to what the simulator needs.
type Input struct {
	Method         string
	Settings       map[string]string // flattened "key = value" pairs from all sections
	Variables      Variables
	NumObjectives  int
	NumConstraints int
	ResponseNames  []string // from response_descriptors, may be nil
	Tabular        bool
	TabularFile    string
}

// ParseFile reads and parses an input deck from disk.
func ParseFile(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input deck: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads an input deck. Section headers are flush left; content
// lines are indented. Lines are "key = value", "key value...", or bare
// keywords.
func Parse(r io.Reader) (*Input, error) {
	sections := make(map[string][]string)
	current := ""

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(raw, " ") && !strings.HasPrefix(raw, "\t") {
			current = line
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("content line before any section: %q", line)
		}
		sections[current] = append(sections[current], line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan input deck: %w", err)
	}

	input := &Input{Settings: make(map[string]string)}

	for _, line := range sections["environment"] {
		key, value := splitSetting(line)
		if key == "tabular_data" {
			input.Tabular = true
		}
		if key == "tabular_data_file" {
			input.Tabular = true
			input.TabularFile = unquote(value)
		}
	}

	for _, line := range sections["method"] {
		key, value := splitSetting(line)
		if methodKeywords[key] {
			input.Method = key
			continue
		}
		input.Settings[key] = value
	}
	if input.Method == "" {
		return nil, fmt.Errorf("no method keyword in method section")
	}

	if err := parseVariables(sections["variables"], &input.Variables); err != nil {
		return nil, err
	}

	for _, line := range sections["responses"] {
		key, value := splitSetting(line)
		switch key {
		case "objective_functions", "num_response_functions":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid %s count %q", key, value)
			}
			input.NumObjectives = n
		case "nonlinear_inequality_constraints":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid constraint count %q", value)
			}
			input.NumConstraints = n
		case "response_descriptors":
			for _, field := range strings.Fields(value) {
				input.ResponseNames = append(input.ResponseNames, unquote(field))
			}
		default:
			input.Settings[key] = value
		}
	}
	if input.NumObjectives == 0 {
		return nil, fmt.Errorf("responses section declares no objective functions")
	}

	return input, nil
}

// parseVariables interprets the variables section.
func parseVariables(lines []string, v *Variables) error {
	for _, line := range lines {
		key, value := splitSetting(line)
		switch key {
		case "continuous_design", "uniform_uncertain":
			v.Kind = key
		case "initial_point":
			floats, err := parseFloats(value)
			if err != nil {
				return fmt.Errorf("invalid initial_point: %w", err)
			}
			v.Initial = floats
		case "lower_bounds":
			floats, err := parseFloats(value)
			if err != nil {
				return fmt.Errorf("invalid lower_bounds: %w", err)
			}
			v.Lower = floats
		case "upper_bounds":
			floats, err := parseFloats(value)
			if err != nil {
				return fmt.Errorf("invalid upper_bounds: %w", err)
			}
			v.Upper = floats
		case "descriptors":
			for _, field := range strings.Fields(value) {
				v.Descriptors = append(v.Descriptors, unquote(field))
			}
		}
	}

	if v.Kind == "" {
		return fmt.Errorf("variables section missing variable type")
	}
	n := len(v.Descriptors)
	if n == 0 {
		return fmt.Errorf("variables section missing descriptors")
	}
	if len(v.Lower) != n || len(v.Upper) != n {
		return fmt.Errorf("bounds length does not match %d descriptors", n)
	}
	if v.Initial != nil && len(v.Initial) != n {
		return fmt.Errorf("initial_point length does not match %d descriptors", n)
	}
	return nil
}

// splitSetting breaks a deck line into key and value: "a = b c" yields
// ("a", "b c"), "a b c" yields ("a", "b c"), "a" yields ("a", "").
func splitSetting(line string) (string, string) {
	if i := strings.Index(line, "="); i >= 0 {
		return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func unquote(s string) string {
	return strings.Trim(s, "'")
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	floats := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not numeric", field)
		}
		floats[i] = v
	}
	return floats, nil
}

// intSetting reads an int from the settings map, with default.
func (in *Input) intSetting(key string, fallback int) int {
	if s, ok := in.Settings[key]; ok {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return fallback
}

// floatsSetting reads a float list from the settings map.
func (in *Input) floatsSetting(key string) ([]float64, bool) {
	s, ok := in.Settings[key]
	if !ok {
		return nil, false
	}
	floats, err := parseFloats(s)
	if err != nil {
		return nil, false
	}
	return floats, true
}
