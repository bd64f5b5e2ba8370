// Package deck builds DAKOTA input files. A deck is a fixed sequence of
// named sections, each holding pre-formatted lines; studies and the
// driver fill the sections and the deck handles layout and writing.
package deck

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Deck holds the ordered sections of a DAKOTA input file. Sections are
// written in the order environment, method, model, variables, responses,
// interface; empty sections are skipped.
type Deck struct {
	Environment []string
	Method      []string
	Model       []string
	Variables   []string
	Responses   []string
	Interface   []string
}

// New returns a baseline deck for a single-method run on a single model,
// matching the external tool's simplest configuration.
func New() *Deck {
	return &Deck{
		Model: []string{"single"},
	}
}

// EnableTabular records every evaluation to the given tabular data file.
func (d *Deck) EnableTabular(path string) {
	d.Environment = append(d.Environment,
		"tabular_data",
		fmt.Sprintf("    tabular_data_file = %s", Quote(path)),
	)
}

// SetFork configures a fork interface that shells out to the given
// analysis driver for each evaluation.
func (d *Deck) SetFork(analysisDriver string) {
	d.Interface = []string{
		"fork",
		fmt.Sprintf("    analysis_driver = %s", Quote(analysisDriver)),
	}
}

// sections returns the section names and contents in file order.
func (d *Deck) sections() []struct {
	name  string
	lines []string
} {
	return []struct {
		name  string
		lines []string
	}{
		{"environment", d.Environment},
		{"method", d.Method},
		{"model", d.Model},
		{"variables", d.Variables},
		{"responses", d.Responses},
		{"interface", d.Interface},
	}
}

// Write renders the deck. Section headers are flush left, content lines
// are indented four spaces; lines may carry additional indentation of
// their own.
func (d *Deck) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, sec := range d.sections() {
		if len(sec.lines) == 0 {
			continue
		}
		if _, err := fmt.Fprintln(bw, sec.name); err != nil {
			return fmt.Errorf("failed to write section %s: %w", sec.name, err)
		}
		for _, line := range sec.lines {
			if _, err := fmt.Fprintf(bw, "    %s\n", line); err != nil {
				return fmt.Errorf("failed to write section %s: %w", sec.name, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush deck: %w", err)
	}
	return nil
}

// WriteFile writes the deck atomically using the temp-file-plus-rename
// pattern so a crashed writer never leaves a truncated input behind.
func (d *Deck) WriteFile(path string) error {
	var sb strings.Builder
	if err := d.Write(&sb); err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write temp deck file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename deck file: %w", err)
	}
	return nil
}

// Quote wraps a string in the single quotes the input format expects for
// descriptors and file names.
func Quote(s string) string {
	return "'" + s + "'"
}

// QuoteAll quotes every name, for descriptor lists.
func QuoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = Quote(name)
	}
	return quoted
}

// Floats renders values as a space-separated list using the shortest
// representation that round-trips.
func Floats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, " ")
}

// Ints renders values as a space-separated list.
func Ints(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, " ")
}
