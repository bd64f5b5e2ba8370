// Package tabular reads and writes the delimited iterate log produced
// during a run: one header row naming the columns, then one numeric row
// per evaluation. Rows are append-only and immutable once written.
package tabular

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Row is one optimization iterate: one value per column, in header
// order. The first column is conventionally the evaluation counter.
type Row []float64

// Table is a fully parsed tabular file.
type Table struct {
	Columns []string
	Rows    []Row
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// Last returns the final iterate, or nil for an empty table.
func (t *Table) Last() Row {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[len(t.Rows)-1]
}

// Column returns the values of the named column in row order.
func (t *Table) Column(name string) ([]float64, bool) {
	idx := -1
	for i, col := range t.Columns {
		if col == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	values := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// ParseError reports a malformed tabular file. Line is 1-based and
// refers to the physical line in the file, header included.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse error: line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("parse error: %s: line %d: %s", e.Path, e.Line, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

// ErrParse can be used with errors.Is to detect tabular parse failures.
var ErrParse = &ParseError{}

// ReadFile parses a tabular file from disk.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tabular file: %w", err)
	}
	defer f.Close()
	return Read(f, path)
}

// Read parses tabular data. The first non-empty line is the header; a
// leading '%' on the header (the external tool writes "%eval_id ...") is
// stripped. Fields may be separated by runs of spaces or tabs, or by
// commas. Every data row must have exactly as many fields as the header
// and every field must be numeric; the first malformed row aborts the
// parse and no rows are returned.
func Read(r io.Reader, path string) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	table := &Table{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := splitFields(line)
		if table.Columns == nil {
			fields[0] = strings.TrimPrefix(fields[0], "%")
			table.Columns = fields
			continue
		}

		if len(fields) != len(table.Columns) {
			return nil, &ParseError{
				Path:   path,
				Line:   lineNo,
				Reason: fmt.Sprintf("expected %d columns, got %d", len(table.Columns), len(fields)),
			}
		}
		row := make(Row, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &ParseError{
					Path:   path,
					Line:   lineNo,
					Reason: fmt.Sprintf("column %s: %q is not numeric", table.Columns[i], field),
				}
			}
			row[i] = v
		}
		table.Rows = append(table.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan tabular data: %w", err)
	}
	if table.Columns == nil {
		return nil, &ParseError{Path: path, Line: 1, Reason: "missing header row"}
	}
	return table, nil
}

// splitFields splits a row on commas or whitespace runs.
func splitFields(line string) []string {
	if strings.Contains(line, ",") {
		parts := strings.Split(line, ",")
		fields := make([]string, 0, len(parts))
		for _, p := range parts {
			fields = append(fields, strings.TrimSpace(p))
		}
		return fields
	}
	return strings.Fields(line)
}

// Writer appends rows to a tabular file. It is buffered and safe for
// concurrent use; the column count is fixed by the header and enforced
// on every row.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	path    string
	columns int
}

// NewWriter creates the tabular file and writes the header row. An
// existing file at path is truncated.
func NewWriter(path string, columns []string) (*Writer, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("tabular writer needs at least one column")
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create tabular file: %w", err)
	}

	writer := bufio.NewWriterSize(file, 64*1024)
	header := "%" + strings.Join(columns, " ")
	if _, err := writer.WriteString(header + "\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write tabular header: %w", err)
	}

	return &Writer{
		file:    file,
		writer:  writer,
		path:    path,
		columns: len(columns),
	}, nil
}

// WriteRow appends one iterate.
func (w *Writer) WriteRow(row Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(row) != w.columns {
		return fmt.Errorf("row has %d values, header has %d columns", len(row), w.columns)
	}

	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	if _, err := w.writer.WriteString(strings.Join(parts, " ") + "\n"); err != nil {
		return fmt.Errorf("failed to write tabular row: %w", err)
	}
	return nil
}

// Flush writes buffered rows through to disk.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush tabular writer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync tabular file: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close tabular file: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the tabular file.
func (w *Writer) Path() string {
	return w.path
}
