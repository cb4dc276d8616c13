// Package export renders dashboard data as downloadable files.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyExport is returned when there is nothing to write.
var ErrEmptyExport = errors.New("nothing to export")

// Delimiter separates CSV fields.
type Delimiter string

const (
	Comma     Delimiter = ","
	Semicolon Delimiter = ";"
	Tab       Delimiter = "\t"
)

// ParseDelimiter accepts a raw delimiter or its name.
func ParseDelimiter(s string) (Delimiter, bool) {
	switch s {
	case ",", "comma":
		return Comma, true
	case ";", "semicolon":
		return Semicolon, true
	case "\t", "tab":
		return Tab, true
	}
	return "", false
}

// Name returns the delimiter's wire name.
func (d Delimiter) Name() string {
	switch d {
	case Semicolon:
		return "semicolon"
	case Tab:
		return "tab"
	default:
		return "comma"
	}
}

// Field is one named column value.
type Field struct {
	Name  string
	Value any
}

// Record is one row. Field order is column order.
type Record []Field

// ToCSV renders rows with a header taken from the first record. A field is
// quoted only when it contains the delimiter, a double quote or a line break.
// Rows are joined with "\n" and there is no trailing newline.
func ToCSV(rows []Record, delim Delimiter) string {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ""
	}
	if delim == "" {
		delim = Comma
	}

	header := rows[0]
	lines := make([]string, 0, len(rows)+1)

	cells := make([]string, len(header))
	for i, f := range header {
		cells[i] = escape(f.Name, delim)
	}
	lines = append(lines, strings.Join(cells, string(delim)))

	for _, row := range rows {
		cells := make([]string, len(header))
		for i, col := range header {
			cells[i] = escape(formatValue(row.value(col.Name)), delim)
		}
		lines = append(lines, strings.Join(cells, string(delim)))
	}
	return strings.Join(lines, "\n")
}

func (r Record) value(name string) any {
	for _, f := range r {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

func escape(s string, delim Delimiter) string {
	if strings.Contains(s, string(delim)) || strings.ContainsAny(s, "\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case *float64:
		if x == nil {
			return ""
		}
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

var filenameReplacer = strings.NewReplacer(" ", "_", ",", "_")

// Filename derives the download name for a dataset at a location.
func Filename(dataset, location string) string {
	return filenameReplacer.Replace(dataset+"_"+location) + ".csv"
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(dir, name, content string) (string, error) {
	if content == "" {
		return "", ErrEmptyExport
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil { //nolint:gosec // exports are meant to be shared
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
