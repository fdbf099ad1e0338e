package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Table is a header-indexed CSV table. Column lookups are case-insensitive.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable builds an empty table with the given header.
func NewTable(name string, header []string) *Table {
	t := &Table{Name: name, Header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
	return t
}

// ParseTable reads a CSV table from r. Input without a header line returns
// ErrEmptyInput.
func ParseTable(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	t := NewTable(name, header)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadTableFile parses the table at path. A missing file wraps
// ErrInputNotFound; a zero-byte file wraps ErrEmptyInput.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrInputNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ParseTable(filepath.Base(path), f)
}

// Col returns the index of the first of names present in the header, or -1.
func (t *Table) Col(names ...string) int {
	for _, n := range names {
		if i, ok := t.index[strings.ToLower(n)]; ok {
			return i
		}
	}
	return -1
}

// Require checks that every column is present. A column written as "A|B"
// is satisfied by either name.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if t.Col(strings.Split(c, "|")...) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{File: t.Name, Missing: missing}
	}
	return nil
}

// AddColumn appends name to the header and an empty cell to every row. It
// returns the column index; a column already present is left alone.
func (t *Table) AddColumn(name string) int {
	if i := t.Col(name); i >= 0 {
		return i
	}
	for i, row := range t.Rows {
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows[i] = append(row, "")
	}
	t.Header = append(t.Header, name)
	t.index[strings.ToLower(strings.TrimSpace(name))] = len(t.Header) - 1
	return len(t.Header) - 1
}

// Get returns the trimmed cell at col, or "" when the row is short or col
// is -1.
func (t *Table) Get(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// Append adds a row given as column name → value, laid out in header order.
// Names not in the header are dropped.
func (t *Table) Append(values map[string]string) {
	row := make([]string, len(t.Header))
	for name, v := range values {
		if i := t.Col(name); i >= 0 {
			row[i] = v
		}
	}
	t.Rows = append(t.Rows, row)
}

// WriteTo encodes the table as CSV.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	enc := csv.NewWriter(cw)
	if err := enc.Write(t.Header); err != nil {
		return cw.n, err
	}
	if err := enc.WriteAll(t.Rows); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// WriteFile atomically replaces path with the table.
func (t *Table) WriteFile(path string) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := t.WriteTo(w)
		return err
	})
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteFileAtomic writes path via a temp file in the same directory and a
// rename, so readers see either the old or the new content.
func WriteFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	ok = true
	return nil
}
