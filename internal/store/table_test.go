package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseTable(t *testing.T) {
	input := "\ufeffDate,TITLE,Link\n10/14/2026 09:30:00 AM, Apple rallies ,https://x/a\n"
	tbl, err := ParseTable("news.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(tbl.Rows))
	}
	if tbl.Col("date") != 0 {
		t.Errorf("BOM not stripped from first header cell: %q", tbl.Header[0])
	}
	if got := tbl.Get(tbl.Rows[0], tbl.Col("Title")); got != "Apple rallies" {
		t.Errorf("Title = %q", got)
	}
	if tbl.Col("Url", "Link") != 2 {
		t.Errorf("alias lookup failed")
	}
	if got := tbl.Get(tbl.Rows[0], -1); got != "" {
		t.Errorf("Get(-1) = %q", got)
	}
}

func TestParseTableEmpty(t *testing.T) {
	_, err := ParseTable("x.csv", strings.NewReader(""))
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestTableRequire(t *testing.T) {
	tbl := NewTable("in.csv", []string{"Date", "Link"})
	if err := tbl.Require("Date", "Url|Link"); err != nil {
		t.Fatalf("Require: %v", err)
	}
	err := tbl.Require("Title", "Url|Link", "Ticker")
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
	if se.File != "in.csv" || len(se.Missing) != 2 || se.Missing[0] != "Title" || se.Missing[1] != "Ticker" {
		t.Errorf("SchemaError = %+v", se)
	}
}

func TestReadTableFileMissing(t *testing.T) {
	_, err := ReadTableFile(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("err = %v, want ErrInputNotFound", err)
	}
}

func TestTableWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.csv")
	tbl := NewTable("out.csv", []string{"Ticker", "Title"})
	tbl.Append(map[string]string{"Ticker": "AAA", "Title": "a, with comma", "Ignored": "x"})
	if err := tbl.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadTableFile(path)
	if err != nil {
		t.Fatalf("ReadTableFile: %v", err)
	}
	if len(got.Rows) != 1 || got.Get(got.Rows[0], got.Col("Title")) != "a, with comma" {
		t.Errorf("round trip rows = %v", got.Rows)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestTableWriteTo(t *testing.T) {
	tbl := NewTable("t", []string{"A", "B"})
	tbl.Append(map[string]string{"A": "1"})
	var buf bytes.Buffer
	if _, err := tbl.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "A,B\n1,\n" {
		t.Errorf("WriteTo = %q", buf.String())
	}
}

func TestTableAddColumn(t *testing.T) {
	tbl := NewTable("t", []string{"A", "B"})
	tbl.Rows = [][]string{{"1", "2"}, {"3"}}

	if i := tbl.AddColumn("b"); i != 1 {
		t.Errorf("existing column index = %d", i)
	}
	if i := tbl.AddColumn("C"); i != 2 {
		t.Errorf("new column index = %d", i)
	}
	if tbl.Col("c") != 2 {
		t.Error("new column not indexed")
	}
	for i, row := range tbl.Rows {
		if len(row) != 3 || row[2] != "" {
			t.Errorf("row %d = %q", i, row)
		}
	}
}
