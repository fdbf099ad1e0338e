package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when a table has no header or no data rows.
var ErrEmptyInput = errors.New("input has no data rows")

// ErrInputNotFound is returned when a required input table does not exist.
var ErrInputNotFound = errors.New("input file not found")

// SchemaError reports required columns missing from a table header.
type SchemaError struct {
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required column(s): %s", e.File, strings.Join(e.Missing, ", "))
}
