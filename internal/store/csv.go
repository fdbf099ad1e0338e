package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/seenimoa/tickersent/pkg/models"
)

// CSVStore keeps the scored news table in a single CSV file. Every append
// rewrites the file through a temp file and rename.
type CSVStore struct {
	path string
	loc  *time.Location
	mu   sync.Mutex
}

// NewCSVStore returns a store backed by path. The file is created on the
// first append.
func NewCSVStore(path string, loc *time.Location) *CSVStore {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVStore{path: path, loc: loc}
}

// Path returns the backing file.
func (s *CSVStore) Path() string { return s.path }

// load reads the table. A missing or zero-byte file is an empty table with
// the default header.
func (s *CSVStore) load() (*Table, error) {
	t, err := ReadTableFile(s.path)
	switch {
	case errors.Is(err, ErrInputNotFound), errors.Is(err, ErrEmptyInput):
		return NewTable(filepath.Base(s.path), NewsColumns), nil
	case err != nil:
		return nil, err
	}
	if err := t.Require(requiredNewsColumns...); err != nil {
		return nil, err
	}
	return t, nil
}

// All returns every stored article in file order.
func (s *CSVStore) All(ctx context.Context) ([]models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return nil, err
	}
	cols := resolveNewsCols(t)
	out := make([]models.Article, 0, len(t.Rows))
	for i, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := decodeArticle(t, cols, row, s.loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Keys returns the identity keys of all stored articles.
func (s *CSVStore) Keys(ctx context.Context) (KeySet, error) {
	rows, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(KeySet, len(rows))
	for _, a := range rows {
		keys.Add(a.Key())
	}
	return keys, nil
}

// Exists reports whether key is stored.
func (s *CSVStore) Exists(ctx context.Context, key models.Key) (bool, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return false, err
	}
	return keys.Has(key), nil
}

// Append adds rows with unseen keys after the existing rows. Existing rows
// keep their cells; columns missing from an older header are added at the
// end with empty cells. When nothing is new the file is not touched.
func (s *CSVStore) Append(ctx context.Context, rows []models.Article) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return 0, err
	}
	widenNewsTable(t)
	cols := resolveNewsCols(t)
	seen := make(KeySet, len(t.Rows)+len(rows))
	for i, row := range t.Rows {
		a, err := decodeArticle(t, cols, row, s.loc)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+2, err)
		}
		seen.Add(a.Key())
	}

	added := 0
	for _, a := range rows {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		k := a.Key()
		if seen.Has(k) {
			continue
		}
		seen.Add(k)
		t.Append(encodeArticle(a))
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := t.WriteFile(s.path); err != nil {
		return 0, err
	}
	return added, nil
}

// widenNewsTable adds the news columns an older header lacks so appended
// rows keep every score.
func widenNewsTable(t *Table) {
	for _, c := range NewsColumns {
		if c == ColURL && t.Col("Link") >= 0 {
			continue
		}
		t.AddColumn(c)
	}
}

// Close is a no-op.
func (s *CSVStore) Close() error { return nil }
