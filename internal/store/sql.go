package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/seenimoa/tickersent/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLStore keeps the scored news table in a SQL database. Insertion order is
// preserved through a monotonically increasing seq column.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// OpenSQL opens backend ("sqlite" or "postgres") at dsn and applies pending
// migrations.
func OpenSQL(backend, dsn string) (*SQLStore, error) {
	var driver string
	switch backend {
	case "sqlite":
		driver = "sqlite"
	case "postgres":
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unknown sql backend %q", backend)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if backend == "sqlite" {
		// One writer; avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	s := &SQLStore{db: db, dialect: backend}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		err := s.db.QueryRow(s.rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"), f).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec(s.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

const newsSelect = `SELECT published_at, title, ticker, source, url, category,
	title_sentiment, content_sentiment, combined_sentiment, confidence
	FROM news`

// All returns every stored article in insertion order.
func (s *SQLStore) All(ctx context.Context) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx, newsSelect+" ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	var out []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanArticle(rows *sql.Rows) (models.Article, error) {
	var (
		a                        models.Article
		published, confidence    string
		title, content, combined sql.NullFloat64
	)
	if err := rows.Scan(&published, &a.Title, &a.Ticker, &a.Source, &a.URL, &a.Category,
		&title, &content, &combined, &confidence); err != nil {
		return models.Article{}, fmt.Errorf("scan news: %w", err)
	}
	t, err := time.Parse(models.TimestampLayout, published)
	if err != nil {
		return models.Article{}, fmt.Errorf("news row %q: %w", a.Title, err)
	}
	a.PublishedAt = t.UTC()
	if models.Confidence(confidence) == models.ConfidenceDegraded {
		return a, nil
	}
	a.TitleSentiment = nullScore(title)
	a.ContentSentiment = nullScore(content)
	a.CombinedSentiment = nullScore(combined)
	return a, nil
}

func nullScore(v sql.NullFloat64) models.Score {
	if !v.Valid {
		return models.Absent
	}
	return models.Scored(v.Float64)
}

// Keys returns the identity keys of all stored articles.
func (s *SQLStore) Keys(ctx context.Context) (KeySet, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT published_at, title, ticker FROM news")
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := make(KeySet)
	for rows.Next() {
		var k models.Key
		if err := rows.Scan(&k.PublishedAt, &k.Title, &k.Ticker); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys.Add(k)
	}
	return keys, rows.Err()
}

// Exists reports whether key is stored.
func (s *SQLStore) Exists(ctx context.Context, key models.Key) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM news WHERE published_at = ? AND title = ? AND ticker = ?"),
		key.PublishedAt, key.Title, key.Ticker).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check key: %w", err)
	}
	return n > 0, nil
}

// Append inserts rows with unseen keys in one transaction. Known keys are
// skipped by the primary key conflict clause.
func (s *SQLStore) Append(ctx context.Context, rows []models.Article) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM news").Scan(&seq); err != nil {
		return 0, fmt.Errorf("read seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO news
		(published_at, title, ticker, seq, source, url, category,
		 title_sentiment, content_sentiment, combined_sentiment, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (published_at, title, ticker) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, a := range rows {
		k := a.Key()
		res, err := stmt.ExecContext(ctx,
			k.PublishedAt, k.Title, k.Ticker, seq+1, a.Source, a.URL, a.Category,
			a.TitleSentiment.Ptr(), a.ContentSentiment.Ptr(), a.CombinedSentiment.Ptr(),
			string(a.Confidence()))
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", k.Ticker, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			seq++
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return added, nil
}
