package history

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemaps/internal/crawler"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "history.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// Store is the SQLite-backed crawl history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures how the database is opened.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Run summarizes one recorded crawl.
type Run struct {
	// ID is the database identifier of the run.
	ID int64

	// Root is the normalized root URL.
	Root string

	// Timestamp is when the run was recorded, in UTC.
	Timestamp time.Time

	// URLCount is the number of URLs in the sitemap.
	URLCount int

	// Digest is the hex SHA3-256 digest of the sorted URL list.
	Digest string

	// Changed reports whether Digest differs from the previous run of the
	// same root. The oldest run of a root is never marked as changed.
	Changed bool
}

// PageRecord is one URL stored with a run.
type PageRecord struct {
	URL          string
	Title        string
	LastModified time.Time
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root_url TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		url_count INTEGER NOT NULL,
		digest TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root_url);

	CREATE TABLE IF NOT EXISTS pages (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		title TEXT,
		last_modified TEXT,
		PRIMARY KEY (run_id, url)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Digest returns the hex SHA3-256 digest of urls joined by newlines.
// urls must already be sorted; crawler results always are.
func Digest(urls []string) string {
	sum := sha3.Sum256([]byte(strings.Join(urls, "\n")))
	return hex.EncodeToString(sum[:])
}

// Record stores a finished crawl and returns the new run.
func (s *Store) Record(ctx context.Context, result *crawler.Result, at time.Time) (Run, error) {
	run := Run{
		Root:      result.Root,
		Timestamp: at.UTC(),
		URLCount:  len(result.URLs),
		Digest:    Digest(result.URLs),
	}

	prev, err := s.latestDigest(ctx, result.Root)
	if err != nil {
		return Run{}, err
	}
	run.Changed = prev != "" && prev != run.Digest

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (root_url, timestamp, url_count, digest) VALUES (?, ?, ?, ?)`,
		run.Root, run.Timestamp.Format(time.RFC3339Nano), run.URLCount, run.Digest,
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to save run: %w", err)
	}
	if run.ID, err = res.LastInsertId(); err != nil {
		return Run{}, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pages (run_id, url, title, last_modified) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range result.URLs {
		page := result.Pages[u]
		var lastModified sql.NullString
		if !page.LastModified.IsZero() {
			lastModified = sql.NullString{String: page.LastModified.UTC().Format(time.RFC3339), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, u, page.Title, lastModified); err != nil {
			return Run{}, fmt.Errorf("failed to save page %s: %w", u, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

func (s *Store) latestDigest(ctx context.Context, root string) (string, error) {
	var digest string
	err := s.db.QueryRowContext(ctx,
		`SELECT digest FROM runs WHERE root_url = ? ORDER BY id DESC LIMIT 1`, root,
	).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return digest, nil
}

// Roots returns every root URL with at least one run, sorted.
func (s *Store) Roots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT root_url FROM runs ORDER BY root_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

// Runs returns the runs of root, newest first.
func (s *Store) Runs(ctx context.Context, root string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, root_url, timestamp, url_count, digest
	FROM runs
	WHERE root_url = ?
	ORDER BY id DESC
	`, root)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			timestamp string
		)
		if err := rows.Scan(&run.ID, &run.Root, &timestamp, &run.URLCount, &run.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Timestamp = parseTimestamp(timestamp)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows are newest first, so each run compares with the one after it.
	for i := 0; i+1 < len(runs); i++ {
		runs[i].Changed = runs[i].Digest != runs[i+1].Digest
	}
	return runs, nil
}

// Pages returns the pages stored with a run, sorted by URL.
func (s *Store) Pages(ctx context.Context, runID int64) ([]PageRecord, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, last_modified FROM pages WHERE run_id = ? ORDER BY url`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRecord
	for rows.Next() {
		var (
			page         PageRecord
			title        sql.NullString
			lastModified sql.NullString
		)
		if err := rows.Scan(&page.URL, &title, &lastModified); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.Title = title.String
		if lastModified.Valid {
			page.LastModified = parseTimestamp(lastModified.String)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// timestampFormats lists the layouts a stored timestamp may use.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time for unparseable input.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
