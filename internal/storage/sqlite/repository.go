package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"anthology-downloader/internal/observability"
	"anthology-downloader/internal/storage"
)

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

// NewRepository opens (or creates) the catalog database at path and makes
// sure the schema exists.
func NewRepository(path string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	r := &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}
	if r.commandTimeout <= 0 {
		r.commandTimeout = 5 * time.Second
	}

	if err := r.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return r, nil
}

func (r *Repository) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			event TEXT NOT NULL,
			year TEXT NOT NULL,
			identifier TEXT NOT NULL,
			title TEXT NOT NULL,
			source_url TEXT NOT NULL,
			file_path TEXT,
			checksum TEXT,
			status TEXT NOT NULL,
			run_id TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (event, year, identifier)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_run_id ON papers(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (r *Repository) UpsertPaper(ctx context.Context, rec *storage.PaperRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM papers WHERE event = ? AND year = ? AND identifier = ?`,
		rec.Event, rec.Year, rec.Identifier,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query database: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO papers (event, year, identifier, title, source_url, file_path, checksum, status, run_id, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event, year, identifier) DO UPDATE SET
			title = excluded.title,
			source_url = excluded.source_url,
			file_path = excluded.file_path,
			checksum = CASE WHEN excluded.checksum = '' THEN papers.checksum ELSE excluded.checksum END,
			status = excluded.status,
			run_id = excluded.run_id,
			fetched_at = excluded.fetched_at`,
		rec.Event, rec.Year, rec.Identifier, rec.Title, rec.SourceURL,
		rec.FilePath, rec.CheckSum, rec.Status, rec.RunID,
		rec.FetchedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return count == 0, nil
}

func (r *Repository) CountByEvent(ctx context.Context, event, year string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM papers WHERE event = ? AND year = ?`,
		event, year,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

// GetPaper returns the stored record, or nil when it does not exist.
func (r *Repository) GetPaper(ctx context.Context, event, year, identifier string) (*storage.PaperRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rec := &storage.PaperRecord{}
	var filePath, checksum sql.NullString
	var fetchedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT event, year, identifier, title, source_url, file_path, checksum, status, run_id, fetched_at
		FROM papers WHERE event = ? AND year = ? AND identifier = ?`,
		event, year, identifier,
	).Scan(&rec.Event, &rec.Year, &rec.Identifier, &rec.Title, &rec.SourceURL,
		&filePath, &checksum, &rec.Status, &rec.RunID, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}

	rec.FilePath = filePath.String
	rec.CheckSum = checksum.String
	if t, perr := time.Parse(time.RFC3339, fetchedAt); perr == nil {
		rec.FetchedAt = t
	} else {
		r.logger.Warn("Invalid fetched_at in catalog", "identifier", identifier, "value", fetchedAt)
	}
	return rec, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var _ storage.Repository = (*Repository)(nil)
