package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"anthology-downloader/internal/observability"
	"anthology-downloader/internal/storage"
)

// Repository keeps the paper catalog in a SQL Server table TblPapers with a
// unique key on (Event, Year, Identifier).
type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

const upsertQuery = `
	MERGE INTO TblPapers WITH (HOLDLOCK) AS target
	USING (SELECT @Event AS Event, @Year AS Year, @Identifier AS Identifier) AS source
	ON target.[Event] = source.Event AND target.[Year] = source.Year AND target.[Identifier] = source.Identifier
	WHEN MATCHED THEN
		UPDATE SET
			[Title] = @Title,
			[SourceURL] = @SourceURL,
			[FilePath] = @FilePath,
			[CheckSum] = CASE WHEN @CheckSum = '' THEN target.[CheckSum] ELSE @CheckSum END,
			[Status] = @Status,
			[RunID] = @RunID,
			[FetchedAt] = @FetchedAt
	WHEN NOT MATCHED THEN
		INSERT ([Event], [Year], [Identifier], [Title], [SourceURL], [FilePath], [CheckSum], [Status], [RunID], [FetchedAt])
		VALUES (@Event, @Year, @Identifier, @Title, @SourceURL, @FilePath, @CheckSum, @Status, @RunID, @FetchedAt)
	OUTPUT $action;
`

// UpsertPaper merges the record into TblPapers. The MERGE output action tells
// inserts from updates.
func (r *Repository) UpsertPaper(ctx context.Context, rec *storage.PaperRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	stmt, err := r.db.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	var action string
	err = stmt.QueryRowContext(ctx,
		sql.Named("Event", rec.Event),
		sql.Named("Year", rec.Year),
		sql.Named("Identifier", rec.Identifier),
		sql.Named("Title", rec.Title),
		sql.Named("SourceURL", rec.SourceURL),
		sql.Named("FilePath", rec.FilePath),
		sql.Named("CheckSum", rec.CheckSum),
		sql.Named("Status", rec.Status),
		sql.Named("RunID", rec.RunID),
		sql.Named("FetchedAt", rec.FetchedAt.UTC()),
	).Scan(&action)
	if err != nil {
		return false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	return action == "INSERT", nil
}

func (r *Repository) GetPaper(ctx context.Context, event, year, identifier string) (*storage.PaperRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `
		SELECT [Event], [Year], [Identifier], [Title], [SourceURL], [FilePath], [CheckSum], [Status], [RunID], [FetchedAt]
		FROM TblPapers
		WHERE [Event] = @Event AND [Year] = @Year AND [Identifier] = @Identifier`

	rec := &storage.PaperRecord{}
	var filePath, checkSum sql.NullString
	err := r.db.QueryRowContext(ctx, query,
		sql.Named("Event", event),
		sql.Named("Year", year),
		sql.Named("Identifier", identifier),
	).Scan(&rec.Event, &rec.Year, &rec.Identifier, &rec.Title, &rec.SourceURL,
		&filePath, &checkSum, &rec.Status, &rec.RunID, &rec.FetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query database: %w", err)
	}

	rec.FilePath = filePath.String
	rec.CheckSum = checkSum.String
	return rec, nil
}

func (r *Repository) CountByEvent(ctx context.Context, event, year string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `SELECT COUNT(*) FROM TblPapers WHERE [Event] = @Event AND [Year] = @Year`

	var count int
	err := r.db.QueryRowContext(ctx, query,
		sql.Named("Event", event),
		sql.Named("Year", year),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}

	return count, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var _ storage.Repository = (*Repository)(nil)
