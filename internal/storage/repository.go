package storage

import (
	"context"
	"time"
)

// Paper statuses recorded in the catalog.
const (
	StatusDownloaded = "downloaded"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// PaperRecord is one processed anthology entry as stored in the catalog.
type PaperRecord struct {
	RunID      string
	Event      string
	Year       string
	Identifier string // file identifier derived from the pdf URL
	Title      string
	SourceURL  string
	FilePath   string
	CheckSum   string // SHA-256 of the stored file, empty when the fetch failed
	Status     string
	FetchedAt  time.Time
}

// Repository stores processed papers keyed by (event, year, identifier).
type Repository interface {
	// UpsertPaper inserts or updates the record and reports whether it was new.
	UpsertPaper(ctx context.Context, rec *PaperRecord) (isNew bool, err error)

	// GetPaper returns the stored record, or nil when there is none.
	GetPaper(ctx context.Context, event, year, identifier string) (*PaperRecord, error)

	// CountByEvent returns the number of catalogued papers of one event edition.
	CountByEvent(ctx context.Context, event, year string) (int, error)

	Close() error
}
