package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"anthology-downloader/internal/browser"
	"anthology-downloader/internal/checksum"
	"anthology-downloader/internal/config"
	"anthology-downloader/internal/fetcher"
	"anthology-downloader/internal/metadata"
	"anthology-downloader/internal/observability"
	"anthology-downloader/internal/scraper"
	"anthology-downloader/internal/storage"
)

// Orchestrator runs the anthology pipeline: open a session, load the event
// listing, fetch every pdf entry and write the metadata map once at the end.
type Orchestrator struct {
	cfg        *config.Config
	logger     *observability.Logger
	fetcher    *fetcher.Fetcher
	scraper    *scraper.Scraper
	newSession SessionFactory
	repo       storage.Repository
	checksum   *checksum.Generator
	now        func() time.Time
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	return &Orchestrator{
		cfg:        deps.Config,
		logger:     logger,
		fetcher:    deps.Fetcher,
		scraper:    deps.Scraper,
		newSession: deps.NewSession,
		repo:       deps.Repository,
		checksum:   checksum.NewGenerator(),
		now:        time.Now,
	}
}

// Download runs one job. Startup and navigation failures abort the run; a
// failed entry is logged and counted. The session is closed exactly once on
// every path after it was opened. An interrupted run returns the context
// error and writes no metadata.
func (o *Orchestrator) Download(ctx context.Context, req Request) (*Result, error) {
	if req.Event == "" || req.Year == "" || req.OutputDir == "" {
		return nil, fmt.Errorf("event, year and output directory are required")
	}

	result := &Result{RunID: uuid.NewString()}
	logger := o.logger.With("run_id", result.RunID, "event", req.Event, "year", req.Year)

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return result, fmt.Errorf("creating output directory: %w", err)
	}

	session, err := o.newSession(ctx)
	if err != nil {
		if !errors.Is(err, browser.ErrStartup) {
			err = fmt.Errorf("%w: %w", browser.ErrStartup, err)
		}
		return result, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Failed to close browser session", "error", err.Error())
		}
	}()

	listingURL := scraper.BuildURLFromTemplate(o.cfg.Event.URLTemplate, req.Event, req.Year)
	logger.Info("Loading event listing", "url", listingURL)

	if err := scraper.Navigate(ctx, session, listingURL, o.cfg.GetDelay()); err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("run interrupted: %w", ctx.Err())
		}
		return result, err
	}

	meta := metadata.NewWriter(o.cfg.Output.MetadataFile)

	for entry, err := range o.scraper.Entries(ctx, session) {
		if err != nil {
			logger.Warn("Failed to read listing entry", "index", entry.Index, "error", err.Error())
			continue
		}
		result.Entries++

		if !entry.HasPDF() {
			result.NoPDF++
			logger.Debug("No pdf link", "index", entry.Index, "title", entry.Title)
			continue
		}

		o.processEntry(ctx, logger, req, entry, meta, result)

		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		logger.Warn("Run interrupted, metadata not written",
			"downloaded", result.Downloaded,
			"skipped", result.Skipped,
		)
		return result, fmt.Errorf("run interrupted: %w", ctx.Err())
	}

	path, err := meta.Flush(req.OutputDir)
	if err != nil {
		return result, err
	}
	result.MetadataPath = path

	logger.Info("Download completed",
		"entries", result.Entries,
		"downloaded", result.Downloaded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"no_pdf", result.NoPDF,
		"metadata_keys", meta.Len(),
		"metadata", result.MetadataPath,
	)

	if o.repo != nil {
		if n, err := o.repo.CountByEvent(ctx, req.Event, req.Year); err != nil {
			logger.Warn("Failed to count catalogued papers", "error", err.Error())
		} else {
			logger.Info("Catalog updated", "papers", n)
		}
	}
	return result, nil
}

func (o *Orchestrator) processEntry(
	ctx context.Context,
	logger *observability.Logger,
	req Request,
	entry scraper.Entry,
	meta *metadata.Writer,
	result *Result,
) {
	logger.Debug("download "+entry.PDFURL, "title", entry.Title)

	saved, err := o.fetcher.FetchAndSave(ctx, entry.PDFURL, entry.Title, req.OutputDir)
	if err != nil && ctx.Err() != nil {
		return
	}

	status := storage.StatusDownloaded
	switch {
	case err != nil:
		result.Failed++
		status = storage.StatusFailed
		logger.Error("Download failed",
			"index", entry.Index,
			"url", entry.PDFURL,
			"error", err.Error(),
		)
	case saved.Skipped:
		result.Skipped++
		status = storage.StatusSkipped
	default:
		result.Downloaded++
	}

	if saved == nil {
		return
	}

	previous, _ := meta.Title(saved.Identifier)
	if meta.Record(saved.Identifier, entry.Title) {
		logger.Warn("Identifier collision, keeping the later title",
			"identifier", saved.Identifier,
			"previous", previous,
			"title", entry.Title,
		)
	}

	o.catalog(ctx, logger, req, entry, saved, status, result)
}

// catalog upserts the processed entry when a repository is configured.
// Catalog errors never fail the run.
func (o *Orchestrator) catalog(
	ctx context.Context,
	logger *observability.Logger,
	req Request,
	entry scraper.Entry,
	saved *fetcher.SaveResult,
	status string,
	result *Result,
) {
	if o.repo == nil {
		return
	}

	rec := &storage.PaperRecord{
		RunID:      result.RunID,
		Event:      req.Event,
		Year:       req.Year,
		Identifier: saved.Identifier,
		Title:      entry.Title,
		SourceURL:  entry.PDFURL,
		Status:     status,
		FetchedAt:  o.now().UTC(),
	}
	if status == storage.StatusSkipped {
		o.verifyStored(ctx, logger, req, saved, result)
	}
	if status != storage.StatusFailed {
		rec.FilePath = saved.Path
		sum, err := o.checksum.GenerateFileHash(saved.Path)
		if err != nil {
			logger.Warn("Failed to checksum file", "path", saved.Path, "error", err.Error())
		}
		rec.CheckSum = sum
	}

	isNew, err := o.repo.UpsertPaper(ctx, rec)
	if err != nil {
		logger.Warn("Failed to catalog paper", "identifier", saved.Identifier, "error", err.Error())
		return
	}
	logger.Debug("Catalogued paper", "identifier", saved.Identifier, "new", isNew, "status", status)
}

// verifyStored compares a skipped file with the checksum catalogued by an
// earlier run. A mismatch is reported, the file is left alone.
func (o *Orchestrator) verifyStored(
	ctx context.Context,
	logger *observability.Logger,
	req Request,
	saved *fetcher.SaveResult,
	result *Result,
) {
	prev, err := o.repo.GetPaper(ctx, req.Event, req.Year, saved.Identifier)
	if err != nil {
		logger.Warn("Failed to look up catalogued paper", "identifier", saved.Identifier, "error", err.Error())
		return
	}
	if prev == nil || prev.CheckSum == "" {
		return
	}

	ok, err := o.checksum.VerifyFileHash(prev.CheckSum, saved.Path)
	if err != nil {
		logger.Warn("Failed to verify stored file", "path", saved.Path, "error", err.Error())
		return
	}
	if !ok {
		result.Changed++
		logger.Warn("Stored file differs from catalogued checksum",
			"identifier", saved.Identifier,
			"path", saved.Path,
		)
	}
}
