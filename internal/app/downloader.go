package app

import (
	"context"
	"fmt"

	"anthology-downloader/internal/config"
	"anthology-downloader/internal/fetcher"
	"anthology-downloader/internal/observability"
	"anthology-downloader/internal/scraper"
	"anthology-downloader/internal/storage"
)

// KindAnthology downloads the proceedings listing of one event edition.
const KindAnthology = "anthology"

// Request names one run: which event edition and where to put it.
type Request struct {
	Event     string
	Year      string
	OutputDir string
}

// Result summarizes a run. Entries counts every listing entry seen, NoPDF the
// ones without a pdf link. Changed counts skipped files whose content no
// longer matches the catalog.
type Result struct {
	RunID        string
	Entries      int
	Downloaded   int
	Skipped      int
	Failed       int
	NoPDF        int
	Changed      int
	MetadataPath string
}

// Downloader runs one download job to completion.
type Downloader interface {
	Download(ctx context.Context, req Request) (*Result, error)
}

// Dependencies are the collaborators a downloader is built from. Repository
// is optional.
type Dependencies struct {
	Config     *config.Config
	Logger     *observability.Logger
	Fetcher    *fetcher.Fetcher
	Scraper    *scraper.Scraper
	NewSession SessionFactory
	Repository storage.Repository
}

// NewDownloader picks the implementation for kind.
func NewDownloader(kind string, deps Dependencies) (Downloader, error) {
	switch kind {
	case KindAnthology, "":
		return NewOrchestrator(deps), nil
	default:
		return nil, fmt.Errorf("unknown downloader kind: %s", kind)
	}
}
