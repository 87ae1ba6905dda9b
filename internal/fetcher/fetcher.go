package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"anthology-downloader/internal/config"
	"anthology-downloader/internal/normalize"
	"anthology-downloader/internal/observability"
)

// ErrFetch wraps every per-file failure. Callers log it and move on.
var ErrFetch = errors.New("fetch failed")

// StatusError is a non-200 answer from the remote server.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Fetcher is the download sink: it turns a PDF link into a file in the
// output directory.
type Fetcher struct {
	client     *http.Client
	cfg        *config.Config
	logger     *observability.Logger
	validate   func(path string) error
	validateMu sync.Mutex
}

// SaveResult describes one processed link. Identifier and Path are set even
// when the download fails.
type SaveResult struct {
	Identifier string
	FileName   string
	Path       string
	Skipped    bool
	Bytes      int64
}

func NewFetcher(cfg *config.Config, logger *observability.Logger) *Fetcher {
	client := &http.Client{
		Timeout: cfg.GetTotalTimeout(),
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        cfg.HTTP.MaxIdleConnections,
			MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnectionsPerHost,
			IdleConnTimeout:     cfg.GetIdleConnectionTimeout(),
		},
	}
	return NewFetcherWithClient(cfg, client, logger)
}

func NewFetcherWithClient(cfg *config.Config, client *http.Client, logger *observability.Logger) *Fetcher {
	if logger == nil {
		logger = observability.Nop()
	}
	f := &Fetcher{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.HTTP.ValidatePDF {
		f.validate = validatePDF
	}
	return f
}

// Client exposes the configured HTTP client so the static browser backend can
// share its transport.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// FetchAndSave stores pdfURL as {identifier}-{slug(title)}.pdf in outputDir.
// An existing file of that name is left alone and no request is made.
func (f *Fetcher) FetchAndSave(ctx context.Context, pdfURL, title, outputDir string) (*SaveResult, error) {
	identifier := normalize.FileIdentifier(pdfURL)
	if identifier == "" {
		return nil, fmt.Errorf("%w: no file identifier in %q", ErrFetch, pdfURL)
	}

	fileName := normalize.FileName(identifier, title, f.cfg.Output.SlugTitles)
	result := &SaveResult{
		Identifier: identifier,
		FileName:   fileName,
		Path:       filepath.Join(outputDir, fileName),
	}

	if info, err := os.Stat(result.Path); err == nil {
		result.Skipped = true
		result.Bytes = info.Size()
		f.logger.Debug("Already downloaded, skipping", "identifier", identifier, "path", result.Path)
		return result, nil
	}

	f.logger.Debug("Downloading", "identifier", identifier, "url", pdfURL)

	start := time.Now()
	n, err := f.download(ctx, pdfURL, result.Path)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrFetch, identifier, err)
	}
	result.Bytes = n

	f.logger.Debug("Downloaded",
		"identifier", identifier,
		"file", fileName,
		"bytes", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// download writes to a temp file next to destPath and renames it on success,
// so a partial file never counts as present.
func (f *Fetcher) download(ctx context.Context, url, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", f.cfg.HTTP.UserAgent)
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if f.validate != nil {
		f.validateMu.Lock()
		err := f.validate(tmpPath)
		f.validateMu.Unlock()
		if err != nil {
			_ = os.Remove(tmpPath)
			return 0, fmt.Errorf("invalid PDF: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

var pdfcpuOnce sync.Once

func validatePDF(path string) error {
	// keep pdfcpu away from the user's config directory
	pdfcpuOnce.Do(func() { model.ConfigPath = "disable" })
	return api.ValidateFile(path, model.NewDefaultConfiguration())
}
