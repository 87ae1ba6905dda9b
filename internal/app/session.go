package app

import (
	"context"
	"net/http"

	"anthology-downloader/internal/browser"
	"anthology-downloader/internal/config"
)

// SessionFactory starts the browser session of a run.
type SessionFactory func(ctx context.Context) (browser.Session, error)

// BrowserOptions maps the browser and http sections of cfg onto session
// options. client is shared with the static backend.
func BrowserOptions(cfg *config.Config, client *http.Client) browser.Options {
	return browser.Options{
		Backend:        cfg.Browser.Backend,
		DriverPath:     cfg.Browser.DriverPath,
		ChromePath:     cfg.Browser.ChromePath,
		VirtualDisplay: cfg.Browser.XVFB,
		WindowWidth:    cfg.Browser.WindowWidth,
		WindowHeight:   cfg.Browser.WindowHeight,
		PageTimeout:    cfg.GetPageTimeout(),
		UserAgent:      cfg.HTTP.UserAgent,
		HTTPClient:     client,
	}
}

// NewBrowserSessionFactory returns a factory that starts the configured backend.
func NewBrowserSessionFactory(cfg *config.Config, client *http.Client) SessionFactory {
	opts := BrowserOptions(cfg, client)
	return func(ctx context.Context) (browser.Session, error) {
		return browser.New(ctx, opts)
	}
}
