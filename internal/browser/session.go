// Package browser provides the controllable browser behind a listing page:
// navigation plus structural queries over the rendered DOM. Three backends
// share one Session contract:
//
//   - chromedriver: Chrome driven over WebDriver by a chromedriver binary
//   - rod: Chrome driven over the DevTools protocol
//   - static: plain HTTP fetch with goquery, no JavaScript
//
// The chromedriver and rod backends can run on an Xvfb virtual display
// instead of headless mode. The display is started by New and stopped by
// Session.Close, so there is no process-wide display state.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrStartup wraps every failure to locate or launch the browser, its driver
// or the virtual display. It is fatal for a run.
var ErrStartup = errors.New("browser startup failed")

// Element is a node returned by a structural query.
type Element interface {
	// Text returns the rendered text content.
	Text() (string, error)
	// Attr returns the attribute value and whether it is present.
	Attr(name string) (string, bool, error)
	// Elements queries descendants with a CSS selector.
	Elements(selector string) ([]Element, error)
}

// Session is one browser instance owned by a single run.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// URL returns the address of the loaded page, used to resolve relative links.
	URL() string
	Elements(ctx context.Context, selector string) ([]Element, error)
	// Close releases the browser and any virtual display. It is safe to call
	// more than once; only the first call does work.
	Close() error
}

const (
	BackendChromeDriver = "chromedriver"
	BackendRod          = "rod"
	BackendStatic       = "static"
)

// Options configures a session. It replaces browser options that would
// otherwise be assembled inside a constructor.
type Options struct {
	Backend string
	// DriverPath is the chromedriver binary (chromedriver backend).
	DriverPath string
	// ChromePath is the browser binary. Empty lets the backend pick one,
	// except in virtual display mode where it defaults to google-chrome.
	ChromePath string
	// VirtualDisplay runs a windowed browser on Xvfb instead of headless.
	VirtualDisplay bool
	WindowWidth    int
	WindowHeight   int
	PageTimeout    time.Duration
	UserAgent      string
	// HTTPClient is used by the static backend.
	HTTPClient *http.Client
}

// WindowSize renders the geometry as Chrome expects it ("1280,1024").
func (o Options) WindowSize() string {
	return fmt.Sprintf("%d,%d", o.WindowWidth, o.WindowHeight)
}

// ScreenSize renders the geometry for Xvfb ("1280x1024x24").
func (o Options) ScreenSize() string {
	return fmt.Sprintf("%dx%dx24", o.WindowWidth, o.WindowHeight)
}

// ChromeArgs are the command line switches shared by the Chrome backends.
func (o Options) ChromeArgs() []string {
	if !o.VirtualDisplay {
		return []string{"--headless"}
	}
	return []string{
		"--window-size=" + o.WindowSize(),
		"--no-sandbox",
		"--disable-dev-shm-usage",
	}
}

func (o Options) withDefaults() Options {
	if o.Backend == "" {
		o.Backend = BackendChromeDriver
	}
	if o.WindowWidth <= 0 {
		o.WindowWidth = 1280
	}
	if o.WindowHeight <= 0 {
		o.WindowHeight = 1024
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = time.Minute
	}
	if o.VirtualDisplay && o.ChromePath == "" {
		o.ChromePath = "/usr/bin/google-chrome"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.PageTimeout}
	}
	return o
}

// New starts a session for the requested backend. Any error wraps ErrStartup.
func New(ctx context.Context, opts Options) (Session, error) {
	opts = opts.withDefaults()

	switch opts.Backend {
	case BackendChromeDriver:
		return newChromeDriverSession(ctx, opts)
	case BackendRod:
		return newRodSession(ctx, opts)
	case BackendStatic:
		if opts.VirtualDisplay {
			return nil, fmt.Errorf("%w: static backend has no display", ErrStartup)
		}
		return NewStaticSession(opts.HTTPClient, opts.UserAgent), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrStartup, opts.Backend)
	}
}
