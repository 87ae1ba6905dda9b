package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newRodSession(ctx context.Context, opts Options) (*rodSession, error) {
	l := launcher.New().Context(ctx).Headless(!opts.VirtualDisplay)
	if opts.ChromePath != "" {
		l = l.Bin(opts.ChromePath)
	}
	if opts.VirtualDisplay {
		l = l.NoSandbox(true).
			Set("window-size", opts.WindowSize()).
			Set("disable-dev-shm-usage").
			XVFB("--auto-servernum", "--server-args=-screen 0 "+opts.ScreenSize())
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launching chrome: %w", ErrStartup, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connecting to chrome: %w", ErrStartup, err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("%w: opening page: %w", ErrStartup, err)
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = b.Close()
			l.Kill()
			return nil, fmt.Errorf("%w: setting user agent: %w", ErrStartup, err)
		}
	}

	return &rodSession{
		launcher: l,
		browser:  b,
		page:     page,
		timeout:  opts.PageTimeout,
	}, nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.timeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (s *rodSession) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *rodSession) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapRod(els), nil
}

func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
		s.launcher.Kill()
		s.launcher.Cleanup()
	})
	return s.closeErr
}

type rodElement struct {
	el *rod.Element
}

func wrapRod(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, rodElement{el: el})
	}
	return out
}

func (e rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e rodElement) Attr(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e rodElement) Elements(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapRod(els), nil
}
