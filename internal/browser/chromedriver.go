package browser

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

// chromeDriverSession owns a chromedriver process (and its Xvfb frame buffer
// in virtual display mode) plus one WebDriver session on top of it.
type chromeDriverSession struct {
	service *selenium.Service
	wd      selenium.WebDriver

	closeOnce sync.Once
	closeErr  error
}

func newChromeDriverSession(_ context.Context, opts Options) (*chromeDriverSession, error) {
	if _, err := os.Stat(opts.DriverPath); err != nil {
		return nil, fmt.Errorf("%w: chromedriver not found at %s: %w", ErrStartup, opts.DriverPath, err)
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	var serviceOpts []selenium.ServiceOption
	if opts.VirtualDisplay {
		serviceOpts = append(serviceOpts, selenium.StartFrameBufferWithOptions(selenium.FrameBufferOptions{
			ScreenSize: opts.ScreenSize(),
		}))
	}

	service, err := selenium.NewChromeDriverService(opts.DriverPath, port, serviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: starting chromedriver: %w", ErrStartup, err)
	}

	caps := selenium.Capabilities{"browserName": "chrome"}
	chromeCaps := chrome.Capabilities{Args: opts.ChromeArgs()}
	if opts.ChromePath != "" {
		chromeCaps.Path = opts.ChromePath
	}
	if opts.UserAgent != "" {
		chromeCaps.Args = append(chromeCaps.Args, "--user-agent="+opts.UserAgent)
	}
	caps.AddChrome(chromeCaps)

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		_ = service.Stop()
		return nil, fmt.Errorf("%w: creating webdriver session: %w", ErrStartup, err)
	}

	if err := wd.SetPageLoadTimeout(opts.PageTimeout); err != nil {
		_ = wd.Quit()
		_ = service.Stop()
		return nil, fmt.Errorf("%w: setting page load timeout: %w", ErrStartup, err)
	}

	return &chromeDriverSession{service: service, wd: wd}, nil
}

func (s *chromeDriverSession) Navigate(_ context.Context, url string) error {
	return s.wd.Get(url)
}

func (s *chromeDriverSession) URL() string {
	u, err := s.wd.CurrentURL()
	if err != nil {
		return ""
	}
	return u
}

func (s *chromeDriverSession) Elements(_ context.Context, selector string) ([]Element, error) {
	els, err := s.wd.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		return nil, err
	}
	return wrapWebElements(els), nil
}

// Close quits the browser, then stops chromedriver and the frame buffer.
func (s *chromeDriverSession) Close() error {
	s.closeOnce.Do(func() {
		quitErr := s.wd.Quit()
		stopErr := s.service.Stop()
		if quitErr != nil {
			s.closeErr = quitErr
			return
		}
		s.closeErr = stopErr
	})
	return s.closeErr
}

type webElement struct {
	el selenium.WebElement
}

func wrapWebElements(els []selenium.WebElement) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, webElement{el: el})
	}
	return out
}

func (e webElement) Text() (string, error) {
	return e.el.Text()
}

func (e webElement) Attr(name string) (string, bool, error) {
	v, err := e.el.GetAttribute(name)
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

func (e webElement) Elements(selector string) ([]Element, error) {
	els, err := e.el.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		return nil, err
	}
	return wrapWebElements(els), nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("reserving a port for chromedriver: %w", err)
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}
