package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// StaticSession fetches pages over HTTP and answers queries with goquery.
// It sees the server-rendered DOM only, which is all anthology listings need.
type StaticSession struct {
	client    *http.Client
	userAgent string

	doc    *goquery.Document
	url    string
	status int

	closeOnce sync.Once
	closed    bool
}

func NewStaticSession(client *http.Client, userAgent string) *StaticSession {
	if client == nil {
		client = http.DefaultClient
	}
	return &StaticSession{client: client, userAgent: userAgent}
}

func (s *StaticSession) Navigate(ctx context.Context, url string) error {
	if s.closed {
		return fmt.Errorf("session closed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// Like a real browser, an error page is still a loaded page; an unknown
	// event shows up as a listing without entries.
	s.status = resp.StatusCode

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	s.doc = doc
	s.url = resp.Request.URL.String()
	return nil
}

// LoadHTML installs an already fetched document, as if Navigate had loaded it
// from pageURL.
func (s *StaticSession) LoadHTML(pageURL, html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	s.doc = doc
	s.url = pageURL
	return nil
}

func (s *StaticSession) URL() string {
	return s.url
}

// statusCode is the HTTP status of the last navigation, 0 before any.
func (s *StaticSession) statusCode() int {
	return s.status
}

func (s *StaticSession) Elements(_ context.Context, selector string) ([]Element, error) {
	if s.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	return wrapSelection(s.doc.Find(selector)), nil
}

func (s *StaticSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.doc = nil
	})
	return nil
}

type staticElement struct {
	sel *goquery.Selection
}

func wrapSelection(sel *goquery.Selection) []Element {
	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, staticElement{sel: s})
	})
	return elements
}

func (e staticElement) Text() (string, error) {
	return e.sel.Text(), nil
}

func (e staticElement) Attr(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e staticElement) Elements(selector string) ([]Element, error) {
	return wrapSelection(e.sel.Find(selector)), nil
}
