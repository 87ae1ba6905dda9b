package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"anthology-downloader/internal/browser"
	"anthology-downloader/internal/normalize"
)

// ErrExtraction wraps query failures while walking the listing. A page
// without entries is not an error.
var ErrExtraction = errors.New("extraction failed")

type Scraper struct {
	selectors *Selectors
	delay     time.Duration
}

func NewScraper(selectors *Selectors, delay time.Duration) *Scraper {
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	return &Scraper{
		selectors: selectors,
		delay:     delay,
	}
}

// Entries walks the loaded page lazily, in page order. Each pdf link becomes
// its own Entry carrying the title of its container; a container without one
// yields a single title-only Entry. After the consumer handles an entry the
// iterator pauses for the configured delay.
//
// A failed container query ends the sequence with an ErrExtraction error. A
// failure inside one container is yielded and the walk goes on. The sequence
// stops silently when ctx is cancelled.
func (s *Scraper) Entries(ctx context.Context, session browser.Session) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		containers, err := session.Elements(ctx, s.selectors.EntrySelector)
		if err != nil {
			yield(Entry{}, fmt.Errorf("%w: querying %q: %w", ErrExtraction, s.selectors.EntrySelector, err))
			return
		}

		pageURL := session.URL()
		for i, container := range containers {
			entries, err := s.parseContainer(container, pageURL, i)
			if err != nil {
				if !yield(Entry{Index: i}, err) {
					return
				}
				continue
			}

			for _, entry := range entries {
				if !yield(entry, nil) {
					return
				}
				if Pause(ctx, s.delay) != nil {
					return
				}
			}
		}
	}
}

// collect drains Entries into a slice, stopping at the first error.
func (s *Scraper) collect(ctx context.Context, session browser.Session) ([]Entry, error) {
	var out []Entry
	for entry, err := range s.Entries(ctx, session) {
		if err != nil {
			return out, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Scraper) parseContainer(container browser.Element, pageURL string, index int) ([]Entry, error) {
	title, err := trySelectors(container, s.selectors.TitleSelectors)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %d title: %w", ErrExtraction, index, err)
	}

	links, err := container.Elements(s.selectors.LinkSelector)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %d links: %w", ErrExtraction, index, err)
	}

	var entries []Entry
	for _, link := range links {
		label, err := link.Text()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d link label: %w", ErrExtraction, index, err)
		}
		if strings.TrimSpace(label) != s.selectors.PDFLabel {
			continue
		}

		href, ok, err := link.Attr("href")
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d href: %w", ErrExtraction, index, err)
		}
		pdfURL := normalize.ResolveURL(pageURL, href)
		if !ok || pdfURL == "" {
			continue
		}

		entries = append(entries, Entry{Title: title, PDFURL: pdfURL, Index: index})
	}

	if len(entries) == 0 {
		entries = append(entries, Entry{Title: title, Index: index})
	}
	return entries, nil
}

// trySelectors returns the first non-empty text among the fallback selectors.
func trySelectors(el browser.Element, selectors []string) (string, error) {
	for _, selector := range selectors {
		found, err := el.Elements(selector)
		if err != nil {
			return "", err
		}
		if len(found) == 0 {
			continue
		}
		text, err := found[0].Text()
		if err != nil {
			return "", err
		}
		if text = normalize.CleanText(text); text != "" {
			return text, nil
		}
	}
	return "", nil
}
