package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anthology-downloader/internal/browser"
)

// DefaultURLTemplate takes the lower-cased event name and the year.
const DefaultURLTemplate = "https://aclweb.org/anthology/events/%s-%s/"

// ErrNavigation wraps a failure to load the listing page. It aborts the run.
var ErrNavigation = errors.New("navigation failed")

// BuildURL returns the listing page of an event, e.g. ("ACL", "2020") ->
// https://aclweb.org/anthology/events/acl-2020/. Nothing is validated; an
// unknown event simply yields a page without entries.
func BuildURL(eventName, year string) string {
	return BuildURLFromTemplate(DefaultURLTemplate, eventName, year)
}

func BuildURLFromTemplate(template, eventName, year string) string {
	return fmt.Sprintf(template, strings.ToLower(eventName), year)
}

// Navigate loads url and then waits delay for late rendering.
func Navigate(ctx context.Context, session browser.Session, url string, delay time.Duration) error {
	if err := session.Navigate(ctx, url); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return Pause(ctx, delay)
}

// Pause blocks for d or until ctx is done.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
