package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/browser"
)

// Shared page helpers used by the browser-backed adapters. These replace a
// common base class: adapters compose whichever they need.

// FetchRenderedHTML navigates to url, waits until the given selector is
// visible and returns the rendered document.
func FetchRenderedHTML(ctx context.Context, sess *browser.Session, url, waitSelector string, timeout time.Duration) (string, error) {
	runCtx, cancel := context.WithTimeout(sess.Context(), timeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return html, nil
}

// ScrollToBottom scrolls the page to the end so lazily loaded entries are
// rendered before extraction.
func ScrollToBottom(sess *browser.Session, settle time.Duration) error {
	err := chromedp.Run(sess.Context(),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(settle),
	)
	if err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}
