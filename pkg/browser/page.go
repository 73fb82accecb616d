package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// ErrElementNotFound reports that none of the candidate selectors
// matched. Callers decide whether that is fatal; absence is a normal
// answer for optional page features.
var ErrElementNotFound = errors.New("element not found")

// Navigate drives the page to the given URL.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := s.Page.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Click clicks the first element matching the selector, scrolling it
// into view first and falling back to a JavaScript click when the
// regular click is intercepted by overlays.
func (s *Session) Click(selector string, opts ClickOptions) error {
	el, err := s.FindFirst([]string{selector})
	if err != nil {
		return err
	}
	return s.ClickElement(el, opts)
}

// ClickElement clicks an already-located element with the same
// scroll-and-fallback behavior as Click.
func (s *Session) ClickElement(el playwright.ElementHandle, opts ClickOptions) error {
	if !opts.NoScroll {
		// Best effort; a detached element will fail the click anyway.
		_ = el.ScrollIntoViewIfNeeded()
	}

	clickOpts := playwright.ElementHandleClickOptions{}
	if opts.Timeout > 0 {
		clickOpts.Timeout = &opts.Timeout
	}
	if err := el.Click(clickOpts); err != nil {
		if _, jsErr := s.Page.Evaluate("el => el.click()", el); jsErr != nil {
			return fmt.Errorf("click failed: %w", err)
		}
	}
	return nil
}

// Fill fills an input element with the specified value.
func (s *Session) Fill(selector, value string, opts FillOptions) error {
	playwrightOpts := playwright.PageFillOptions{}
	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if err := s.Page.Fill(selector, value, playwrightOpts); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// FillElement fills an already-located input element.
func (s *Session) FillElement(el playwright.ElementHandle, value string) error {
	if err := el.Fill(value); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// WaitFor blocks until an element matching the selector reaches the
// requested state and returns it.
func (s *Session) WaitFor(selector string, opts WaitOptions) (playwright.ElementHandle, error) {
	playwrightOpts := playwright.PageWaitForSelectorOptions{}

	if opts.State != "" {
		state := playwright.WaitForSelectorState(opts.State)
		playwrightOpts.State = &state
	}
	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	el, err := s.Page.WaitForSelector(normalizeSelector(selector), playwrightOpts)
	if err != nil {
		return nil, fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return el, nil
}

// FindFirst tries each candidate selector in order and returns the
// first present element. Selector errors are treated as non-matches so
// one malformed candidate cannot hide the rest of the list.
func (s *Session) FindFirst(selectors []string) (playwright.ElementHandle, error) {
	for _, sel := range selectors {
		el, err := s.Page.QuerySelector(normalizeSelector(sel))
		if err != nil || el == nil {
			continue
		}
		return el, nil
	}
	return nil, fmt.Errorf("%w: tried %s", ErrElementNotFound, strings.Join(selectors, ", "))
}

// FindClickable tries each candidate selector in order and returns the
// first element that is both visible and enabled.
func (s *Session) FindClickable(selectors []string) (playwright.ElementHandle, error) {
	for _, sel := range selectors {
		el, err := s.Page.QuerySelector(normalizeSelector(sel))
		if err != nil || el == nil {
			continue
		}
		visible, err := el.IsVisible()
		if err != nil || !visible {
			continue
		}
		enabled, err := el.IsEnabled()
		if err != nil || !enabled {
			continue
		}
		return el, nil
	}
	return nil, fmt.Errorf("%w: no clickable match among %s", ErrElementNotFound, strings.Join(selectors, ", "))
}

// Exists reports whether the selector currently matches an element.
func (s *Session) Exists(selector string) bool {
	el, err := s.Page.QuerySelector(normalizeSelector(selector))
	return err == nil && el != nil
}

// Text returns the trimmed text content of the first element matching
// the selector.
func (s *Session) Text(selector string) (string, error) {
	el, err := s.FindFirst([]string{selector})
	if err != nil {
		return "", err
	}
	content, err := el.TextContent()
	if err != nil {
		return "", fmt.Errorf("text extraction failed: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// Content returns the full serialized page source.
func (s *Session) Content() (string, error) {
	content, err := s.Page.Content()
	if err != nil {
		return "", fmt.Errorf("page source unavailable: %w", err)
	}
	return content, nil
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot() ([]byte, error) {
	shot, err := s.Page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return shot, nil
}

// URL returns the current page URL.
func (s *Session) URL() string {
	return s.Page.URL()
}

// Evaluate runs JavaScript in the page and returns its result.
func (s *Session) Evaluate(code string) (interface{}, error) {
	result, err := s.Page.Evaluate(code)
	if err != nil {
		return nil, fmt.Errorf("javascript execution failed: %w", err)
	}
	return result, nil
}

// normalizeSelector routes XPath-shaped selectors ("//..." or
// "(//...") through the xpath engine and leaves everything else to the
// CSS engine.
func normalizeSelector(sel string) string {
	if strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, "(//") {
		return "xpath=" + sel
	}
	return sel
}
