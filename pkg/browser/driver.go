package browser

import (
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"
)

// launchArgs keep Chromium stable in containers and soften the most
// common automation tells.
var launchArgs = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-blink-features=AutomationControlled",
	"--disable-gpu",
}

// Launch starts Playwright, launches Chromium, and opens the single
// page the run will use. The caller owns the returned session and
// must Close it on every exit path.
func Launch(opts Options) (*Session, error) {
	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	// Discard driver chatter so it cannot interleave with run output.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if opts.InstallBrowsers {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args:     launchArgs,
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
		UserAgent: &opts.UserAgent,
	}
	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(opts.Timeout)

	return &Session{
		Browser: browser,
		Context: context,
		Page:    page,
		pw:      pw,
	}, nil
}

// Close tears the session down: page, context, browser, then the
// Playwright driver. Safe to call repeatedly; later calls are no-ops.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	s.closeOnce.Do(func() {
		if s.Page != nil {
			if err := s.Page.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to close page: %w", err)
			}
		}
		if s.Context != nil {
			if err := s.Context.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to close context: %w", err)
			}
		}
		if s.Browser != nil {
			if err := s.Browser.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to close browser: %w", err)
			}
		}
		if s.pw != nil {
			if err := s.pw.Stop(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to stop playwright: %w", err)
			}
		}
	})
	return firstErr
}
