// Package browser owns the Playwright lifecycle and the low-level
// page primitives the forum driver builds on: navigation, fallback
// element lookup, clicking with a JS fallback, form filling, staged
// scrolling, screenshots, and page-source sanitizing. Nothing in here
// knows about forums; it is the opaque page-automation capability.
package browser

import (
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Session is the single live browser session for a run. It owns the
// browser, its context, and one page; Close tears all of them down.
type Session struct {
	// Browser is the Playwright browser instance.
	Browser playwright.Browser

	// Context is the isolated browser context.
	Context playwright.BrowserContext

	// Page is the active page all operations target.
	Page playwright.Page

	pw        *playwright.Playwright
	closeOnce sync.Once
}

// Options configures session launch.
type Options struct {
	// Headless controls whether the browser runs without a window.
	Headless bool

	// UserAgent overrides the context user agent. Empty keeps
	// DefaultUserAgent.
	UserAgent string

	// Viewport sets the page size. Nil means the default desktop size.
	Viewport *Viewport

	// Timeout is the default per-operation timeout in milliseconds.
	// Zero means DefaultTimeout.
	Timeout float64

	// InstallBrowsers runs the Playwright browser download on launch.
	// Leave false when the environment pre-installs them.
	InstallBrowsers bool
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when navigation counts as done:
	// "load", "domcontentloaded", or "networkidle".
	WaitUntil string

	// Timeout in milliseconds (0 means the session default).
	Timeout float64
}

// ClickOptions configures element clicking behavior.
type ClickOptions struct {
	// Timeout in milliseconds (0 means the session default).
	Timeout float64

	// NoScroll skips the scroll-into-view before the click.
	NoScroll bool
}

// FillOptions configures form input filling.
type FillOptions struct {
	// Timeout in milliseconds (0 means the session default).
	Timeout float64
}

// WaitOptions configures waiting for an element state.
type WaitOptions struct {
	// State to wait for: "attached", "detached", "visible", "hidden".
	State string

	// Timeout in milliseconds (0 means the session default).
	Timeout float64
}

// Defaults for session launch and operations.
const (
	DefaultTimeout        = 30000.0 // milliseconds
	DefaultViewportWidth  = 1366
	DefaultViewportHeight = 900

	// DefaultUserAgent is a current desktop Chrome signature; headless
	// defaults advertise automation and trip bot heuristics.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)
