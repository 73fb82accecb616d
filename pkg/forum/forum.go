// Package forum drives a Discuz-style board through a browser
// session: the popup login form with its age gate, the daily sign-in
// plugin, and the listing and quick-reply surfaces the humanizer
// walks. One Driver owns one browser session for exactly one run.
//
// Element access goes through ordered selector fallbacks so a minor
// template change degrades to the next selector instead of failing
// the run. The Chinese fragments in the selector tables are content
// signals from the board's stock templates, not translatable strings.
package forum

import (
	"context"
	"fmt"

	"github.com/lunarbay/rollcall/pkg/browser"
	"github.com/lunarbay/rollcall/pkg/config"
	"github.com/lunarbay/rollcall/pkg/logging"
	"github.com/lunarbay/rollcall/pkg/timing"
)

// Paths and section constants on the target board.
const (
	signPath    = "plugin.php?id=dd_sign"
	signNavPath = "plugin.php?id=dd_sign:index"

	// sectionID is the general discussion board used for browsing and
	// replies.
	sectionID = 95
)

// Driver runs the forum session.
type Driver struct {
	session *browser.Session
	cfg     *config.Config
	pace    *timing.Policy
	log     *logging.Logger
}

// New wires a driver over an already-launched browser session.
func New(session *browser.Session, cfg *config.Config, pace *timing.Policy, log *logging.Logger) *Driver {
	return &Driver{
		session: session,
		cfg:     cfg,
		pace:    pace,
		log:     log,
	}
}

// pageURL joins a board-relative path onto the configured base URL.
func (d *Driver) pageURL(path string) string {
	return d.cfg.Site.BaseURL + "/" + path
}

// sectionURL builds the listing URL for one page of the discussion
// section.
func (d *Driver) sectionURL(page int) string {
	u := fmt.Sprintf("%s/forum.php?mod=forumdisplay&fid=%d", d.cfg.Site.BaseURL, sectionID)
	if page > 1 {
		u = fmt.Sprintf("%s&page=%d", u, page)
	}
	return u
}

// CurrentURL returns the page URL the session is on.
func (d *Driver) CurrentURL() string {
	return d.session.URL()
}

// PageSource returns the serialized source of the current page.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.session.Content()
}

// Screenshot captures the current viewport.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.session.Screenshot()
}

// Close tears the underlying browser session down. Safe to call more
// than once and on every exit path.
func (d *Driver) Close() error {
	return d.session.Close()
}

// observePage feeds the current page weight to the timing policy so
// adaptive delays track what the site is serving.
func (d *Driver) observePage() {
	source, err := d.session.Content()
	if err != nil {
		return
	}
	d.pace.ObservePage(len(source))
}
