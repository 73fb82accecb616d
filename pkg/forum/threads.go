package forum

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"github.com/lunarbay/rollcall/pkg/browser"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/timing"
	"github.com/lunarbay/rollcall/pkg/types"
)

// Listing, pagination, and quick-reply selectors.
var (
	threadLinkSelectors = []string{
		"tbody[id^='normalthread'] a.xst",
		"a.xst",
		"th a[href*='thread-']",
	}

	nextPageSelectors = []string{
		"#fd_page_bottom .pg a.nxt",
		"#fd_page_top .pg a.nxt",
		"a.nxt",
		"a[title*='下一页']",
		"//a[contains(text(), '下一页')]",
	}

	replyBoxSelectors = []string{
		"#fastpostmessage",
		"textarea[name='message']",
		"#e_textarea",
		"textarea[id*='post']",
		"textarea[class*='reply']",
	}

	replySubmitSelectors = []string{
		"#fastpostsubmit",
		"input[name='replysubmit']",
		"button[type='submit']",
	}
)

const (
	// maxThreadsPerPage bounds how many listing rows are considered.
	maxThreadsPerPage = 20

	// minTitleRunes: titles at or below this length are noise rows
	// (sticky separators, ads).
	minTitleRunes = 4

	// maxTitleRunes truncates stored titles for logs and summaries.
	maxTitleRunes = 50
)

// readStages are the scroll depths of a person skimming a page: first
// glance, careful read, quick browse, then the bottom.
var readStages = []float64{0.15, 0.4, 0.7, 0.95}

// OpenSection navigates to the first page of the discussion section.
func (d *Driver) OpenSection(ctx context.Context) error {
	return d.OpenSectionPage(ctx, 1)
}

// OpenSectionPage navigates directly to one page of the section
// listing.
func (d *Driver) OpenSectionPage(ctx context.Context, page int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.session.Navigate(d.sectionURL(page), browser.NavigateOptions{}); err != nil {
		return rcerrors.NewTransientError("open-section", err)
	}
	if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
		return err
	}
	d.observePage()
	return nil
}

// NextPage advances the listing through its paginator. It reports
// false with no error when the paginator is absent, which on these
// boards means there is no further page.
func (d *Driver) NextPage(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	target := listingPage(d.session.URL()) + 1
	button, err := d.session.FindClickable(nextPageSelectors)
	if err != nil {
		return false, nil
	}

	if err := d.session.ClickElement(button, browser.ClickOptions{}); err == nil {
		if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
			return false, err
		}
		if listingPage(d.session.URL()) >= target {
			d.observePage()
			return true, nil
		}
	}

	// The click went nowhere. The paginator existed, so the page does
	// too; go directly.
	if err := d.OpenSectionPage(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// ListThreads extracts reply candidates from the current listing page.
func (d *Driver) ListThreads(ctx context.Context) ([]types.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := d.session.Content()
	if err != nil {
		return nil, rcerrors.NewTransientError("read-listing", err)
	}

	threads := extractThreads(source, d.cfg.Site.BaseURL)
	d.log.WithFields(map[string]any{"count": len(threads)}).Debug("threads extracted")
	return threads, nil
}

// OpenThread navigates to a thread and reads it the way a person
// would, in scroll stages with dwell pauses.
func (d *Driver) OpenThread(ctx context.Context, thread types.Thread) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.log.WithFields(map[string]any{"title": thread.Title}).Info("opening thread")
	if err := d.session.Navigate(thread.URL, browser.NavigateOptions{}); err != nil {
		return rcerrors.NewTransientError("open-thread", err)
	}
	if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
		return err
	}
	d.observePage()
	return d.readScroll(ctx)
}

// Reply posts a message through the quick-reply box of the open
// thread.
func (d *Driver) Reply(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	box, err := d.findReplyBox(ctx)
	if err != nil {
		return err
	}
	if err := d.session.FillElement(box, message); err != nil {
		return rcerrors.NewTransientError("fill-reply", err)
	}
	if err := d.pace.Wait(ctx, timing.Typing); err != nil {
		return err
	}

	submit, err := d.session.FindClickable(replySubmitSelectors)
	if err != nil {
		return rcerrors.NewTransientError("find-reply-submit", err)
	}
	if err := d.session.ClickElement(submit, browser.ClickOptions{}); err != nil {
		return rcerrors.NewTransientError("submit-reply", err)
	}
	d.log.Info("reply submitted")
	return d.pace.Wait(ctx, timing.PageLoad)
}

// BrowsePage reads the current listing page in human scroll stages.
func (d *Driver) BrowsePage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.readScroll(ctx)
}

// readScroll walks the page through the read stages with dwell pauses
// between them.
func (d *Driver) readScroll(ctx context.Context) error {
	for _, stage := range readStages {
		if err := d.session.ScrollTo(stage); err != nil {
			// Scrolling is cosmetic; keep going.
			d.log.Debug("scroll stage failed")
		}
		if err := d.pace.Wait(ctx, timing.Reading); err != nil {
			return err
		}
	}
	return nil
}

// findReplyBox looks for the quick-reply textarea in the viewport
// first, then scrolls to the bottom where the board renders it.
func (d *Driver) findReplyBox(ctx context.Context) (playwright.ElementHandle, error) {
	if box, err := d.session.FindClickable(replyBoxSelectors); err == nil {
		return box, nil
	}

	if err := d.session.ScrollToBottom(); err != nil {
		return nil, rcerrors.NewTransientError("scroll-to-reply", err)
	}
	if err := d.pace.Wait(ctx, timing.Scroll); err != nil {
		return nil, err
	}

	box, err := d.session.FindFirst(replyBoxSelectors)
	if err != nil {
		return nil, rcerrors.NewTransientError("find-reply-box", err)
	}
	return box, nil
}

// extractThreads pulls thread links out of listing markup, preferring
// normal thread rows and falling back to looser anchors. Short titles
// are noise rows; duplicate URLs collapse.
func extractThreads(source, baseURL string) []types.Thread {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(baseURL + "/")

	var threads []types.Thread
	seen := make(map[string]bool)

	for _, selector := range threadLinkSelectors {
		doc.Find(selector).EachWithBreak(func(i int, link *goquery.Selection) bool {
			if i >= maxThreadsPerPage {
				return false
			}

			href := strings.TrimSpace(link.AttrOr("href", ""))
			title := strings.TrimSpace(link.Text())
			if href == "" || utf8.RuneCountInString(title) <= minTitleRunes {
				return true
			}

			full := href
			if base != nil {
				if ref, err := url.Parse(href); err == nil {
					full = base.ResolveReference(ref).String()
				}
			}
			if seen[full] {
				return true
			}
			seen[full] = true

			threads = append(threads, types.Thread{Title: clipTitle(title), URL: full})
			return true
		})
		if len(threads) > 0 {
			break
		}
	}
	return threads
}

// clipTitle bounds a title to maxTitleRunes.
func clipTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleRunes {
		return title
	}
	return string(runes[:maxTitleRunes])
}

// listingPage extracts the page number from a listing URL, defaulting
// to 1.
func listingPage(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 1
	}
	if n, err := strconv.Atoi(u.Query().Get("page")); err == nil && n > 0 {
		return n
	}
	return 1
}
