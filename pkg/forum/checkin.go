package forum

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lunarbay/rollcall/pkg/browser"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/timing"
	"github.com/lunarbay/rollcall/pkg/types"
)

// Sign-in plugin selectors and signals.
var (
	signNavSelectors = []string{
		`a[href="plugin.php?id=dd_sign:index"]`,
		`a[href*="dd_sign"]`,
	}

	signButtonSelectors = []string{
		"div.ddpc_sign_btna a.ddpc_sign_btn_red",
		"a.ddpc_sign_btn_red",
		`a[class*="sign_btn"]`,
		`a[href*="sign"]`,
	}

	captchaInputSelectors = []string{
		`input[name="secanswer"]`,
		`input[id*="secqaaverify"]`,
	}

	captchaSubmitSelectors = []string{
		"#fwin_dd_sign button[type='submit']",
		"button[type='submit']",
	}
)

const (
	signAreaSelector    = "div.ddpc_sign_btna"
	signedButtonClass   = "ddpc_sign_btn_grey"
	eligibleButtonClass = "ddpc_sign_btn_red"

	// signedSignal is the grey button's "signed in today" label.
	signedSignal = "今日已签到"

	signNavAttempts = 3
)

// mathCaptcha matches the arithmetic prompt in the verification
// dialog.
var mathCaptcha = regexp.MustCompile(`(\d+)\s*([+\-*/])\s*(\d+)`)

// captchaProbe pulls the arithmetic question out of the rendered page
// text. Matching rendered text instead of markup survives the
// plugin's nested dialog layout.
const captchaProbe = `() => {
	const m = document.body.innerText.match(/(\d+)\s*[+\-*\/]\s*(\d+)\s*=\s*\?/);
	return m ? m[0] : '';
}`

// DetectCheckin opens the sign-in plugin page and classifies today's
// state from the sign button block.
func (d *Driver) DetectCheckin(ctx context.Context) (types.CheckinState, error) {
	if err := ctx.Err(); err != nil {
		return types.CheckinUnknown, err
	}

	if err := d.openSignPage(ctx); err != nil {
		return types.CheckinUnknown, err
	}

	source, err := d.session.Content()
	if err != nil {
		return types.CheckinUnknown, rcerrors.NewTransientError("read-sign-page", err)
	}
	d.pace.ObservePage(len(source))

	state := classifyCheckin(source)
	d.log.WithFields(map[string]any{"state": string(state)}).Info("check-in state detected")
	return state, nil
}

// SubmitCheckin clicks the active sign button and passes the
// arithmetic verification dialog when one appears. Whether the state
// actually changed is the caller's re-detect pass to decide.
func (d *Driver) SubmitCheckin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	button, err := d.session.FindClickable(signButtonSelectors)
	if err != nil {
		return rcerrors.NewTransientError("find-sign-button", err)
	}
	if err := d.session.ClickElement(button, browser.ClickOptions{}); err != nil {
		return rcerrors.NewTransientError("click-sign-button", err)
	}
	if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
		return err
	}

	question, err := d.findCaptchaQuestion()
	if err != nil {
		return rcerrors.NewTransientError("probe-captcha", err)
	}
	if question == "" {
		d.log.Debug("no verification question, the sign click stands alone")
		return nil
	}
	return d.solveCaptcha(ctx, question)
}

// openSignPage reaches the sign-in plugin page from home, preferring
// the nav link and falling back to the direct URL, verifying the
// landing URL each attempt.
func (d *Driver) openSignPage(ctx context.Context) error {
	if err := d.session.Navigate(d.cfg.Site.BaseURL, browser.NavigateOptions{}); err != nil {
		return rcerrors.NewTransientError("open-home", err)
	}
	if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= signNavAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if link, err := d.session.FindClickable(signNavSelectors); err == nil {
			if err := d.session.ClickElement(link, browser.ClickOptions{}); err == nil {
				if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
					return err
				}
				if d.onSignPage() {
					return nil
				}
			}
		}

		if err := d.session.Navigate(d.pageURL(signNavPath), browser.NavigateOptions{}); err != nil {
			lastErr = err
		} else {
			if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
				return err
			}
			if d.onSignPage() {
				return nil
			}
		}
		d.log.WithFields(map[string]any{"attempt": attempt, "url": d.CurrentURL()}).
			Warn("sign-in page not reached")
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("landed on %s", d.CurrentURL())
	}
	return rcerrors.NewTransientError("open-sign-page", lastErr)
}

// onSignPage reports whether the session is on the sign-in plugin
// page.
func (d *Driver) onSignPage() bool {
	return strings.Contains(d.session.URL(), signPath)
}

// findCaptchaQuestion returns the arithmetic question text, empty when
// the dialog carries none.
func (d *Driver) findCaptchaQuestion() (string, error) {
	result, err := d.session.Evaluate(captchaProbe)
	if err != nil {
		return "", err
	}
	question, _ := result.(string)
	return strings.TrimSpace(question), nil
}

// solveCaptcha computes and submits the arithmetic answer.
func (d *Driver) solveCaptcha(ctx context.Context, question string) error {
	answer, err := solveMathChallenge(question)
	if err != nil {
		return rcerrors.NewTransientError("solve-captcha", err)
	}
	d.log.WithFields(map[string]any{"question": question}).Info("answering verification question")

	input, err := d.session.FindFirst(captchaInputSelectors)
	if err != nil {
		return rcerrors.NewTransientError("find-captcha-input", err)
	}
	if err := d.session.FillElement(input, strconv.Itoa(answer)); err != nil {
		return rcerrors.NewTransientError("fill-captcha", err)
	}
	if err := d.pace.Wait(ctx, timing.Typing); err != nil {
		return err
	}

	if submit, err := d.session.FindClickable(captchaSubmitSelectors); err == nil {
		if err := d.session.ClickElement(submit, browser.ClickOptions{}); err != nil {
			return rcerrors.NewTransientError("submit-captcha", err)
		}
	} else if perr := input.Press("Enter"); perr != nil {
		return rcerrors.NewTransientError("submit-captcha", perr)
	}
	return d.pace.Wait(ctx, timing.PageLoad)
}

// classifyCheckin reads the sign button block: the grey button with
// the signed-today label means done, the red button means a check-in
// can be submitted, anything else is unknown.
func classifyCheckin(source string) types.CheckinState {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return types.CheckinUnknown
	}

	state := types.CheckinUnknown
	doc.Find(signAreaSelector + " a").EachWithBreak(func(_ int, btn *goquery.Selection) bool {
		class := btn.AttrOr("class", "")
		text := strings.TrimSpace(btn.Text())

		switch {
		case strings.Contains(class, signedButtonClass) && strings.Contains(text, signedSignal):
			state = types.CheckinAlreadyDone
			return false
		case strings.Contains(class, eligibleButtonClass):
			state = types.CheckinEligible
			return false
		}
		return true
	})
	return state
}

// solveMathChallenge evaluates the "N op M" arithmetic in the question
// text. Division is integer division, matching how the plugin checks
// answers.
func solveMathChallenge(question string) (int, error) {
	m := mathCaptcha.FindStringSubmatch(question)
	if m == nil {
		return 0, fmt.Errorf("no arithmetic expression in %q", question)
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[3])

	switch m[2] {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, fmt.Errorf("division by zero in %q", question)
		}
		return a / b, nil
	}
	return 0, fmt.Errorf("unsupported operator %q", m[2])
}
