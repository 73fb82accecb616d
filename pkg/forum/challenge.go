package forum

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/lunarbay/rollcall/pkg/browser"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/timing"
	"github.com/lunarbay/rollcall/pkg/types"
)

// Security question form selectors.
const questionSelectPrimary = "select[name='questionid']"

var (
	questionSelectSelectors = []string{questionSelectPrimary, "#questionid"}
	answerInputSelectors    = []string{"input[name='answer']", "#answer"}
)

// wrongAnswerSignal is the rejection text for a bad security answer.
const wrongAnswerSignal = "安全提问答案错误"

// ResolveChallenge answers the login security question. Login leaves
// the form open with credentials filled when a question select is
// present; the resolver picks the configured question, fills the
// answer, submits, and verifies the login completed. An account that
// is not asked a question this session resolves as success with
// ChallengeState.Present false. A page prompt that differs from the
// configured question is reported through ChallengeState.Mismatch,
// not treated as fatal; a missing answer field is.
func (d *Driver) ResolveChallenge(ctx context.Context) (types.ChallengeState, error) {
	state := types.ChallengeState{}
	if err := ctx.Err(); err != nil {
		return state, err
	}

	sel, selErr := d.session.FindFirst(questionSelectSelectors)
	answer, ansErr := d.session.FindFirst(answerInputSelectors)
	if selErr != nil && ansErr != nil {
		if d.isLoggedIn() {
			// Login saw no question select and completed on its own.
			d.log.Info("no security question presented")
			return state, nil
		}
		return state, rcerrors.NewChallengeError(d.cfg.Challenge.Question,
			"no security question form on the page", ansErr)
	}
	state.Present = true

	if ansErr != nil {
		return state, rcerrors.NewChallengeError(d.cfg.Challenge.Question,
			"answer field not found", ansErr)
	}

	if selErr == nil {
		question, matched := d.selectQuestion(sel)
		state.Question = question
		state.Mismatch = d.cfg.Challenge.Question != "" && !matched
		if state.Mismatch {
			d.log.WithFields(map[string]any{"page_question": question}).
				Warn("configured security question not found on the page")
		}
	}

	if err := d.session.FillElement(answer, d.cfg.Challenge.Answer); err != nil {
		return state, rcerrors.NewChallengeError(state.Question, "cannot fill the answer field", err)
	}
	state.Answer = d.cfg.Challenge.Answer
	if err := d.pace.Wait(ctx, timing.Typing); err != nil {
		return state, err
	}

	if err := d.submitChallenge(ctx); err != nil {
		return state, err
	}
	d.log.Info("security question answered")
	return state, nil
}

// selectQuestion picks the option whose text contains the configured
// question. It returns the option text it settled on and whether any
// option matched; with no configured question the selection is left
// as the form rendered it.
func (d *Driver) selectQuestion(sel playwright.ElementHandle) (string, bool) {
	want := d.cfg.Challenge.Question
	if want == "" {
		return "", false
	}

	options, err := d.session.Page.QuerySelectorAll(questionSelectPrimary + " option")
	if err != nil || len(options) == 0 {
		return "", false
	}

	for _, opt := range options {
		text, err := opt.TextContent()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if !strings.Contains(text, want) {
			continue
		}

		value, err := opt.GetAttribute("value")
		if err != nil {
			continue
		}
		if _, err := sel.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}}); err != nil {
			d.log.Warn(fmt.Sprintf("cannot select question option %q", text))
			return text, true
		}
		return text, true
	}
	return "", false
}

// submitChallenge submits the form and verifies the login landed.
func (d *Driver) submitChallenge(ctx context.Context) error {
	submit, err := d.session.FindClickable(loginSubmitSelectors)
	if err != nil {
		return rcerrors.NewChallengeError(d.cfg.Challenge.Question, "submit button not found", err)
	}
	if err := d.session.ClickElement(submit, browser.ClickOptions{}); err != nil {
		return rcerrors.NewTransientError("submit-challenge", err)
	}
	if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
		return err
	}
	d.observePage()

	if msg, lockout := d.scanLoginError(); msg != "" {
		if lockout {
			return rcerrors.NewLockoutError(msg)
		}
		if strings.Contains(msg, wrongAnswerSignal) {
			return rcerrors.NewChallengeError(d.cfg.Challenge.Question, "the answer was rejected", nil)
		}
		return rcerrors.NewAuthError(msg, nil)
	}
	if !d.isLoggedIn() {
		return rcerrors.NewChallengeError(d.cfg.Challenge.Question,
			"login did not complete after answering", nil)
	}
	return nil
}
