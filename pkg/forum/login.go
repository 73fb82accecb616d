package forum

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lunarbay/rollcall/pkg/browser"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/timing"
)

// Login form and status selectors, ordered most to least specific.
var (
	ageGateSelectors = []string{
		"a[href*='agecheck']",
		"//a[contains(text(), '满18岁')]",
		"//a[contains(text(), '请点此进入')]",
	}

	loginButtonSelectors = []string{
		"//button[@type='submit']//em[contains(text(), '登录')]/..",
		"//button[contains(text(), '登录')]",
		"#loginsubmit",
	}

	usernameSelectors = []string{
		"#fwin_login input[name='username']",
		"#username",
		"input[name='username']",
	}

	passwordSelectors = []string{
		"#fwin_login input[name='password']",
		"#password",
		"input[name='password']",
	}

	loginSubmitSelectors = []string{
		"#fwin_login button[type='submit']",
		"button[type='submit']",
		"#loginsubmit",
	}

	loggedInSelectors = []string{
		"//a[contains(@href, 'logging.php?action=logout')]",
		"//a[contains(text(), '退出')]",
		".vwmy",
	}

	loginErrorSelectors = []string{
		"#ntcwin .pc_inner i",
		".alert_error",
		".error",
	}
)

// lockoutSignal is the page text shown when the board temporarily
// locks an account after too many failed passwords.
const lockoutSignal = "密码错误次数过多"

// loginErrorSignals identify a rejected login in the page source.
var loginErrorSignals = []string{
	"用户名或密码错误",
	"账号已被禁用",
	"验证码错误",
	"安全提问答案错误",
	"登录失败",
	"请重新登录",
}

// errorKeywords qualify banner text as an actual failure message.
var errorKeywords = []string{"错误", "失败", "禁用"}

// lockoutDetail extracts the exact lockout message out of the error
// handler call the board embeds in the response.
var lockoutDetail = regexp.MustCompile(`errorhandle_login\('([^']+)'`)

// Login opens the board, passes the age gate, and authenticates
// through the popup form. When the security-question feature is on and
// the form carries a question select, the form is left open with
// credentials filled for ResolveChallenge to finish.
func (d *Driver) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.log.WithFields(map[string]any{"url": d.cfg.Site.BaseURL}).Info("opening forum home")
	if err := d.session.Navigate(d.cfg.Site.BaseURL, browser.NavigateOptions{}); err != nil {
		return rcerrors.NewTransientError("open-home", err)
	}
	if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
		return err
	}
	d.observePage()

	d.passAgeGate(ctx)

	if d.isLoggedIn() {
		d.log.Info("session already authenticated")
		return nil
	}

	if err := d.openLoginForm(ctx); err != nil {
		return err
	}
	if err := d.fillCredentials(ctx); err != nil {
		return err
	}

	if d.cfg.Challenge.Enabled && d.session.Exists(questionSelectPrimary) {
		// The security question lives in the same form; the challenge
		// step answers it and submits.
		d.log.Debug("security question present, leaving form open for the challenge step")
		return nil
	}

	return d.submitLogin(ctx)
}

// passAgeGate clicks through the age-verification interstitial when
// the board shows one. Absence is the normal case.
func (d *Driver) passAgeGate(ctx context.Context) {
	el, err := d.session.FindFirst(ageGateSelectors)
	if err != nil {
		d.log.Debug("no age verification gate")
		return
	}

	d.log.Info("passing age verification gate")
	if err := d.session.ClickElement(el, browser.ClickOptions{}); err != nil {
		d.log.Warn("age gate click failed, continuing")
		return
	}
	_ = d.pace.Wait(ctx, timing.PageLoad)
	d.observePage()
}

// openLoginForm clicks the login button and waits for the popup.
func (d *Driver) openLoginForm(ctx context.Context) error {
	button, err := d.session.FindClickable(loginButtonSelectors)
	if err != nil {
		return rcerrors.NewAuthError("login button not found", err)
	}
	if err := d.session.ClickElement(button, browser.ClickOptions{}); err != nil {
		return rcerrors.NewTransientError("open-login-form", err)
	}
	if err := d.pace.Wait(ctx, timing.Click); err != nil {
		return err
	}

	if _, err := d.session.WaitFor("#fwin_login", browser.WaitOptions{Timeout: 5000}); err != nil {
		// Some templates render the form inline instead of a popup.
		d.log.Warn("login popup did not appear, trying inline form")
	}
	return nil
}

// fillCredentials types the username and password into the open form.
func (d *Driver) fillCredentials(ctx context.Context) error {
	user, err := d.session.FindFirst(usernameSelectors)
	if err != nil {
		return rcerrors.NewAuthError("username field not found", err)
	}
	if err := d.session.FillElement(user, d.cfg.Site.Username); err != nil {
		return rcerrors.NewTransientError("fill-username", err)
	}
	if err := d.pace.Wait(ctx, timing.Typing); err != nil {
		return err
	}

	pass, err := d.session.FindFirst(passwordSelectors)
	if err != nil {
		return rcerrors.NewAuthError("password field not found", err)
	}
	if err := d.session.FillElement(pass, d.cfg.Site.Password); err != nil {
		return rcerrors.NewTransientError("fill-password", err)
	}
	return d.pace.Wait(ctx, timing.Typing)
}

// submitLogin submits the open form and verifies the outcome.
func (d *Driver) submitLogin(ctx context.Context) error {
	submit, err := d.session.FindClickable(loginSubmitSelectors)
	if err != nil {
		return rcerrors.NewAuthError("login submit button not found", err)
	}
	if err := d.session.ClickElement(submit, browser.ClickOptions{}); err != nil {
		return rcerrors.NewTransientError("submit-login", err)
	}
	if err := d.pace.Wait(ctx, timing.PageLoad); err != nil {
		return err
	}
	d.observePage()
	return d.verifyLogin()
}

// verifyLogin checks the post-submit page for lockout text, known
// error banners, and finally a logged-in indicator.
func (d *Driver) verifyLogin() error {
	if msg, lockout := d.scanLoginError(); msg != "" {
		if lockout {
			return rcerrors.NewLockoutError(msg)
		}
		return rcerrors.NewAuthError(msg, nil)
	}
	if d.isLoggedIn() {
		d.log.Info("login verified")
		return nil
	}
	return rcerrors.NewAuthError("no logged-in indicator after submit", nil)
}

// isLoggedIn looks for the account name in the member bar first, then
// for generic logged-in indicators.
func (d *Driver) isLoggedIn() bool {
	nameSelectors := []string{
		fmt.Sprintf("//strong[contains(text(), '%s')]", d.cfg.Site.Username),
		fmt.Sprintf("//a[contains(text(), '%s')]", d.cfg.Site.Username),
		".vwmy strong",
	}
	if el, err := d.session.FindFirst(nameSelectors); err == nil {
		if text, err := el.TextContent(); err == nil && strings.Contains(text, d.cfg.Site.Username) {
			return true
		}
	}

	_, err := d.session.FindFirst(loggedInSelectors)
	return err == nil
}

// scanLoginError inspects the current page for login failure text. It
// returns the message and whether it indicates an account lockout.
func (d *Driver) scanLoginError() (string, bool) {
	source, err := d.session.Content()
	if err != nil {
		return "", false
	}

	if msg, lockout := matchLoginError(source); msg != "" {
		return msg, lockout
	}

	// Error banners render outside the form; only keyword-bearing text
	// counts, the containers exist on healthy pages too.
	for _, sel := range loginErrorSelectors {
		text, err := d.session.Text(sel)
		if err != nil || text == "" {
			continue
		}
		for _, keyword := range errorKeywords {
			if strings.Contains(text, keyword) {
				return text, false
			}
		}
	}
	return "", false
}

// matchLoginError scans page source for the lockout signal and the
// known rejection messages.
func matchLoginError(source string) (string, bool) {
	if strings.Contains(source, lockoutSignal) {
		if m := lockoutDetail.FindStringSubmatch(source); m != nil {
			return m[1], true
		}
		return lockoutSignal, true
	}

	for _, signal := range loginErrorSignals {
		if strings.Contains(source, signal) {
			return signal, false
		}
	}
	return "", false
}
