package config

import "strings"

// Mask hides a secret while keeping it recognizable in logs: values of
// four characters or fewer become "***", longer values keep their
// first and last two characters with the middle starred out.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= 4 {
		return "***"
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}

// Redacted returns a loggable view of the configuration with every
// secret-bearing value masked. It is what reaches the debug log and
// the dry-run output; the raw Config never does.
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		"base_url":          c.Site.BaseURL,
		"username":          c.Site.Username,
		"password":          Mask(c.Site.Password),
		"checkin":           boolWord(c.CheckinEnabled),
		"security_question": boolWord(c.Challenge.Enabled),
		"security_answer":   Mask(c.Challenge.Answer),
		"reply":             boolWord(c.Humanize.ReplyEnabled),
		"random_browsing":   boolWord(c.Humanize.BrowsingEnabled),
		"telegram":          boolWord(c.Telegram.Enabled),
		"telegram_token":    Mask(c.Telegram.BotToken),
		"telegram_chat_id":  Mask(c.Telegram.ChatID),
		"telegram_proxy":    Mask(c.Telegram.ProxyURL),
		"headless":          boolWord(c.Runtime.Headless),
		"log_level":         c.Runtime.LogLevel,
		"smart_timing":      boolWord(c.Timing.Smart),
	}
}

func boolWord(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Masker rewrites raw secret occurrences out of free-form text before
// it reaches a log line, an artifact, or a notification sink.
type Masker struct {
	secrets []string
}

// NewMasker collects the non-empty secrets from the configuration.
func NewMasker(cfg *Config) *Masker {
	m := &Masker{}
	for _, s := range []string{
		cfg.Site.Password,
		cfg.Challenge.Answer,
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.Telegram.ProxyURL,
	} {
		if s != "" {
			m.secrets = append(m.secrets, s)
		}
	}
	return m
}

// Redact replaces each known secret in text with its masked form.
func (m *Masker) Redact(text string) string {
	if m == nil {
		return text
	}
	for _, s := range m.secrets {
		if strings.Contains(text, s) {
			text = strings.ReplaceAll(text, s, Mask(s))
		}
	}
	return text
}
