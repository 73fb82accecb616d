// Package config loads, normalizes, and validates the run
// configuration from the environment and an optional .env file.
//
// The configuration surface is the documented option list and nothing
// else: credentials and base URL, feature toggles for check-in,
// security question, replies and browsing, timing controls, Telegram
// delivery, and runtime limits. Values with documented floors
// (COMMENT_INTERVAL, MAX_RETRIES, TIMEOUT_MINUTES) are normalized on
// load; validation failures surface as ConfigError before any browser
// session starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
)

// Floors and clamps applied during normalization.
const (
	// MinCommentInterval bounds the request rate against the target
	// site. Configured values below it are raised, never honored.
	MinCommentInterval = 15 * time.Second

	// MinRetries keeps the retry safety net from being disabled by a
	// zero or negative MAX_RETRIES.
	MinRetries = 1

	// MinTimeout is the smallest whole-run budget.
	MinTimeout = 1 * time.Minute

	// MinMultiplier and MaxMultiplier clamp TIMING_MULTIPLIER.
	MinMultiplier = 0.1
	MaxMultiplier = 5.0
)

// defaultReplyMessages backs REPLY_MESSAGES when the variable is unset.
var defaultReplyMessages = []string{
	"Thanks for sharing!",
	"Great post, appreciated.",
	"Thanks for the update.",
	"Nice one, thank you.",
}

// SiteConfig holds the target forum and account.
type SiteConfig struct {
	// Username is the forum account name.
	Username string `yaml:"username" json:"username" validate:"required"`

	// Password is the forum account password.
	Password string `yaml:"-" json:"-" validate:"required"`

	// BaseURL is the forum root, scheme included.
	BaseURL string `yaml:"base_url" json:"base_url" validate:"required,http_url"`
}

// ChallengeConfig holds the optional security-question step.
type ChallengeConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Question is the expected prompt text. When set, a differing page
	// prompt is reported as a warning; when empty, any prompt is
	// answered without comparison.
	Question string `yaml:"question" json:"question"`

	// Answer is submitted when a question is present.
	Answer string `yaml:"-" json:"-"`
}

// HumanizeConfig holds the cosmetic browsing and reply behavior.
type HumanizeConfig struct {
	ReplyEnabled    bool          `yaml:"reply_enabled" json:"reply_enabled"`
	ReplyCount      int           `yaml:"reply_count" json:"reply_count" validate:"min=0"`
	BrowsingEnabled bool          `yaml:"browsing_enabled" json:"browsing_enabled"`
	BrowsePageCount int           `yaml:"browse_page_count" json:"browse_page_count" validate:"min=0"`
	CommentInterval time.Duration `yaml:"comment_interval" json:"comment_interval"`
	ReplyMessages   []string      `yaml:"reply_messages" json:"reply_messages"`
}

// TelegramConfig holds notification delivery settings.
type TelegramConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	BotToken       string `yaml:"-" json:"-"`
	ChatID         string `yaml:"-" json:"-"`
	ProxyURL       string `yaml:"-" json:"-"`
	SendLogFile    bool   `yaml:"send_log_file" json:"send_log_file"`
	SendScreenshot bool   `yaml:"send_screenshot" json:"send_screenshot"`
}

// TimingConfig holds pacing controls.
type TimingConfig struct {
	// Multiplier scales every delay class, clamped to [0.1, 5.0].
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// Smart enables page-complexity-adaptive delays.
	Smart bool `yaml:"smart" json:"smart"`

	// WaitAfterLogin is the settle delay once authentication lands.
	WaitAfterLogin time.Duration `yaml:"wait_after_login" json:"wait_after_login"`
}

// RuntimeConfig holds process-level limits and switches.
type RuntimeConfig struct {
	Headless   bool          `yaml:"headless" json:"headless"`
	LogLevel   string        `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// Config is the validated, immutable-per-run configuration snapshot.
type Config struct {
	Site           SiteConfig      `yaml:"site" json:"site"`
	CheckinEnabled bool            `yaml:"checkin_enabled" json:"checkin_enabled"`
	Challenge      ChallengeConfig `yaml:"challenge" json:"challenge"`
	Humanize       HumanizeConfig  `yaml:"humanize" json:"humanize"`
	Telegram       TelegramConfig  `yaml:"telegram" json:"telegram"`
	Timing         TimingConfig    `yaml:"timing" json:"timing"`
	Runtime        RuntimeConfig   `yaml:"runtime" json:"runtime"`
}

// DefaultConfig returns the configuration used when no environment
// overrides are present. Credentials and base URL have no defaults.
func DefaultConfig() *Config {
	return &Config{
		CheckinEnabled: true,
		Humanize: HumanizeConfig{
			ReplyCount:      1,
			BrowsePageCount: 3,
			CommentInterval: 60 * time.Second,
			ReplyMessages:   append([]string(nil), defaultReplyMessages...),
		},
		Timing: TimingConfig{
			Multiplier:     1.0,
			WaitAfterLogin: 5 * time.Second,
		},
		Runtime: RuntimeConfig{
			Headless:   true,
			LogLevel:   "info",
			MaxRetries: 3,
			Timeout:    10 * time.Minute,
		},
	}
}

// Load reads the optional .env file, applies environment overrides on
// top of DefaultConfig, normalizes floors, and validates. If path is
// empty the conventional ".env" is tried and a missing file is fine;
// an explicitly given path must exist.
func Load(path string) (*Config, error) {
	if path == "" {
		// Best effort: running without a .env file is normal when the
		// environment is set by the scheduler.
		_ = godotenv.Load()
	} else {
		if err := godotenv.Load(path); err != nil {
			return nil, rcerrors.NewConfigError("env-file", fmt.Sprintf("cannot load %s", path), err)
		}
	}

	cfg := DefaultConfig()
	cfg.fromEnv()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromEnv overlays documented environment variables onto the config.
func (c *Config) fromEnv() {
	c.Site.Username = envString("SITE_USERNAME", c.Site.Username)
	c.Site.Password = envString("SITE_PASSWORD", c.Site.Password)
	c.Site.BaseURL = strings.TrimRight(envString("BASE_URL", c.Site.BaseURL), "/")

	c.CheckinEnabled = envBool("ENABLE_CHECKIN", c.CheckinEnabled)

	c.Challenge.Enabled = envBool("ENABLE_SECURITY_QUESTION", c.Challenge.Enabled)
	c.Challenge.Question = envString("SECURITY_QUESTION", c.Challenge.Question)
	c.Challenge.Answer = envString("SECURITY_ANSWER", c.Challenge.Answer)

	c.Humanize.ReplyEnabled = envBool("ENABLE_REPLY", c.Humanize.ReplyEnabled)
	c.Humanize.ReplyCount = envInt("REPLY_COUNT", c.Humanize.ReplyCount)
	c.Humanize.BrowsingEnabled = envBool("ENABLE_RANDOM_BROWSING", c.Humanize.BrowsingEnabled)
	c.Humanize.BrowsePageCount = envInt("BROWSE_PAGE_COUNT", c.Humanize.BrowsePageCount)
	c.Humanize.CommentInterval = envSeconds("COMMENT_INTERVAL", c.Humanize.CommentInterval)
	if msgs := envList("REPLY_MESSAGES", ";"); len(msgs) > 0 {
		c.Humanize.ReplyMessages = msgs
	}

	c.Telegram.Enabled = envBool("ENABLE_TELEGRAM_NOTIFICATION", c.Telegram.Enabled)
	c.Telegram.BotToken = envString("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.ChatID = envString("TELEGRAM_CHAT_ID", c.Telegram.ChatID)
	c.Telegram.ProxyURL = envString("TELEGRAM_PROXY_URL", c.Telegram.ProxyURL)
	c.Telegram.SendLogFile = envBool("TELEGRAM_SEND_LOG_FILE", c.Telegram.SendLogFile)
	c.Telegram.SendScreenshot = envBool("TELEGRAM_SEND_SCREENSHOT", c.Telegram.SendScreenshot)

	c.Timing.Multiplier = envFloat("TIMING_MULTIPLIER", c.Timing.Multiplier)
	c.Timing.Smart = envBool("ENABLE_SMART_TIMING", c.Timing.Smart)
	c.Timing.WaitAfterLogin = envSeconds("WAIT_AFTER_LOGIN", c.Timing.WaitAfterLogin)

	c.Runtime.Headless = envBool("HEADLESS", c.Runtime.Headless)
	c.Runtime.LogLevel = strings.ToLower(envString("LOG_LEVEL", c.Runtime.LogLevel))
	c.Runtime.MaxRetries = envInt("MAX_RETRIES", c.Runtime.MaxRetries)
	c.Runtime.Timeout = envMinutes("TIMEOUT_MINUTES", c.Runtime.Timeout)
}

// Normalize applies the documented floors and clamps. It is invoked by
// Load and safe to call again on hand-built configs (tests, dry runs).
func (c *Config) Normalize() {
	if c.Humanize.CommentInterval < MinCommentInterval {
		c.Humanize.CommentInterval = MinCommentInterval
	}
	if c.Humanize.ReplyCount < 0 {
		c.Humanize.ReplyCount = 0
	}
	if c.Humanize.BrowsePageCount < 0 {
		c.Humanize.BrowsePageCount = 0
	}
	if c.Runtime.MaxRetries < MinRetries {
		c.Runtime.MaxRetries = MinRetries
	}
	if c.Runtime.Timeout < MinTimeout {
		c.Runtime.Timeout = MinTimeout
	}
	if c.Timing.Multiplier < MinMultiplier {
		c.Timing.Multiplier = MinMultiplier
	}
	if c.Timing.Multiplier > MaxMultiplier {
		c.Timing.Multiplier = MaxMultiplier
	}
	if c.Timing.WaitAfterLogin < 0 {
		c.Timing.WaitAfterLogin = 0
	}

	msgs := c.Humanize.ReplyMessages[:0]
	for _, m := range c.Humanize.ReplyMessages {
		if m = strings.TrimSpace(m); m != "" {
			msgs = append(msgs, m)
		}
	}
	c.Humanize.ReplyMessages = msgs
}

var validate = validator.New()

// Validate checks required fields and cross-field rules. The first
// violation is returned as a ConfigError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if fields, ok := err.(validator.ValidationErrors); ok && len(fields) > 0 {
			f := fields[0]
			return rcerrors.NewConfigError(optionName(f.StructNamespace()), fmt.Sprintf("failed %q constraint", f.Tag()), err)
		}
		return rcerrors.NewConfigError("", "invalid configuration", err)
	}

	if c.Challenge.Enabled && c.Challenge.Answer == "" {
		return rcerrors.NewConfigError("SECURITY_ANSWER", "required when ENABLE_SECURITY_QUESTION is true", nil)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return rcerrors.NewConfigError("TELEGRAM_BOT_TOKEN", "required when ENABLE_TELEGRAM_NOTIFICATION is true", nil)
		}
		if c.Telegram.ChatID == "" {
			return rcerrors.NewConfigError("TELEGRAM_CHAT_ID", "required when ENABLE_TELEGRAM_NOTIFICATION is true", nil)
		}
	}
	if c.Humanize.ReplyEnabled && len(c.Humanize.ReplyMessages) == 0 {
		return rcerrors.NewConfigError("REPLY_MESSAGES", "at least one message is required when ENABLE_REPLY is true", nil)
	}
	return nil
}

// optionName maps a validator struct namespace back to the documented
// environment variable where one exists.
func optionName(namespace string) string {
	switch namespace {
	case "Config.Site.Username":
		return "SITE_USERNAME"
	case "Config.Site.Password":
		return "SITE_PASSWORD"
	case "Config.Site.BaseURL":
		return "BASE_URL"
	case "Config.Humanize.ReplyCount":
		return "REPLY_COUNT"
	case "Config.Humanize.BrowsePageCount":
		return "BROWSE_PAGE_COUNT"
	case "Config.Runtime.LogLevel":
		return "LOG_LEVEL"
	default:
		return namespace
	}
}
