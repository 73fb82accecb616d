package notify

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lunarbay/rollcall/pkg/config"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/logging"
)

// DefaultAPIBase is the Telegram Bot API endpoint used when no proxy
// is configured.
const DefaultAPIBase = "https://api.telegram.org"

const telegramTimeout = 30 * time.Second

// NormalizeAPIBase turns a configured proxy URL into a usable API
// base. An empty value selects the official endpoint; a bare host
// gets an https scheme; trailing slashes are dropped.
func NormalizeAPIBase(proxyURL string) string {
	base := strings.TrimSpace(proxyURL)
	if base == "" {
		return DefaultAPIBase
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}

// TelegramOptions configures the Telegram sink.
type TelegramOptions struct {
	BotToken       string
	ChatID         string
	ProxyURL       string
	SendLogFile    bool
	SendScreenshot bool
	Logger         *logging.Logger
}

// Telegram delivers run reports through the Telegram Bot API. The
// summary message is the delivery contract; attachments are sent
// best-effort and their failures never fail the sink.
type Telegram struct {
	chatID         string
	sendLogFile    bool
	sendScreenshot bool
	client         *resty.Client
	log            *logging.Logger
}

// NewTelegram validates the credentials and builds the API client.
// The bot token is baked into the base URL and never appears in logs.
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if opts.BotToken == "" {
		return nil, rcerrors.NewConfigError("telegram_bot_token", "bot token is required when telegram is enabled", nil)
	}
	if opts.ChatID == "" {
		return nil, rcerrors.NewConfigError("telegram_chat_id", "chat id is required when telegram is enabled", nil)
	}

	base := NormalizeAPIBase(opts.ProxyURL)
	client := resty.New().
		SetBaseURL(base + "/bot" + opts.BotToken).
		SetTimeout(telegramTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(retryCondition)

	if opts.Logger != nil {
		opts.Logger.WithFields(map[string]any{
			"api_base": base,
			"token":    config.Mask(opts.BotToken),
		}).Debug("telegram sink ready")
	}

	return &Telegram{
		chatID:         opts.ChatID,
		sendLogFile:    opts.SendLogFile,
		sendScreenshot: opts.SendScreenshot,
		client:         client,
		log:            opts.Logger,
	}, nil
}

// Name implements Sink.
func (t *Telegram) Name() string { return "telegram" }

// Deliver sends the summary message, then the configured attachments.
func (t *Telegram) Deliver(ctx context.Context, p Payload) error {
	if err := t.sendMessage(ctx, p.Text); err != nil {
		return err
	}

	if t.sendScreenshot && p.Artifacts.Screenshot != "" {
		if err := t.sendPhoto(ctx, p.Artifacts.Screenshot, "Final screenshot"); err != nil {
			t.warn(err, "screenshot attachment failed")
		}
	}
	if t.sendLogFile {
		if p.Artifacts.LogFile != "" {
			if err := t.sendDocument(ctx, p.Artifacts.LogFile, "Run log"); err != nil {
				t.warn(err, "log attachment failed")
			}
		}
		if p.Artifacts.HTMLDump != "" {
			if err := t.sendDocument(ctx, p.Artifacts.HTMLDump, "Page snapshot"); err != nil {
				t.warn(err, "page snapshot attachment failed")
			}
		}
	}
	return nil
}

// SelfTest verifies the token against the getMe endpoint.
func (t *Telegram) SelfTest(ctx context.Context) error {
	var result apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/getMe")
	if err != nil {
		return fmt.Errorf("getMe: %w", err)
	}
	return checkAPI(resp, &result)
}

// retryCondition retries transport errors, server errors, and rate
// limiting. Other client errors mean the request itself is wrong.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func checkAPI(resp *resty.Response, result *apiResponse) error {
	if resp.IsError() {
		return fmt.Errorf("telegram API returned HTTP %d", resp.StatusCode())
	}
	if !result.OK {
		if result.Description != "" {
			return fmt.Errorf("telegram API rejected the request: %s", result.Description)
		}
		return fmt.Errorf("telegram API rejected the request")
	}
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	var result apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "MarkdownV2",
		}).
		SetResult(&result).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return checkAPI(resp, &result)
}

func (t *Telegram) sendDocument(ctx context.Context, path, caption string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("document %s: %w", path, err)
	}
	var result apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetFile("document", path).
		SetFormData(map[string]string{
			"chat_id":    t.chatID,
			"caption":    EscapeMarkdownV2(caption),
			"parse_mode": "MarkdownV2",
		}).
		SetResult(&result).
		Post("/sendDocument")
	if err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	return checkAPI(resp, &result)
}

func (t *Telegram) sendPhoto(ctx context.Context, path, caption string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("photo %s: %w", path, err)
	}
	var result apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetFile("photo", path).
		SetFormData(map[string]string{
			"chat_id":    t.chatID,
			"caption":    EscapeMarkdownV2(caption),
			"parse_mode": "MarkdownV2",
		}).
		SetResult(&result).
		Post("/sendPhoto")
	if err != nil {
		return fmt.Errorf("sendPhoto: %w", err)
	}
	return checkAPI(resp, &result)
}

func (t *Telegram) warn(err error, msg string) {
	if t.log == nil {
		return
	}
	t.log.Error(err, msg)
}
