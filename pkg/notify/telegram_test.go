package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/types"
)

func TestNormalizeAPIBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultAPIBase},
		{"tg-proxy.example.com", "https://tg-proxy.example.com"},
		{"https://tg.example.com/", "https://tg.example.com"},
		{"https://tg.example.com///", "https://tg.example.com"},
		{"http://127.0.0.1:8081", "http://127.0.0.1:8081"},
		{"  tg.example.com ", "https://tg.example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAPIBase(tt.in), "input %q", tt.in)
	}
}

func TestNewTelegramValidation(t *testing.T) {
	_, err := NewTelegram(TelegramOptions{ChatID: "42"})
	require.Error(t, err)
	var cfgErr *rcerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "telegram_bot_token", cfgErr.Field)

	_, err = NewTelegram(TelegramOptions{BotToken: "123:abc"})
	require.Error(t, err)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "telegram_chat_id", cfgErr.Field)

	tg, err := NewTelegram(TelegramOptions{BotToken: "123:abc", ChatID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "telegram", tg.Name())
}

// botAPI is a scripted Bot API endpoint. The sink talks to it through
// the proxy URL option, which accepts plain http bases.
type botAPI struct {
	*httptest.Server

	mu      sync.Mutex
	paths   []string
	message map[string]string
}

func newBotAPI(t *testing.T, respond func(path string) (int, apiResponse)) *botAPI {
	t.Helper()
	api := &botAPI{}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.paths = append(api.paths, r.URL.Path)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				api.message = body
			}
		}
		api.mu.Unlock()

		status, reply := respond(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(api.Close)
	return api
}

func (a *botAPI) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

func (a *botAPI) lastMessage() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

func allOK(string) (int, apiResponse) {
	return http.StatusOK, apiResponse{OK: true}
}

func newTestTelegram(t *testing.T, api *botAPI, opts TelegramOptions) *Telegram {
	t.Helper()
	opts.BotToken = "123:abc"
	opts.ChatID = "42"
	opts.ProxyURL = api.URL
	tg, err := NewTelegram(opts)
	require.NoError(t, err)
	return tg
}

func TestDeliverSendsMessage(t *testing.T) {
	api := newBotAPI(t, allOK)
	tg := newTestTelegram(t, api, TelegramOptions{})

	err := tg.Deliver(context.Background(), Payload{Text: "*report*"})
	require.NoError(t, err)

	require.Equal(t, []string{"/bot123:abc/sendMessage"}, api.calls())
	msg := api.lastMessage()
	assert.Equal(t, "42", msg["chat_id"])
	assert.Equal(t, "*report*", msg["text"])
	assert.Equal(t, "MarkdownV2", msg["parse_mode"])
}

func TestDeliverSendsAttachments(t *testing.T) {
	api := newBotAPI(t, allOK)
	tg := newTestTelegram(t, api, TelegramOptions{SendLogFile: true, SendScreenshot: true})

	dir := t.TempDir()
	artifacts := types.Artifacts{
		Screenshot: filepath.Join(dir, "final.png"),
		LogFile:    filepath.Join(dir, "run.log"),
		HTMLDump:   filepath.Join(dir, "page.html"),
	}
	require.NoError(t, os.WriteFile(artifacts.Screenshot, []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(artifacts.LogFile, []byte("log"), 0o644))
	require.NoError(t, os.WriteFile(artifacts.HTMLDump, []byte("<html>"), 0o644))

	err := tg.Deliver(context.Background(), Payload{Text: "report", Artifacts: artifacts})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/bot123:abc/sendMessage",
		"/bot123:abc/sendPhoto",
		"/bot123:abc/sendDocument",
		"/bot123:abc/sendDocument",
	}, api.calls())
}

func TestDeliverToleratesAttachmentFailure(t *testing.T) {
	api := newBotAPI(t, func(path string) (int, apiResponse) {
		if path == "/bot123:abc/sendPhoto" {
			return http.StatusOK, apiResponse{Description: "file is too big"}
		}
		return http.StatusOK, apiResponse{OK: true}
	})
	tg := newTestTelegram(t, api, TelegramOptions{SendLogFile: true, SendScreenshot: true})

	dir := t.TempDir()
	artifacts := types.Artifacts{
		Screenshot: filepath.Join(dir, "final.png"),
		LogFile:    filepath.Join(dir, "run.log"),
	}
	require.NoError(t, os.WriteFile(artifacts.Screenshot, []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(artifacts.LogFile, []byte("log"), 0o644))

	// The summary message is the contract; a rejected attachment
	// must not fail the sink or stop the remaining attachments.
	err := tg.Deliver(context.Background(), Payload{Text: "report", Artifacts: artifacts})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/bot123:abc/sendMessage",
		"/bot123:abc/sendPhoto",
		"/bot123:abc/sendDocument",
	}, api.calls())
}

func TestDeliverSkipsMissingAttachments(t *testing.T) {
	api := newBotAPI(t, allOK)
	tg := newTestTelegram(t, api, TelegramOptions{SendLogFile: true, SendScreenshot: true})

	artifacts := types.Artifacts{
		Screenshot: filepath.Join(t.TempDir(), "absent.png"),
		LogFile:    filepath.Join(t.TempDir(), "absent.log"),
	}

	err := tg.Deliver(context.Background(), Payload{Text: "report", Artifacts: artifacts})
	require.NoError(t, err)
	assert.Equal(t, []string{"/bot123:abc/sendMessage"}, api.calls())
}

func TestDeliverReportsAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		respond func(string) (int, apiResponse)
		wantErr string
	}{
		{
			name: "http error",
			respond: func(string) (int, apiResponse) {
				return http.StatusInternalServerError, apiResponse{}
			},
			wantErr: "telegram API returned HTTP 500",
		},
		{
			name: "rejected with description",
			respond: func(string) (int, apiResponse) {
				return http.StatusOK, apiResponse{Description: "chat not found"}
			},
			wantErr: "chat not found",
		},
		{
			name: "rejected without description",
			respond: func(string) (int, apiResponse) {
				return http.StatusOK, apiResponse{}
			},
			wantErr: "telegram API rejected the request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newBotAPI(t, tt.respond)
			tg := newTestTelegram(t, api, TelegramOptions{})

			err := tg.Deliver(context.Background(), Payload{Text: "report"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDeliverRetriesServerErrors(t *testing.T) {
	var hits int32
	api := newBotAPI(t, func(string) (int, apiResponse) {
		if atomic.AddInt32(&hits, 1) == 1 {
			return http.StatusServiceUnavailable, apiResponse{}
		}
		return http.StatusOK, apiResponse{OK: true}
	})
	tg := newTestTelegram(t, api, TelegramOptions{})

	err := tg.Deliver(context.Background(), Payload{Text: "report"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/bot123:abc/sendMessage", "/bot123:abc/sendMessage"}, api.calls())
}

func TestSelfTest(t *testing.T) {
	t.Run("token accepted", func(t *testing.T) {
		api := newBotAPI(t, allOK)
		tg := newTestTelegram(t, api, TelegramOptions{})

		require.NoError(t, tg.SelfTest(context.Background()))
		assert.Equal(t, []string{"/bot123:abc/getMe"}, api.calls())
	})

	t.Run("token rejected", func(t *testing.T) {
		api := newBotAPI(t, func(string) (int, apiResponse) {
			return http.StatusUnauthorized, apiResponse{}
		})
		tg := newTestTelegram(t, api, TelegramOptions{})

		err := tg.SelfTest(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 401")
	})
}
