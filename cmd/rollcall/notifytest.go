package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lunarbay/rollcall/pkg/config"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/logging"
	"github.com/lunarbay/rollcall/pkg/notify"
)

const notifyTestTimeout = time.Minute

func newNotifyTestCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Verify the Telegram credentials and send a test message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runNotifyTest(cmd.Context(), flags); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "test message delivered")
			return nil
		},
	}
}

func runNotifyTest(ctx context.Context, flags *rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if !cfg.Telegram.Enabled {
		return rcerrors.NewConfigError("telegram", "telegram notifications are not enabled", nil)
	}

	log, _ := logging.New(logging.Options{Level: cfg.Runtime.LogLevel, Debug: flags.debug})
	defer log.Close()

	sink, err := notify.NewTelegram(notify.TelegramOptions{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		ProxyURL: cfg.Telegram.ProxyURL,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTestTimeout)
	defer cancel()

	if err := sink.SelfTest(ctx); err != nil {
		return fmt.Errorf("bot credentials rejected: %w", err)
	}
	if err := sink.Deliver(ctx, notify.Payload{Text: notify.RenderTest(time.Now())}); err != nil {
		return fmt.Errorf("test message not delivered: %w", err)
	}
	return nil
}
