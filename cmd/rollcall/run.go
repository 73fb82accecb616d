package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/lunarbay/rollcall/pkg/artifacts"
	"github.com/lunarbay/rollcall/pkg/browser"
	"github.com/lunarbay/rollcall/pkg/config"
	"github.com/lunarbay/rollcall/pkg/forum"
	"github.com/lunarbay/rollcall/pkg/humanize"
	"github.com/lunarbay/rollcall/pkg/logging"
	"github.com/lunarbay/rollcall/pkg/notify"
	"github.com/lunarbay/rollcall/pkg/signin"
	"github.com/lunarbay/rollcall/pkg/timing"
	"github.com/lunarbay/rollcall/pkg/ui"
)

// runOutcomeError carries the exit code for a run that produced a
// summary; the summary itself was already printed and dispatched.
type runOutcomeError struct {
	code int
}

func (e *runOutcomeError) Error() string {
	if e.code == signin.ExitInterrupted {
		return "run interrupted"
	}
	return "run finished with failures"
}

func runSession(flags *rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	if flags.dryRun {
		printPlan(os.Stdout, cfg)
		return nil
	}

	// A failed log file is warned about inside New; console-only
	// logging is acceptable for the run.
	log, _ := logging.New(logging.Options{Level: cfg.Runtime.LogLevel, Debug: flags.debug})
	defer log.Close()

	masker := config.NewMasker(cfg)
	log.WithFields(map[string]any{"config": cfg.Redacted()}).Debug("configuration loaded")
	log.WithFields(map[string]any{
		"base_url": cfg.Site.BaseURL,
		"account":  cfg.Site.Username,
	}).Info("session configured")

	pace := timing.NewPolicy(timing.Options{
		Multiplier:      cfg.Timing.Multiplier,
		Smart:           cfg.Timing.Smart,
		CommentInterval: cfg.Humanize.CommentInterval,
		WaitAfterLogin:  cfg.Timing.WaitAfterLogin,
	})

	session, err := browser.Launch(browser.Options{
		Headless:        cfg.Runtime.Headless,
		InstallBrowsers: flags.installBrowsers,
	})
	if err != nil {
		return fmt.Errorf("browser launch: %w", err)
	}

	driver := forum.New(session, cfg, pace, log)

	var evidence signin.Evidence
	recorder, recErr := artifacts.NewRecorder(artifacts.Options{
		Reader:  driver,
		Masker:  masker,
		LogPath: log.LogPath(),
		Logger:  log,
	})
	if recErr != nil {
		log.Error(recErr, "evidence capture disabled")
	} else {
		evidence = recorder
	}

	var notifier signin.Notifier
	if cfg.Telegram.Enabled {
		sink, err := notify.NewTelegram(notify.TelegramOptions{
			BotToken:       cfg.Telegram.BotToken,
			ChatID:         cfg.Telegram.ChatID,
			ProxyURL:       cfg.Telegram.ProxyURL,
			SendLogFile:    cfg.Telegram.SendLogFile,
			SendScreenshot: cfg.Telegram.SendScreenshot,
			Logger:         log,
		})
		if err != nil {
			driver.Close()
			return err
		}
		notifier = notify.NewDispatcher(log, masker, sink)
	}

	orch := signin.New(signin.Options{
		Driver:    driver,
		Humanizer: humanize.New(driver, humanize.Options{Config: cfg.Humanize, Policy: pace, Logger: log}),
		Notifier:  notifier,
		Evidence:  evidence,
		Config:    cfg,
		Policy:    pace,
		Logger:    log,
		RunID:     logging.RunID(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		log.Warn("stop signal received, aborting the run")
		cancel()
	}()

	summary := orch.Run(ctx)

	fmt.Fprintln(os.Stdout, ui.RenderSummary(summary))
	if recorder != nil {
		if path, err := recorder.WriteRunRecord(summary); err != nil {
			log.Error(err, "run record not written")
		} else {
			log.WithFields(map[string]any{"path": path}).Debug("run record written")
		}
	}

	if code := signin.ExitCode(summary); code != signin.ExitOK {
		return &runOutcomeError{code: code}
	}
	return nil
}

// printPlan writes the masked configuration snapshot and the actions a
// run with this configuration would take.
func printPlan(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "configuration:")
	snapshot := cfg.Redacted()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-18s %s\n", k, snapshot[k])
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "planned session:")
	fmt.Fprintf(w, "  log in as %s at %s\n", cfg.Site.Username, cfg.Site.BaseURL)
	if cfg.Challenge.Enabled {
		fmt.Fprintln(w, "  answer the security question")
	}
	if cfg.CheckinEnabled {
		fmt.Fprintln(w, "  detect and submit the daily check-in")
	} else {
		fmt.Fprintln(w, "  skip the daily check-in (disabled)")
	}
	if cfg.Humanize.BrowsingEnabled && cfg.Humanize.BrowsePageCount > 0 {
		fmt.Fprintf(w, "  browse %d listing pages\n", cfg.Humanize.BrowsePageCount)
	}
	if cfg.Humanize.ReplyEnabled && cfg.Humanize.ReplyCount > 0 {
		fmt.Fprintf(w, "  post %d replies, at least %s apart\n", cfg.Humanize.ReplyCount, cfg.Humanize.CommentInterval)
	}
	if cfg.Telegram.Enabled {
		fmt.Fprintln(w, "  send the outcome to telegram")
	} else {
		fmt.Fprintln(w, "  report to the terminal only")
	}
}
