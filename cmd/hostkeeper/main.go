package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"hostkeeper/internal/browser"
	"hostkeeper/internal/challenge"
	"hostkeeper/internal/config"
	"hostkeeper/internal/input"
	"hostkeeper/internal/logging"
	"hostkeeper/internal/notify"
	"hostkeeper/internal/renew"
	"hostkeeper/internal/rotate"
	"hostkeeper/internal/tui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	noTUI := flag.Bool("no-tui", false, "disable TUI mode")
	headless := flag.Bool("headless", true, "run the browser headless")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Auto-detect TUI capability
	enableTUI := !*noTUI && os.Getenv("HOSTKEEPER_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	logger, closeLogs, err := logging.Setup(logging.Options{
		File:  cfg.LogFile,
		Level: cfg.Log.Level,
		TUI:   enableTUI,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLogs()

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	// The OS pointer needs a visible window; with a headless browser only
	// the CDP input backend can reach the widget.
	screenInput := !*headless && input.XDoToolAvailable()

	driver := browser.New(browser.Config{
		Headless:      *headless,
		Bin:           cfg.Browser.Bin,
		Width:         cfg.Browser.Width,
		Height:        cfg.Browser.Height,
		NavTimeout:    cfg.Browser.NavTimeout,
		ScreenshotDir: cfg.ScreenshotDir,
		ScreenInput:   screenInput,
	}, logger)

	// The pointer backend binds to the live page, which exists only once
	// the browser has started, so it is built per solve.
	solve := func(ctx context.Context) challenge.Result {
		var pointer input.Pointer
		if screenInput {
			pointer = input.NewXDoTool(logger)
		} else {
			pointer = input.NewCDP(driver.Page(), logger)
		}
		return challenge.NewSolver(driver, pointer, challenge.DefaultConfig(), logger).Run(ctx)
	}

	notifier := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
	rotator := rotate.New(cfg.GitHub.Repo, cfg.GitHub.Token, logger)

	runner := renew.NewRunner(cfg, driver, solve, rotator, notifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if enableTUI {
		// TUI mode: runner in background, TUI in foreground
		errCh := make(chan error, 1)
		go func() {
			logger.Info("hostkeeper starting in background", "config", *configPath)
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("runner error", "err", err)
				errCh <- err
			}
		}()

		m := tui.NewModel(runner, cfg.TUI.RefreshInterval)
		p := tea.NewProgram(m)

		// Exit if the runner fails immediately
		go func() {
			if err := <-errCh; err != nil {
				p.Send(tea.Quit())
			}
		}()

		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			os.Exit(1)
		}
	} else {
		// Headless mode (the CI path)
		logger.Info("hostkeeper starting (headless)", "config", *configPath)
		if err := runner.Run(ctx); err != nil {
			logger.Error("runner error", "err", err)
			os.Exit(1)
		}
	}
}
