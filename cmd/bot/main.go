package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"tournament-bot/internal/cache"
	"tournament-bot/internal/config"
	"tournament-bot/internal/gate"
	"tournament-bot/internal/loop"
	"tournament-bot/internal/metrics"
	"tournament-bot/internal/notify"
	"tournament-bot/internal/registrants"
	"tournament-bot/internal/registration"
	"tournament-bot/internal/scheduler"
	"tournament-bot/internal/server"
	"tournament-bot/internal/sheets"
	"tournament-bot/internal/tgbot"
	"tournament-bot/internal/tournament"
	"tournament-bot/internal/ui"
)

func main() {
	app := &cli.App{
		Name:  "tournament-bot",
		Usage: "PUBG tournament registration bot with a dashboard API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "optional YAML config file, overridden by the environment",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before reading the environment",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("bot exited", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	_ = godotenv.Load(c.String("env-file"))

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = cfg.TelegramDebug
	logger.Info("authorized on telegram", "username", bot.Self.UserName)
	out := notify.NewTelegram(bot)

	pending, err := cache.NewBoltStore(cfg.LocalCachePath)
	if err != nil {
		return fmt.Errorf("local cache: %w", err)
	}
	defer pending.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	var remote registrants.Remote
	if cfg.SheetsEnabled() {
		sh, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID, cfg.Worksheet)
		if err != nil {
			logger.Warn("google sheets unavailable, using csv and local cache", "error", err)
		} else {
			remote = sh
		}
	}
	var published registrants.Reader
	if cfg.SheetCSVURL != "" {
		published = sheets.NewCSVSource(cfg.SheetCSVURL, nil)
	}
	store := registrants.New(remote, published, pending, logger)
	logger.Info("registrant store ready", "data_source", store.DataSource())

	m := metrics.New()
	l := loop.New(cfg.BridgeTimeout, logger)

	policy, err := registration.ParsePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return err
	}
	details := ui.Details{
		EntryFee:     cfg.EntryFee,
		PaymentCard:  cfg.PaymentCard,
		AdminContact: cfg.AdminContact,
		RatingURL:    cfg.RatingSheetURL,
		CSVURL:       cfg.SheetCSVURL,
	}

	manager := tournament.New(tournament.Config{
		AdminID:      cfg.AdminID,
		Capacity:     cfg.RosterCapacity,
		SendInterval: cfg.LobbySendInterval,
	}, store, out, l, m, logger)
	machine := registration.New(registration.Config{
		AdminID:      cfg.AdminID,
		ReceiptDelay: cfg.ReceiptPromptDelay,
		Policy:       policy,
		Details:      details,
	}, out, store, manager, l, m, logger)
	g := gate.New(cfg.RequiredChannels, out, cfg.AdminID, logger)

	botApp := tgbot.New(tgbot.Options{
		AdminID:  cfg.AdminID,
		Details:  details,
		Location: cfg.Location,
	}, out, g, machine, manager, store, l, logger)

	httpSrv := server.New(server.Options{
		Addr:           cfg.HTTPAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		ExportSecret:   cfg.ExportSecret,
		Location:       cfg.Location,
	}, l, manager, store, m, logger)

	syncJob, err := scheduler.New(cfg.CacheSyncCron, store, l, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 3)

	// Start the loop before anything can submit work to it
	go func() {
		if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("loop: %w", err)
		}
	}()

	// Start HTTP server
	go func() {
		logger.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	syncJob.Start()
	defer syncJob.Stop()

	// Start Telegram
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	go func() {
		if err := botApp.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("bot: %w", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info("shutting down", "signal", s.String())
	case err = <-errCh:
		logger.Error("component failed, shutting down", "error", err)
	}

	bot.StopReceivingUpdates()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if shutdownErr := httpSrv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("http shutdown", "error", shutdownErr)
	}
	cancel()

	logger.Info("bye")
	return err
}
