package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/crypto_portfolio_bot/config"
	"github.com/KotFed0t/crypto_portfolio_bot/data"
	"github.com/KotFed0t/crypto_portfolio_bot/data/session"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/externalApi/portfolioApi"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/scheduler"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/service/portfolioService"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/tgbot"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.String("logLevel", cfg.LogLevel), slog.String("portfolioApi", cfg.API.PortfolioApi.Url))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := data.NewRedisClient(ctx, cfg)
	if err != nil {
		slog.Error("can't connect to redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	redisSession := session.NewRedisSession(redisClient, cfg.Session.Expiration)

	portfolioApiClient := portfolioApi.New(cfg)

	reportGenerator := xslsxGenerator.New()

	// a nil interface, not a nil *GoogleDriveApi, keeps oversized reports on the ErrReportTooLarge path
	var cloudStorage portfolioService.CloudStorage
	if cfg.GoogleDrive.Enabled() {
		driveApi, err := googleDriveApi.New(ctx, cfg)
		if err != nil {
			slog.Error("can't init google drive", slog.String("err", err.Error()))
			os.Exit(1)
		}
		cloudStorage = driveApi
	} else {
		slog.Info("google drive disabled, large reports will not be uploaded")
	}

	portfolioSrv := portfolioService.New(portfolioApiClient, redisSession, reportGenerator, cloudStorage, cfg.Telegram.FileLimitInBytes)

	sched, err := scheduler.New()
	if err != nil {
		slog.Error("can't init scheduler", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if cloudStorage != nil {
		err = sched.NewIntervalJob("cleanup reports", portfolioSrv.CleanupReports, cfg.Jobs.CleanupReportsInterval, cfg.API.Timeout*4, true)
		if err != nil {
			slog.Error("can't schedule job", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(cfg, portfolioSrv)

	tgBot, err := tgbot.New(cfg, tgController, portfolioSrv)
	if err != nil {
		slog.Error("can't init tgbot", slog.String("err", err.Error()))
		os.Exit(1)
	}
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
