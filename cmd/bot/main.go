package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/tour_booking/internal/app"
	"github.com/Freeeeeet/tour_booking/internal/config"
	"github.com/Freeeeeet/tour_booking/internal/controller"
	"github.com/Freeeeeet/tour_booking/internal/gateway"
	"github.com/Freeeeeet/tour_booking/internal/payment"
	"github.com/Freeeeeet/tour_booking/internal/repository"
	"github.com/Freeeeeet/tour_booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Tour booking bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting tour booking bot",
		zap.String("environment", cfg.Environment),
		zap.Int64("admin_chat_id", cfg.AdminChatID))

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	// Репозитории
	bookingRepo := repository.NewBookingRepository(pool)
	tourRepo := repository.NewTourRepository(pool)
	additionalRepo := repository.NewAdditionalBookingRepository(pool)

	// Платёжный шлюз
	gw := gateway.NewClient(gateway.Config{
		BaseURL: cfg.GatewayURL,
		APIKey:  cfg.GatewayKey,
		Timeout: cfg.GatewayTimeout,
	}, logger)
	synchronizer := payment.NewSynchronizer(gw, bookingRepo, cfg.Currency, logger)

	botInstance, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return err
	}
	notifier := controller.NewNotifier(botInstance, cfg.AdminChatID, logger)

	// Сервисы
	bookingService := service.NewBookingService(bookingRepo, tourRepo, additionalRepo, synchronizer, logger)
	cancellationService := service.NewCancellationService(bookingRepo, gw, bookingService, notifier, logger)
	scheduleService := service.NewScheduleService(tourRepo, cfg.CalendarBatchLimit, logger)

	botController := controller.NewBotController(
		botInstance,
		bookingService,
		cancellationService,
		scheduleService,
		notifier,
		cfg.AdminChatID,
		logger,
	)
	if err := botController.RegisterHandlers(ctx); err != nil {
		return err
	}

	scheduler := app.NewScheduler(cancellationService, notifier, 24*time.Hour, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return botController.Start(gctx)
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	err = g.Wait()
	logger.Info("Tour booking bot stopped")
	return err
}
