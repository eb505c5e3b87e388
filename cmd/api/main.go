package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hotelier/internal/api"
	"hotelier/internal/config"
	"hotelier/internal/database"
	"hotelier/internal/domain"
	"hotelier/internal/events"
	"hotelier/internal/export"
	"hotelier/internal/logging"
	"hotelier/internal/metrics"
	"hotelier/internal/notify"
	"hotelier/internal/payment"
	"hotelier/internal/repository"
	"hotelier/internal/service"
	"hotelier/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const calendarCacheTTL = 15 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg); err != nil {
		return err
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, calendarCache := initCalendarCache(ctx, cfg, logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	notifier := startNotifier(ctx, cfg, redisClient, logger)

	metrics.Register()

	eventBus := events.NewEventBus()
	checkout := payment.NewStripeProvider(cfg.Stripe, logger)

	feePolicy, err := cfg.FeePolicy()
	if err != nil {
		return err
	}

	paymentService := service.NewPaymentService(db, checkout, notifier, eventBus, calendarCache, logger)
	bookingService := service.NewBookingService(db, checkout, notifier, eventBus, calendarCache, paymentService, feePolicy, logger)

	if cfg.Sweep.Enabled {
		sweeper := worker.NewSweeper(func(ctx context.Context) error {
			_, err := bookingService.MarkNoShows(ctx)
			return err
		}, cfg.Sweep.Hour, logger)
		go sweeper.Start(ctx)
	}

	exporter := export.NewExporter(bookingService, cfg.Exports.Path, logger)
	scheduleWeeklyExport(ctx, exporter, logger)

	if cfg.Monitoring.PrometheusEnabled {
		startMetricsServer(cfg, logger)
	}

	apiServer := api.NewHTTPServer(cfg.API, cfg.Stripe, bookingService, paymentService, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- apiServer.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()
	return cfg, &logger, closer, nil
}

func prepareDirectories(cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(cfg.Exports.Path, 0o755)
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	rooms, err := config.ParseRooms(cfg.Rooms)
	if err != nil {
		db.Close()
		return nil, err
	}
	db.SetRooms(rooms)
	return db, nil
}

// initCalendarCache builds the failover calendar cache: redis primary
// when configured, in-memory fallback either way.
func initCalendarCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.CalendarCache) {
	memory := repository.NewMemoryCalendarCache(calendarCacheTTL)
	if cfg.Redis.Address == "" {
		return nil, memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}

	primary := repository.NewRedisCalendarCache(client, calendarCacheTTL)
	return client, repository.NewFailoverCalendarCache(primary, memory, logger)
}

// startNotifier wires the Telegram staff channel behind the async
// notify worker. Without a bot token notifications are disabled.
func startNotifier(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" {
		logger.Info().Msg("Telegram notifications disabled")
		return nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create Telegram bot")
		return nil
	}

	sender := notify.NewTelegramSender(botAPI, cfg.Telegram.ChatID, logger)
	retry := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	notifyWorker := worker.NewNotifyWorker(sender, redisClient, retry, logger)
	go notifyWorker.Start(ctx)
	return notifyWorker
}

// scheduleWeeklyExport drops an occupancy report each Monday covering
// the coming two weeks.
func scheduleWeeklyExport(ctx context.Context, exporter *export.Exporter, logger *zerolog.Logger) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if time.Now().Weekday() != time.Monday {
					continue
				}
				from := time.Now()
				if _, err := exporter.ExportOccupancy(ctx, from, from.AddDate(0, 0, 13)); err != nil {
					logger.Error().Err(err).Msg("weekly occupancy export failed")
				}
			}
		}
	}()
}

func startMetricsServer(cfg *config.Config, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics listening")
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
}
