package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"github.com/asquebay/leadbase-service/internal/cache"
	"github.com/asquebay/leadbase-service/internal/config"
	"github.com/asquebay/leadbase-service/internal/lib/jwtauth"
	"github.com/asquebay/leadbase-service/internal/lib/logger"
	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/provider/paypal"
	"github.com/asquebay/leadbase-service/internal/repository/postgres"
	"github.com/asquebay/leadbase-service/internal/service"
	httptransport "github.com/asquebay/leadbase-service/internal/transport/http"
	"github.com/asquebay/leadbase-service/internal/transport/kafka"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	// 1. Инициализация конфигурации
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg := config.MustLoad(configPath)

	// 2. Инициализация логгера
	log, closeLog, err := logger.New(logger.Options{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		File:   cfg.Logger.File,
	})
	if err != nil {
		slog.Error("failed to init logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("starting leadbase-service", slog.String("log_level", cfg.Logger.Level))

	// 3. Инициализация репозитория (БД)
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbpool, err := postgres.New(initCtx, cfg.Postgres)
	initCancel()
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("successfully connected to postgres")

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(dbpool); err != nil {
			log.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	dashboardRepo := postgres.NewDashboardRepository(dbpool)
	invoiceRepo := postgres.NewInvoiceRepository(dbpool)
	activityRepo := postgres.NewActivityRepository(dbpool)
	contactRepo := postgres.NewContactRepository(dbpool)

	// 4. Кэш сводок: ttlcache держит записи вдвое дольше окна свежести,
	// свежесть проверяет координатор
	clock := clockwork.NewRealClock()
	dashboardStore := cache.NewTTLStore(2 * cfg.Cache.DashboardTTL)
	dashboardCache := cache.NewCoordinator[model.DashboardSummary](dashboardStore, log,
		cache.WithTTL(cfg.Cache.DashboardTTL),
		cache.WithClock(clock),
	)
	log.Info("dashboard cache initialized", slog.Duration("ttl", cfg.Cache.DashboardTTL))

	// 5. Внешние системы: PayPal и кафка
	paypalClient := paypal.New(cfg.PayPal, log)
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PaymentTopic, log)

	// 6. Инициализация сервисного слоя
	dashboardSvc := service.NewDashboardService(dashboardRepo, dashboardCache, log)
	paymentSvc := service.NewPaymentService(invoiceRepo, paypalClient, producer, clock, cfg.Checkout.DownloadRetention, log)
	customerSvc := service.NewCustomerService(invoiceRepo, activityRepo, contactRepo, clock, log)
	importSvc := service.NewImportService(contactRepo, dashboardSvc, log)

	// 7. Инициализация и запуск Kafka-консьюмера
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ImportTopic, cfg.Kafka.GroupID, importSvc, log)
	ctx, cancel := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(ctx)
	}()

	// чистка состояния сводок в памяти раз в окно свежести
	go func() {
		ticker := clock.NewTicker(cfg.Cache.DashboardTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				dashboardSvc.Prune()
			}
		}
	}()

	// 8. Инициализация и запуск HTTP-сервера
	verifier := jwtauth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, clock.Now)
	handler := httptransport.NewHandler(dashboardSvc, paymentSvc, customerSvc, verifier, log)
	httpServer := httptransport.NewServer(cfg.HTTPServer, handler)
	log.Info("starting http server", slog.String("port", cfg.HTTPServer.Port))

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 9. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	exitCode := 0
	select {
	case sig := <-stop:
		log.Info("shutting down application", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("http server failed", slog.String("error", err.Error()))
		exitCode = 1
	}

	cancel() // сигнал для консьюмера на завершение

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var result *multierror.Error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := consumer.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	<-consumerDone
	if err := producer.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	dashboardCache.Close()
	dashboardStore.Close()

	if err := result.ErrorOrNil(); err != nil {
		log.Error("shutdown finished with errors", slog.String("error", err.Error()))
		exitCode = 1
	}

	log.Info("application stopped")
	if err := closeLog(); err != nil {
		exitCode = 1
	}
	dbpool.Close()
	os.Exit(exitCode)
}
