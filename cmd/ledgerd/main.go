package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance_ledger/internal/autoincome"
	"finance_ledger/internal/autopay"
	"finance_ledger/internal/config"
	"finance_ledger/internal/engine"
	"finance_ledger/internal/events"
	eventskafka "finance_ledger/internal/events/kafka"
	"finance_ledger/internal/repository"
	"finance_ledger/internal/repository/memory"
	"finance_ledger/internal/repository/postgres"
	"finance_ledger/internal/schedtask"
	"finance_ledger/internal/scheduler"
	"finance_ledger/internal/service"
	"finance_ledger/pkg/metrics"
)

const appName = "finance_ledger"

func main() {
	logger := setupLogger()
	logger.Info("Starting application", slog.String("name", appName))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	collector := metrics.NewCollector(logger)

	// The ledger store and the entity repositories must share one backend:
	// Apply writes what the repositories read.
	store := memory.NewStore()
	var (
		ledgerStore repository.LedgerStore       = store
		accountRepo repository.AccountRepository = memory.NewAccountRepository(store)
		holdingRepo repository.HoldingRepository = memory.NewHoldingRepository(store)
		recordRepo  repository.RecordRepository  = memory.NewRecordRepository(store)
	)
	if cfg.Postgres.DSN != "" {
		pgStore, err := postgres.Open(cfg.Postgres.DSN)
		if err != nil {
			logger.Error("Failed to connect to postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pgStore.Close()
		ledgerStore = pgStore
		accountRepo = postgres.NewAccountRepository(pgStore)
		holdingRepo = postgres.NewHoldingRepository(pgStore)
		recordRepo = postgres.NewRecordRepository(pgStore)
		logger.Info("Using postgres ledger store")
	}

	paymentRepo := memory.NewAutoPaymentRepository()
	incomeRepo := memory.NewAutoIncomeRepository()
	taskRepo := memory.NewScheduledTaskRepository()
	logRepo := memory.NewExecutionLogRepository()

	var publisher events.Publisher
	var kafkaPublisher *eventskafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = eventskafka.NewPublisher(cfg.Kafka.Brokers)
		publisher = kafkaPublisher
		logger.Info("Publishing events to kafka", slog.Any("brokers", cfg.Kafka.Brokers))
	}

	ledgerEngine := engine.New(ledgerStore, accountRepo, holdingRepo, recordRepo, publisher, collector, logger)

	notifier := service.NewNotifier(&service.MockEmailSender{}, &service.MockPushSender{}, cfg.Notifier.Workers, logger)

	allocator := autopay.NewAllocator(ledgerEngine, accountRepo, logger)
	paymentService := autopay.NewService(paymentRepo, accountRepo, logRepo, allocator, notifier, publisher, collector, logger)
	incomeService := autoincome.NewService(incomeRepo, accountRepo, logRepo, ledgerEngine, notifier, publisher, collector, logger)
	taskService := schedtask.NewService(taskRepo, accountRepo, logRepo, ledgerEngine, publisher, collector, logger)

	sched := scheduler.New(scheduler.Config{
		PaymentInterval:  cfg.Scheduler.PaymentInterval,
		IncomeInterval:   cfg.Scheduler.IncomeInterval,
		TaskInterval:     cfg.Scheduler.TaskInterval,
		ReminderInterval: cfg.Scheduler.ReminderInterval,
		CleanupInterval:  cfg.Scheduler.CleanupInterval,
	}, paymentService, incomeService, taskService, logRepo, collector, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	metricsServer := collector.StartMetricsServer(cfg.MetricsAddr)

	waitForShutdown(logger, cancel, sched, notifier, kafkaPublisher, metricsServer)
	logger.Info("Application shutdown complete")
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func waitForShutdown(
	logger *slog.Logger,
	cancel context.CancelFunc,
	sched *scheduler.Scheduler,
	notifier *service.Notifier,
	kafkaPublisher *eventskafka.Publisher,
	metricsServer *http.Server,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	cancel()
	sched.Stop()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelTimeout()

	if err := notifier.Shutdown(ctx); err != nil {
		logger.Error("Notifier shutdown failed", slog.String("error", err.Error()))
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("Kafka publisher close failed", slog.String("error", err.Error()))
		}
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}
}
