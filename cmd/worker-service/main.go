package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/config"
	"github.com/fpt-devteam/csv-processor/internal/importer"
	"github.com/fpt-devteam/csv-processor/internal/importer/storage"
	"github.com/fpt-devteam/csv-processor/internal/notify"
	"github.com/fpt-devteam/csv-processor/shared/blob"
	"github.com/fpt-devteam/csv-processor/shared/logger"
	"github.com/fpt-devteam/csv-processor/shared/postgresql"
	"github.com/fpt-devteam/csv-processor/shared/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize MinIO blob client
	blobClient, err := initBlob(&cfg.MinIO, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	// RabbitMQ connects lazily on first consume
	rabbitClient := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)

	store := storage.NewStorage(dbClient)
	notifier := notify.NewNotifier(rabbitClient, cfg.RabbitMQ.ChangesExchange, appLogger.Logger)

	consumer := importer.NewConsumer(&importer.ConsumerConfig{
		Client:    rabbitClient,
		Blobs:     blobClient,
		Store:     store,
		Notifier:  notifier,
		QueueName: cfg.RabbitMQ.ImportQueue,
		BatchSize: cfg.Worker.BatchSize,
		Logger:    appLogger.Logger,
	})

	// The worker also runs a change-log subscriber so record changes are
	// visible in this service's log stream.
	subscriber := notify.NewSubscriber(rabbitClient, cfg.RabbitMQ.ChangesExchange, "change-logger", appLogger.Logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("import consumer: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := subscriber.Run(ctx, notify.NewLogHandler(appLogger.Logger)); err != nil {
			errChan <- fmt.Errorf("change subscriber: %w", err)
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		runErr = err
	}

	// Cancel context to stop consumer and subscriber
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) *rabbitmq.Client {
	rabbitConfig := &rabbitmq.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		User:          cfg.User,
		Password:      cfg.Password,
		VHost:         cfg.VHost,
		RetryAttempts: cfg.Connection.RetryAttempts,
		RetryInterval: cfg.Connection.RetryInterval,
		Heartbeat:     cfg.Connection.Heartbeat,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initBlob initializes the MinIO blob client
func initBlob(cfg *config.MinIOConfig, logger *slog.Logger) (*blob.Client, error) {
	blobConfig := &blob.Config{
		Endpoint:      cfg.Endpoint,
		AccessKey:     cfg.AccessKey,
		SecretKey:     cfg.SecretKey,
		Bucket:        cfg.Bucket,
		UseSSL:        cfg.UseSSL,
		PresignExpiry: cfg.PresignExpiry,
	}

	return blob.NewClient(blobConfig, logger)
}
