package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/config"
	"github.com/fpt-devteam/csv-processor/internal/notify"
	"github.com/fpt-devteam/csv-processor/shared/logger"
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
	defaultConfigPath := os.Getenv("NOTIFIER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/notifier-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateNotifierConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting notifier service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// RabbitMQ connects lazily on first subscribe
	rabbitClient := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)

	mailer := notify.NewSMTPMailer(cfg.Notifier.SMTPHost, cfg.Notifier.SMTPPort, cfg.Notifier.From)
	recipients := splitRecipients(cfg.Notifier.To)
	handler := notify.NewEmailHandler(mailer, recipients, appLogger.Logger)

	subscriber := notify.NewSubscriber(rabbitClient, cfg.RabbitMQ.ChangesExchange, "email-notifier", appLogger.Logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := subscriber.Run(ctx, handler); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Notifier service started successfully",
		slog.Int("recipients", len(recipients)),
	)

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
		appLogger.Error("Subscriber error",
			slog.Any("error", err),
		)
		runErr = err
	}

	cancel()

	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Notifier service shutdown complete")
	return runErr
}

func splitRecipients(to string) []string {
	parts := strings.Split(to, ",")
	recipients := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
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
