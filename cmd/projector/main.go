package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/itservices-cart/internal/config"
	"github.com/example/itservices-cart/internal/infrastructure/kafka"
	"github.com/example/itservices-cart/internal/infrastructure/store"
	"github.com/example/itservices-cart/internal/projection"
	"go.uber.org/zap"
)

var errNoKafka = errors.New("KAFKA_BROKERS is required")

func main() {
	cfg, err := config.Load(os.Getenv("CART_CONFIG"), os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("projector stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if !cfg.Kafka.Enabled() {
		return errNoKafka
	}
	if cfg.Remote.DatabaseURL == "" {
		return config.ErrMissingDatabase
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting cart projector",
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.EventsTopic),
		zap.String("group", cfg.Kafka.ConsumerGroup),
	)

	db, err := store.ConnectPostgres(ctx, cfg.Remote.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if err := store.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("connected to postgres")

	projector := projection.NewProjector(store.NewPostgresActivityStore(db), logger)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.ConsumerGroup, logger.Named("consumer"))
	defer consumer.Close()

	logger.Info("listening", zap.String("topic", cfg.Kafka.EventsTopic))
	err = consumer.Consume(ctx, projector.HandleEvent)
	logger.Info("shutting down")
	return err
}
