package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/itservices-cart/internal/api"
	"github.com/example/itservices-cart/internal/api/middleware"
	"github.com/example/itservices-cart/internal/auth"
	"github.com/example/itservices-cart/internal/config"
	"github.com/example/itservices-cart/internal/domain/cart"
	"github.com/example/itservices-cart/internal/domain/pricing"
	"github.com/example/itservices-cart/internal/infrastructure/cache"
	"github.com/example/itservices-cart/internal/infrastructure/kafka"
	"github.com/example/itservices-cart/internal/infrastructure/store"
	"github.com/example/itservices-cart/internal/notification"
	"github.com/example/itservices-cart/internal/projection"
	"github.com/example/itservices-cart/internal/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("CART_CONFIG"), os.Getenv)
	if err == nil {
		err = cfg.Validate()
	}
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting cart api",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("remote", cfg.Remote.Backend),
		zap.Bool("redis", cfg.Local.RedisAddr != ""),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	jwtService, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenExpiry)
	if err != nil {
		return err
	}

	// Remote cart storage and the sync journal
	var db *sql.DB
	if cfg.Remote.Backend == config.BackendPostgres {
		db, err = store.ConnectPostgres(ctx, cfg.Remote.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if err := store.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("connected to postgres")
	}

	remote, err := newRemoteStore(ctx, cfg.Remote, db)
	if err != nil {
		return err
	}

	var activity store.ActivityStoreInterface = store.NewActivityStore()
	if db != nil {
		activity = store.NewPostgresActivityStore(db)
	}

	// With Kafka the journal is published for cmd/projector; without it
	// the activity view is projected in process.
	var publisher store.Publisher = inlineProjection{projection.NewProjector(activity, logger.Named("projector"))}
	notifiers := notification.Multi{
		notification.ContextCollector{},
		notification.NewLogNotifier(logger.Named("toast")),
	}
	if cfg.Kafka.Enabled() {
		events := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer events.Close()
		toasts := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ToastsTopic)
		defer toasts.Close()

		publisher = events
		notifiers = append(notifiers, notification.NewKafkaNotifier(toasts, time.Second, logger.Named("toast")))
	}

	var journal store.EventStoreInterface = store.NewEventStore(publisher)
	if db != nil {
		journal = store.NewPostgresEventStore(db, publisher)
	}

	// Local snapshots
	var local cache.SnapshotStore = cache.NewMemoryStore()
	if cfg.Local.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Local.RedisAddr,
			Password: cfg.Local.RedisPassword,
			DB:       cfg.Local.RedisDB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		local = cache.NewRedisStore(client, cfg.Local.TTL)
		logger.Info("connected to redis")
	}

	syncer := cart.NewSyncer(remote, journal, cart.SyncerConfig{
		QueueSize:       cfg.Sync.QueueSize,
		Timeout:         cfg.Sync.Timeout,
		BreakerFailures: cfg.Sync.BreakerFailures,
		BreakerCooldown: cfg.Sync.BreakerCooldown,
	}, logger.Named("sync"), cart.NewMetrics(reg))
	defer syncer.Close()

	manager := cart.NewManager(cart.Deps{
		Reducer:  cart.NewReducer(pricing.DefaultTable),
		Local:    local,
		Syncer:   syncer,
		Identity: middleware.Identity{},
		Notifier: notifiers,
		Logger:   logger.Named("cart"),
	})
	if idle := cfg.Local.SessionIdle; idle > 0 {
		go manager.RunEviction(ctx, idle/2, idle)
	}

	router := api.NewRouter(api.RouterConfig{
		Handlers:      api.NewHandlers(manager, pricing.DefaultTable, logger),
		AdminHandlers: api.NewAdminHandlers(query.NewHandler(activity, logger), syncer),
		JWTService:    jwtService,
		Gatherer:      reg,
		Logger:        logger.Named("http"),
		SecureCookies: cfg.HTTP.SecureCookies,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := syncer.Flush(shutdownCtx); err != nil {
		logger.Warn("sync queue not drained", zap.Error(err))
	}
	return nil
}

func newRemoteStore(ctx context.Context, cfg config.RemoteConfig, db *sql.DB) (store.CartRecordStore, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return store.NewPostgresCartStore(db), nil
	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			}
		})
		return store.NewDynamoCartStore(client, cfg.DynamoTable), nil
	case config.BackendMemory:
		return store.NewMemoryCartStore(), nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
}

// inlineProjection publishes journal events straight into the projector.
type inlineProjection struct {
	projector *projection.Projector
}

func (p inlineProjection) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.projector.HandleEvent(ctx, []byte(key), data)
}
