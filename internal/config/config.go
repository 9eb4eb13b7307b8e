package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/itservices-cart/internal/auth"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Remote cart backends
const (
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

var (
	ErrMissingSecret   = errors.New("JWT_SECRET is required")
	ErrUnknownBackend  = errors.New("unknown remote backend")
	ErrMissingDatabase = errors.New("DATABASE_URL is required for the postgres backend")
	ErrMissingTable    = errors.New("DYNAMODB_TABLE is required for the dynamodb backend")
)

type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	Auth   AuthConfig   `yaml:"auth"`
	Remote RemoteConfig `yaml:"remote"`
	Local  LocalConfig  `yaml:"local"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Sync   SyncConfig   `yaml:"sync"`
	Log    LogConfig    `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	SecureCookies   bool          `yaml:"secure_cookies"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	Issuer      string        `yaml:"issuer"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// RemoteConfig selects where signed-in carts are mirrored.
type RemoteConfig struct {
	Backend        string `yaml:"backend"`
	DatabaseURL    string `yaml:"database_url"`
	DynamoTable    string `yaml:"dynamodb_table"`
	DynamoEndpoint string `yaml:"dynamodb_endpoint"`
	AWSRegion      string `yaml:"aws_region"`
}

// LocalConfig configures snapshot storage. An empty RedisAddr keeps
// snapshots in process memory. Sessions unused for SessionIdle are
// dropped from memory and restored from their snapshot on return.
type LocalConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	SessionIdle   time.Duration `yaml:"session_idle"`
}

// KafkaConfig configures the cart event journal and toast topics. No
// brokers means no Kafka at all.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	EventsTopic   string   `yaml:"events_topic"`
	ToastsTopic   string   `yaml:"toasts_topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type SyncConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	Timeout         time.Duration `yaml:"timeout"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a configuration that runs everything in memory.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:      "itservices",
			TokenExpiry: 15 * time.Minute,
		},
		Remote: RemoteConfig{
			Backend:   BackendMemory,
			AWSRegion: "eu-west-3",
		},
		Local: LocalConfig{
			TTL:         30 * 24 * time.Hour,
			SessionIdle: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			EventsTopic:   "cart-events",
			ToastsTopic:   "cart-toasts",
			ConsumerGroup: "cart-projector",
		},
		Sync: SyncConfig{
			QueueSize:       256,
			Timeout:         5 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path when path is not empty, then environment variables read through
// getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString(getenv, "HTTP_ADDR", &c.HTTP.Addr)
	setString(getenv, "JWT_SECRET", &c.Auth.JWTSecret)
	setString(getenv, "JWT_ISSUER", &c.Auth.Issuer)
	setString(getenv, "CART_REMOTE", &c.Remote.Backend)
	setString(getenv, "DATABASE_URL", &c.Remote.DatabaseURL)
	setString(getenv, "DYNAMODB_TABLE", &c.Remote.DynamoTable)
	setString(getenv, "DYNAMODB_ENDPOINT", &c.Remote.DynamoEndpoint)
	setString(getenv, "AWS_REGION", &c.Remote.AWSRegion)
	setString(getenv, "REDIS_ADDR", &c.Local.RedisAddr)
	setString(getenv, "REDIS_PASSWORD", &c.Local.RedisPassword)
	setString(getenv, "KAFKA_EVENTS_TOPIC", &c.Kafka.EventsTopic)
	setString(getenv, "KAFKA_TOASTS_TOPIC", &c.Kafka.ToastsTopic)
	setString(getenv, "KAFKA_CONSUMER_GROUP", &c.Kafka.ConsumerGroup)
	setString(getenv, "LOG_LEVEL", &c.Log.Level)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SECURE_COOKIES: %w", err)
		}
		c.HTTP.SecureCookies = b
	}
	if v := getenv("SYNC_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SYNC_QUEUE_SIZE: %w", err)
		}
		c.Sync.QueueSize = n
	}
	if v := getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		c.Local.RedisDB = n
	}

	durations := map[string]*time.Duration{
		"CART_CACHE_TTL":    &c.Local.TTL,
		"CART_SESSION_IDLE": &c.Local.SessionIdle,
		"SYNC_TIMEOUT":      &c.Sync.Timeout,
		"JWT_TOKEN_EXPIRY":  &c.Auth.TokenExpiry,
	}
	for key, dst := range durations {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate checks what the API server needs before it starts.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingSecret
	}
	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return auth.ErrWeakSecret
	}

	switch c.Remote.Backend {
	case BackendPostgres:
		if c.Remote.DatabaseURL == "" {
			return ErrMissingDatabase
		}
	case BackendDynamoDB:
		if c.Remote.DynamoTable == "" {
			return ErrMissingTable
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Remote.Backend)
	}
	return nil
}

// Logger builds the process logger.
func (c LogConfig) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		level, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
