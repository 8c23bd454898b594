package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Gateway      GatewayConfig
	Checkout     CheckoutConfig
	Settlement   SettlementConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BIDSTREET_APP_ENV" required:"true"`
	Port         string `envconfig:"BIDSTREET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BIDSTREET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BIDSTREET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BIDSTREET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BIDSTREET_DB_DSN"`
	Driver string `envconfig:"BIDSTREET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BIDSTREET_DB_HOST"`
	LegacyPort     int    `envconfig:"BIDSTREET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BIDSTREET_DB_USER"`
	LegacyPassword string `envconfig:"BIDSTREET_DB_PASSWORD"`
	LegacyName     string `envconfig:"BIDSTREET_DB_NAME"`
	LegacySSLMode  string `envconfig:"BIDSTREET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BIDSTREET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIDSTREET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIDSTREET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIDSTREET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BIDSTREET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BIDSTREET_REDIS_ADDR"`
	Password     string        `envconfig:"BIDSTREET_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIDSTREET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIDSTREET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIDSTREET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIDSTREET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIDSTREET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BIDSTREET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BIDSTREET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BIDSTREET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BIDSTREET_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BIDSTREET_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BIDSTREET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BIDSTREET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BIDSTREET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"BIDSTREET_PUBSUB_DOMAIN_TOPIC" default:"bs-domain-events"`
	NotificationTopic        string `envconfig:"BIDSTREET_PUBSUB_NOTIFICATION_TOPIC" default:"bs-notification-events"`
	NotificationSubscription string `envconfig:"BIDSTREET_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	MediaSubscription        string `envconfig:"BIDSTREET_PUBSUB_MEDIA_SUBSCRIPTION"`
	OrdersSubscription       string `envconfig:"BIDSTREET_PUBSUB_ORDERS_SUBSCRIPTION"`
	BillingSubscription      string `envconfig:"BIDSTREET_PUBSUB_BILLING_SUBSCRIPTION"`
	DomainSubscription       string `envconfig:"BIDSTREET_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BIDSTREET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BIDSTREET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BIDSTREET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// GatewayConfig holds credentials for the payment gateway integration.
type GatewayConfig struct {
	BaseURL       string        `envconfig:"BIDSTREET_GATEWAY_BASE_URL" default:"https://api.gateway.test"`
	KeyID         string        `envconfig:"BIDSTREET_GATEWAY_KEY_ID"`
	KeySecret     string        `envconfig:"BIDSTREET_GATEWAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"BIDSTREET_GATEWAY_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"BIDSTREET_GATEWAY_TIMEOUT" default:"10s"`
	MaxRetries    int           `envconfig:"BIDSTREET_GATEWAY_MAX_RETRIES" default:"3"`

	WebhookRateLimit       int64         `envconfig:"BIDSTREET_GATEWAY_WEBHOOK_RATE_LIMIT" default:"120"`
	WebhookRateLimitWindow time.Duration `envconfig:"BIDSTREET_GATEWAY_WEBHOOK_RATE_WINDOW" default:"1m"`
}

type CheckoutConfig struct {
	TaxRateBasisPoints   int           `envconfig:"BIDSTREET_CHECKOUT_TAX_RATE_BPS" default:"800"`
	ShippingFlatCents    int           `envconfig:"BIDSTREET_CHECKOUT_SHIPPING_FLAT_CENTS" default:"599"`
	FreeShippingMinCents int           `envconfig:"BIDSTREET_CHECKOUT_FREE_SHIPPING_MIN_CENTS" default:"7500"`
	PendingOrderTTL      time.Duration `envconfig:"BIDSTREET_CHECKOUT_PENDING_ORDER_TTL" default:"24h"`
	IdempotencyKeyTTL    time.Duration `envconfig:"BIDSTREET_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	WebhookDedupTTL      time.Duration `envconfig:"BIDSTREET_WEBHOOK_DEDUP_TTL" default:"72h"`
}

// SettlementConfig tunes the auction settlement sweep.
type SettlementConfig struct {
	Interval      time.Duration `envconfig:"BIDSTREET_SETTLEMENT_INTERVAL" default:"1m"`
	BatchSize     int           `envconfig:"BIDSTREET_SETTLEMENT_BATCH_SIZE" default:"50"`
	Parallelism   int           `envconfig:"BIDSTREET_SETTLEMENT_PARALLELISM" default:"8"`
	SlowThreshold time.Duration `envconfig:"BIDSTREET_SETTLEMENT_SLOW_THRESHOLD" default:"30s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
