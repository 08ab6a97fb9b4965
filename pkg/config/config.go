package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Quotes    QuotesConfig
	Courier   CourierConfig
	Stripe    StripeConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
	Reconcile ReconcileConfig
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
	Env          string `envconfig:"LAUNDRYLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"LAUNDRYLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LAUNDRYLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LAUNDRYLINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LAUNDRYLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LAUNDRYLINK_DB_DSN"`
	Driver string `envconfig:"LAUNDRYLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LAUNDRYLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"LAUNDRYLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LAUNDRYLINK_DB_USER"`
	LegacyPassword string `envconfig:"LAUNDRYLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"LAUNDRYLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"LAUNDRYLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LAUNDRYLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LAUNDRYLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LAUNDRYLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LAUNDRYLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"LAUNDRYLINK_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LAUNDRYLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LAUNDRYLINK_REDIS_ADDR"`
	Password     string        `envconfig:"LAUNDRYLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"LAUNDRYLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LAUNDRYLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LAUNDRYLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LAUNDRYLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LAUNDRYLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LAUNDRYLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LAUNDRYLINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LAUNDRYLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LAUNDRYLINK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type QuotesConfig struct {
	TTL             time.Duration `envconfig:"LAUNDRYLINK_QUOTE_TTL" default:"15m"`
	ExpirySweep     time.Duration `envconfig:"LAUNDRYLINK_QUOTE_EXPIRY_SWEEP_INTERVAL" default:"1m"`
	NearbyRadiusKM  float64       `envconfig:"LAUNDRYLINK_NEARBY_RADIUS_KM" default:"15"`
	NearbyMaxStores int           `envconfig:"LAUNDRYLINK_NEARBY_MAX_STORES" default:"25"`
}

type CourierConfig struct {
	BaseURL       string        `envconfig:"LAUNDRYLINK_COURIER_BASE_URL" required:"true"`
	AuthURL       string        `envconfig:"LAUNDRYLINK_COURIER_AUTH_URL" required:"true"`
	ClientID      string        `envconfig:"LAUNDRYLINK_COURIER_CLIENT_ID" required:"true"`
	ClientSecret  string        `envconfig:"LAUNDRYLINK_COURIER_CLIENT_SECRET" required:"true"`
	CustomerID    string        `envconfig:"LAUNDRYLINK_COURIER_CUSTOMER_ID" required:"true"`
	WebhookSecret string        `envconfig:"LAUNDRYLINK_COURIER_WEBHOOK_SECRET" required:"true"`
	QuoteTimeout  time.Duration `envconfig:"LAUNDRYLINK_COURIER_QUOTE_TIMEOUT" default:"10s"`
	CreateTimeout time.Duration `envconfig:"LAUNDRYLINK_COURIER_CREATE_TIMEOUT" default:"15s"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"LAUNDRYLINK_STRIPE_API_KEY" required:"true"`
	WebhookSecret string `envconfig:"LAUNDRYLINK_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env           string `envconfig:"LAUNDRYLINK_STRIPE_ENV" default:"test"`
	SuccessURL    string `envconfig:"LAUNDRYLINK_STRIPE_SUCCESS_URL"`
	CancelURL     string `envconfig:"LAUNDRYLINK_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LAUNDRYLINK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"LAUNDRYLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LAUNDRYLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"LAUNDRYLINK_PUBSUB_NOTIFICATION_TOPIC" default:"ll-notification-events"`
	NotificationSubscription string `envconfig:"LAUNDRYLINK_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"ll-notification-events-sub"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LAUNDRYLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LAUNDRYLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LAUNDRYLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type ReconcileConfig struct {
	OrphanSweepInterval time.Duration `envconfig:"LAUNDRYLINK_RECONCILE_ORPHAN_SWEEP_INTERVAL" default:"5m"`
	OrphanMinAge        time.Duration `envconfig:"LAUNDRYLINK_RECONCILE_ORPHAN_MIN_AGE" default:"10m"`
	LockTTL             time.Duration `envconfig:"LAUNDRYLINK_RECONCILE_LOCK_TTL" default:"4m"`
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
