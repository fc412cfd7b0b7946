package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	Booking  BookingConfig
	Referral ReferralConfig
	Gateway  GatewayConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	BigQuery BigQueryConfig
	Cron     CronConfig

	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"VOLTARA_APP_ENV" required:"true"`
	Port         string `envconfig:"VOLTARA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VOLTARA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VOLTARA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VOLTARA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VOLTARA_DB_DSN"`
	Driver string `envconfig:"VOLTARA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VOLTARA_DB_HOST"`
	LegacyPort     int    `envconfig:"VOLTARA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VOLTARA_DB_USER"`
	LegacyPassword string `envconfig:"VOLTARA_DB_PASSWORD"`
	LegacyName     string `envconfig:"VOLTARA_DB_NAME"`
	LegacySSLMode  string `envconfig:"VOLTARA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VOLTARA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VOLTARA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VOLTARA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VOLTARA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VOLTARA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VOLTARA_REDIS_ADDR"`
	Password     string        `envconfig:"VOLTARA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VOLTARA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VOLTARA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VOLTARA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VOLTARA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VOLTARA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VOLTARA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VOLTARA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VOLTARA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VOLTARA_JWT_EXPIRATION_MINUTES" required:"true"`
}

// OTPConfig governs the terms-acceptance challenge lifecycle.
type OTPConfig struct {
	TTL         time.Duration `envconfig:"VOLTARA_OTP_TTL" default:"10m"`
	MaxAttempts int           `envconfig:"VOLTARA_OTP_MAX_ATTEMPTS" default:"5"`
	CodeLength  int           `envconfig:"VOLTARA_OTP_CODE_LENGTH" default:"6"`
	HashSalt    string        `envconfig:"VOLTARA_OTP_HASH_SALT" required:"true"`
}

// BookingConfig bounds reservation amounts and lifetime.
type BookingConfig struct {
	MinBookingAmount int64         `envconfig:"VOLTARA_BOOKING_MIN_AMOUNT" default:"2000"`
	ReservationTTL   time.Duration `envconfig:"VOLTARA_BOOKING_RESERVATION_TTL" default:"72h"`
}

// ReferralConfig drives post-payment bonus computation.
type ReferralConfig struct {
	FixedBonus           int64  `envconfig:"VOLTARA_REFERRAL_FIXED_BONUS" default:"1000"`
	TDSRate              string `envconfig:"VOLTARA_REFERRAL_TDS_RATE" default:"0.10"`
	EligibilityThreshold int64  `envconfig:"VOLTARA_REFERRAL_ELIGIBILITY_THRESHOLD" default:"5000"`
}

type GatewayConfig struct {
	AccessToken   string `envconfig:"VOLTARA_GATEWAY_ACCESS_TOKEN" required:"true"`
	Env           string `envconfig:"VOLTARA_GATEWAY_ENV" default:"sandbox"`
	LocationID    string `envconfig:"VOLTARA_GATEWAY_LOCATION_ID"`
	WebhookSecret string `envconfig:"VOLTARA_GATEWAY_WEBHOOK_SECRET" required:"true"`
	Currency      string `envconfig:"VOLTARA_GATEWAY_CURRENCY" default:"INR"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"VOLTARA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	BookingTopic        string `envconfig:"VOLTARA_PUBSUB_BOOKING_TOPIC" default:"vl-booking-events"`
	BookingSubscription string `envconfig:"VOLTARA_PUBSUB_BOOKING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"VOLTARA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"VOLTARA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"VOLTARA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"VOLTARA_OUTBOX_IDEMPOTENCY_TTL" default:"48h"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"VOLTARA_BIGQUERY_DATASET"`
	BookingEventsTable string `envconfig:"VOLTARA_BIGQUERY_BOOKING_EVENTS_TABLE" default:"booking_events"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"VOLTARA_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"VOLTARA_CRON_LOCK_TTL" default:"14m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VOLTARA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VOLTARA_AUTO_MIGRATE" default:"false"`
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
