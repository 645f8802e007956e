package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "sportshub"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "SPORTSHUB_APP_ENV"
	EnvPort      = "SPORTSHUB_APP_PORT"
	EnvDBDSN     = "SPORTSHUB_DB_DSN"
	EnvDBHost    = "SPORTSHUB_DB_HOST"
	EnvDBUser    = "SPORTSHUB_DB_USER"
	EnvDBName    = "SPORTSHUB_DB_NAME"
	EnvJWTSecret = "SPORTSHUB_JWT_SECRET"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Stripe    StripeConfig
	Sendgrid  SendgridConfig
	URLs      URLConfig
	Cron      CronConfig
	RateLimit RateLimitConfig
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
	Env          string `envconfig:"SPORTSHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"SPORTSHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SPORTSHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SPORTSHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN         string `envconfig:"SPORTSHUB_DB_DSN"`
	Driver      string `envconfig:"SPORTSHUB_DB_DRIVER" default:"postgres"`
	AutoMigrate bool   `envconfig:"SPORTSHUB_DB_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"SPORTSHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"SPORTSHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SPORTSHUB_DB_USER"`
	LegacyPassword string `envconfig:"SPORTSHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"SPORTSHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"SPORTSHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SPORTSHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SPORTSHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SPORTSHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SPORTSHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SPORTSHUB_REDIS_URL"`
	Address      string        `envconfig:"SPORTSHUB_REDIS_ADDR"`
	Password     string        `envconfig:"SPORTSHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SPORTSHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SPORTSHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SPORTSHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SPORTSHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SPORTSHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SPORTSHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string        `envconfig:"SPORTSHUB_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"SPORTSHUB_JWT_ISSUER" default:"sportshub"`
	TTL    time.Duration `envconfig:"SPORTSHUB_JWT_TTL" default:"24h"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"SPORTSHUB_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"SPORTSHUB_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"SPORTSHUB_STRIPE_ENV" default:"test"`
	Currency      string `envconfig:"SPORTSHUB_STRIPE_CURRENCY" default:"aud"`

	// CheckoutExpiry bounds how long a reservation is held against a
	// pending checkout before Stripe expires it and the webhook restocks.
	CheckoutExpiry time.Duration `envconfig:"SPORTSHUB_STRIPE_CHECKOUT_EXPIRY" default:"30m"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"SPORTSHUB_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"SPORTSHUB_SENDGRID_FROM_EMAIL"`
}

type URLConfig struct {
	// FrontendBase is the origin for fulfilment resume links and
	// post-success redirects, e.g. https://www.sportshub.net.au.
	FrontendBase string `envconfig:"SPORTSHUB_FRONTEND_BASE_URL" default:"https://www.sportshub.net.au"`
}

type RateLimitConfig struct {
	// SessionInitPerIP throttles anonymous session creation per client
	// IP within SessionInitWindow; zero disables the limiter.
	SessionInitWindow time.Duration `envconfig:"SPORTSHUB_RATE_LIMIT_SESSION_INIT_WINDOW" default:"1m"`
	SessionInitPerIP  int           `envconfig:"SPORTSHUB_RATE_LIMIT_SESSION_INIT_PER_IP" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SPORTSHUB_CRON_INTERVAL" default:"10m"`

	// SessionCleanupCutoff is how long an untouched fulfilment session
	// survives before the sweep removes it.
	SessionCleanupCutoff time.Duration `envconfig:"SPORTSHUB_SESSION_CLEANUP_CUTOFF" default:"35m"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// ResumeURL points the browser back at a specific fulfilment entity.
func (u URLConfig) ResumeURL(sessionID, entityID string) string {
	return fmt.Sprintf("%s/fulfilment/%s/%s", strings.TrimRight(u.FrontendBase, "/"), sessionID, entityID)
}

// EventSuccessURL is the post-purchase landing page for an event.
func (u URLConfig) EventSuccessURL(eventID string) string {
	return fmt.Sprintf("%s/event/success/%s", strings.TrimRight(u.FrontendBase, "/"), eventID)
}

// EventURL is the public event page.
func (u URLConfig) EventURL(eventID string) string {
	return fmt.Sprintf("%s/event/%s", strings.TrimRight(u.FrontendBase, "/"), eventID)
}

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

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
