// Package config loads the BILLING_* environment into typed settings shared by
// the api, ledger-worker, cron-worker and migrate binaries.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	robfig "github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Billing      BillingConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

// Load parses the environment and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	return multierr.Combine(
		c.DB.resolveDSN(),
		c.Redis.validate(),
		c.Billing.validate(),
	)
}

type AppConfig struct {
	Env          string   `envconfig:"BILLING_APP_ENV" required:"true"`
	Port         string   `envconfig:"BILLING_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"BILLING_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"BILLING_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"BILLING_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"BILLING_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

type ServiceConfig struct {
	Kind string `envconfig:"BILLING_SERVICE_KIND" default:"api"`
}

// DBConfig accepts either a full DSN or the discrete host/user/name settings.
// The sqlite driver treats DSN as a file path or ":memory:".
type DBConfig struct {
	DSN    string `envconfig:"BILLING_DB_DSN"`
	Driver string `envconfig:"BILLING_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BILLING_DB_HOST"`
	Port     int    `envconfig:"BILLING_DB_PORT" default:"5432"`
	User     string `envconfig:"BILLING_DB_USER"`
	Password string `envconfig:"BILLING_DB_PASSWORD"`
	Name     string `envconfig:"BILLING_DB_NAME"`
	SSLMode  string `envconfig:"BILLING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BILLING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BILLING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BILLING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BILLING_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"BILLING_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

func (db *DBConfig) resolveDSN() error {
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	switch db.Driver {
	case DBDriverPostgres:
	case DBDriverSQLite:
		if strings.TrimSpace(db.DSN) == "" {
			return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
		}
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDBDriver, DBDriverPostgres, DBDriverSQLite)
	}
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}

// RedisConfig prefers URL; Address and Password serve hosts that hand out
// discrete settings instead.
type RedisConfig struct {
	URL          string        `envconfig:"BILLING_REDIS_URL"`
	Address      string        `envconfig:"BILLING_REDIS_ADDR"`
	Password     string        `envconfig:"BILLING_REDIS_PASSWORD"`
	DB           int           `envconfig:"BILLING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BILLING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BILLING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BILLING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BILLING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BILLING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) validate() error {
	if strings.TrimSpace(r.URL) == "" && strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("either %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	return nil
}

type JWTConfig struct {
	Secret string        `envconfig:"BILLING_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"BILLING_JWT_ISSUER" required:"true"`
	Leeway time.Duration `envconfig:"BILLING_JWT_LEEWAY" default:"30s"`
	// ExpirationMinutes sets the lifetime of tokens this service signs itself.
	ExpirationMinutes int `envconfig:"BILLING_JWT_EXPIRATION_MINUTES" default:"60"`
}

// BillingConfig holds the knobs of the fee ledger and invoice cycle.
type BillingConfig struct {
	DefaultFeePercentage string        `envconfig:"BILLING_DEFAULT_FEE_PERCENTAGE" default:"5"`
	InvoiceDueDays       int           `envconfig:"BILLING_INVOICE_DUE_DAYS" default:"15"`
	DueSoonWindow        time.Duration `envconfig:"BILLING_DUE_SOON_WINDOW" default:"168h"`
	LockBackend          string        `envconfig:"BILLING_LOCK_BACKEND" default:"redis"`
	LockTimeout          time.Duration `envconfig:"BILLING_LOCK_TIMEOUT" default:"5s"`
	LockTTL              time.Duration `envconfig:"BILLING_LOCK_TTL" default:"30s"`
	CronInterval         time.Duration `envconfig:"BILLING_CRON_INTERVAL" default:"24h"`
	CronSchedule         string        `envconfig:"BILLING_CRON_SCHEDULE"`
	ExportRequestsPerMin int           `envconfig:"BILLING_EXPORT_REQUESTS_PER_MINUTE" default:"10"`
}

var defaultFeeRate = decimal.NewFromInt(5)

// DefaultFeeRate parses the configured default success-fee percentage.
func (b BillingConfig) DefaultFeeRate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(b.DefaultFeePercentage))
	if err != nil {
		return defaultFeeRate
	}
	return rate
}

// CycleSchedule parses CronSchedule as a standard five-field cron spec (or a
// descriptor such as "@monthly"). Without one the worker ticks every CronInterval.
func (b BillingConfig) CycleSchedule() (robfig.Schedule, error) {
	spec := strings.TrimSpace(b.CronSchedule)
	if spec == "" {
		return robfig.Every(b.CronInterval), nil
	}
	schedule, err := robfig.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvCronSchedule, err)
	}
	return schedule, nil
}

// UsesLocalLocks reports whether supplier locks are held in-process instead of in Redis.
func (b BillingConfig) UsesLocalLocks() bool {
	return strings.EqualFold(strings.TrimSpace(b.LockBackend), LockBackendLocal)
}

func (b BillingConfig) validate() error {
	var errs error
	rate, err := decimal.NewFromString(strings.TrimSpace(b.DefaultFeePercentage))
	switch {
	case err != nil:
		errs = multierr.Append(errs, fmt.Errorf("%s must be a decimal: %w", EnvDefaultFeePercentage, err))
	case rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)):
		errs = multierr.Append(errs, fmt.Errorf("%s must be between 0 and 100", EnvDefaultFeePercentage))
	}
	if b.InvoiceDueDays < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be non-negative", EnvInvoiceDueDays))
	}
	if b.LockTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvLockTimeout))
	}
	if b.CronInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvCronInterval))
	}
	if _, err := b.CycleSchedule(); err != nil && strings.TrimSpace(b.CronSchedule) != "" {
		errs = multierr.Append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(b.LockBackend)) {
	case LockBackendRedis, LockBackendLocal:
	default:
		errs = multierr.Append(errs, fmt.Errorf("%s must be %q or %q", EnvLockBackend, LockBackendRedis, LockBackendLocal))
	}
	return errs
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BILLING_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BILLING_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BILLING_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BILLING_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BILLING_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersSubscription string `envconfig:"BILLING_PUBSUB_ORDERS_SUBSCRIPTION"`
	BillingTopic       string `envconfig:"BILLING_PUBSUB_BILLING_TOPIC"`
}

// ErrNoOrdersSubscription is returned by RequireOrdersSubscription.
var ErrNoOrdersSubscription = errors.New(EnvOrdersSubscription + " is required")

// RequireOrdersSubscription is checked by the ledger worker, which cannot run
// without the orders feed.
func (p PubSubConfig) RequireOrdersSubscription() error {
	if strings.TrimSpace(p.OrdersSubscription) == "" {
		return ErrNoOrdersSubscription
	}
	return nil
}
