package config

// EnvPrefix is handed to envconfig. Every field names its key explicitly, so
// the prefix only matters for fields added without a tag.
const EnvPrefix = "BILLING"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	LockBackendRedis = "redis"
	LockBackendLocal = "local"
)

// Variable names referenced by validation messages and tests.
const (
	EnvAppEnv               = "BILLING_APP_ENV"
	EnvPort                 = "BILLING_APP_PORT"
	EnvDBDSN                = "BILLING_DB_DSN"
	EnvDBDriver             = "BILLING_DB_DRIVER"
	EnvDBHost               = "BILLING_DB_HOST"
	EnvDBUser               = "BILLING_DB_USER"
	EnvDBName               = "BILLING_DB_NAME"
	EnvRedisURL             = "BILLING_REDIS_URL"
	EnvRedisAddr            = "BILLING_REDIS_ADDR"
	EnvJWTSecret            = "BILLING_JWT_SECRET"
	EnvJWTIssuer            = "BILLING_JWT_ISSUER"
	EnvDefaultFeePercentage = "BILLING_DEFAULT_FEE_PERCENTAGE"
	EnvInvoiceDueDays       = "BILLING_INVOICE_DUE_DAYS"
	EnvLockBackend          = "BILLING_LOCK_BACKEND"
	EnvLockTimeout          = "BILLING_LOCK_TIMEOUT"
	EnvCronInterval         = "BILLING_CRON_INTERVAL"
	EnvCronSchedule         = "BILLING_CRON_SCHEDULE"
	EnvOrdersSubscription   = "BILLING_PUBSUB_ORDERS_SUBSCRIPTION"
)
