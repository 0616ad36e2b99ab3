package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "FANJAVA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const DefaultSQLiteDSN = "file:fanjava.db?cache=shared&_foreign_keys=on"

const (
	EnvAppEnv      = "FANJAVA_APP_ENV"
	EnvPort        = "FANJAVA_APP_PORT"
	EnvLogLevel    = "FANJAVA_LOG_LEVEL"
	EnvDBDSN       = "FANJAVA_DB_DSN"
	EnvDBHost      = "FANJAVA_DB_HOST"
	EnvDBUser      = "FANJAVA_DB_USER"
	EnvDBPassword  = "FANJAVA_DB_PASSWORD"
	EnvDBName      = "FANJAVA_DB_NAME"
	EnvRedisURL    = "FANJAVA_REDIS_URL"
	EnvJWTSecret   = "FANJAVA_JWT_SECRET"
	EnvJWTIssuer   = "FANJAVA_JWT_ISSUER"
	EnvJWTExpMins  = "FANJAVA_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite   = "FANJAVA_USE_SQLITE"
	EnvDeliveryFee = "FANJAVA_CHECKOUT_DELIVERY_FEE_CENTS"
	EnvSyncLimit   = "FANJAVA_NOTIFICATIONS_SYNC_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
