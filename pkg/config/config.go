package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	Cart          CartConfig
	Notifications NotificationsConfig
	Reviews       ReviewsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FANJAVA_APP_ENV" required:"true"`
	Port         string `envconfig:"FANJAVA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FANJAVA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FANJAVA_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FANJAVA_LOG_FORMAT" default:"json"`
	LogFile      string `envconfig:"FANJAVA_LOG_FILE"`
	LogMaxSizeMB int    `envconfig:"FANJAVA_LOG_MAX_SIZE_MB" default:"100"`
	LogMaxAgeDay int    `envconfig:"FANJAVA_LOG_MAX_AGE_DAYS" default:"14"`

	CORSOrigins []string `envconfig:"FANJAVA_CORS_ORIGINS" default:"http://localhost:3000"`
	// MetricsAddr is where background workers expose /metrics.
	MetricsAddr string `envconfig:"FANJAVA_METRICS_ADDR" default:":9090"`
	// PlatformPort is the PORT injected by Cloud Run; it wins over Port.
	PlatformPort string `envconfig:"PORT"`
}

// ListenAddr is the API's bind address.
func (a AppConfig) ListenAddr() string {
	if a.PlatformPort != "" {
		return ":" + a.PlatformPort
	}
	return ":" + a.Port
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FANJAVA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FANJAVA_DB_DSN"`
	Driver string `envconfig:"FANJAVA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FANJAVA_DB_HOST"`
	LegacyPort     int    `envconfig:"FANJAVA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FANJAVA_DB_USER"`
	LegacyPassword string `envconfig:"FANJAVA_DB_PASSWORD"`
	LegacyName     string `envconfig:"FANJAVA_DB_NAME"`
	LegacySSLMode  string `envconfig:"FANJAVA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FANJAVA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FANJAVA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FANJAVA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FANJAVA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FANJAVA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FANJAVA_REDIS_ADDR"`
	Password     string        `envconfig:"FANJAVA_REDIS_PASSWORD"`
	DB           int           `envconfig:"FANJAVA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FANJAVA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FANJAVA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FANJAVA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FANJAVA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FANJAVA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FANJAVA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FANJAVA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FANJAVA_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTTL returns the access token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FANJAVA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FANJAVA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FANJAVA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FANJAVA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FANJAVA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FANJAVA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FANJAVA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FANJAVA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FANJAVA_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FANJAVA_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FANJAVA_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FANJAVA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FANJAVA_AUTO_MIGRATE" default:"false"`
}

type CheckoutConfig struct {
	DeliveryFeeCents int64 `envconfig:"FANJAVA_CHECKOUT_DELIVERY_FEE_CENTS" default:"0"`
	MaxLines         int   `envconfig:"FANJAVA_CHECKOUT_MAX_LINES" default:"100"`

	RateLimitWindow  time.Duration `envconfig:"FANJAVA_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerUser int           `envconfig:"FANJAVA_CHECKOUT_RATE_LIMIT_PER_USER" default:"10"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"FANJAVA_CART_TTL" default:"720h"`
}

type NotificationsConfig struct {
	BatchSize       int `envconfig:"FANJAVA_NOTIFICATIONS_BATCH_SIZE" default:"500"`
	SyncLimit       int `envconfig:"FANJAVA_NOTIFICATIONS_SYNC_LIMIT" default:"2000"`
	PoolSize        int `envconfig:"FANJAVA_NOTIFICATIONS_POOL_SIZE" default:"4"`
	BatchConcurrent int `envconfig:"FANJAVA_NOTIFICATIONS_BATCH_CONCURRENCY" default:"4"`
}

type ReviewsConfig struct {
	AutoApprove     bool `envconfig:"FANJAVA_REVIEWS_AUTO_APPROVE" default:"false"`
	ReapproveOnEdit bool `envconfig:"FANJAVA_REVIEWS_REAPPROVE_ON_EDIT" default:"true"`
	RequirePurchase bool `envconfig:"FANJAVA_REVIEWS_REQUIRE_PURCHASE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"FANJAVA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FANJAVA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FANJAVA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FANJAVA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"FANJAVA_PUBSUB_DOMAIN_TOPIC" default:"fj-domain-events"`
	DomainSubscription string `envconfig:"FANJAVA_PUBSUB_DOMAIN_SUBSCRIPTION" default:"fj-domain-events-notifications"`

	MaxOutstandingMessages int `envconfig:"FANJAVA_PUBSUB_MAX_OUTSTANDING" default:"100"`
	ReceiveGoroutines      int `envconfig:"FANJAVA_PUBSUB_RECEIVE_GOROUTINES" default:"2"`
}

type OutboxConfig struct {
	BatchSize        int `envconfig:"FANJAVA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS   int `envconfig:"FANJAVA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts      int `envconfig:"FANJAVA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays    int `envconfig:"FANJAVA_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays int `envconfig:"FANJAVA_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

type CronConfig struct {
	Schedule        string        `envconfig:"FANJAVA_CRON_SCHEDULE" default:"@every 1h"`
	LockTTL         time.Duration `envconfig:"FANJAVA_CRON_LOCK_TTL" default:"10m"`
	PendingOrderTTL time.Duration `envconfig:"FANJAVA_CRON_PENDING_ORDER_TTL" default:"240h"`
	ExpiryBatchSize int           `envconfig:"FANJAVA_CRON_EXPIRY_BATCH_SIZE" default:"100"`
	JobTimeout      time.Duration `envconfig:"FANJAVA_CRON_JOB_TIMEOUT" default:"5m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = DefaultSQLiteDSN
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
