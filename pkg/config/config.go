package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Escrow       EscrowConfig
	Webhook      WebhookConfig
	Gateway      GatewayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Escrow.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"VENDORHUB_APP_ENV" required:"true"`
	Port         string   `envconfig:"VENDORHUB_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"VENDORHUB_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"VENDORHUB_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"VENDORHUB_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"VENDORHUB_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORHUB_DB_DSN"`
	Driver string `envconfig:"VENDORHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VENDORHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"VENDORHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENDORHUB_DB_USER"`
	LegacyPassword string `envconfig:"VENDORHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENDORHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENDORHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// TxTimeout bounds a whole money-moving transaction; LockTimeout bounds
	// the wait on a single row lock inside it.
	TxTimeout   time.Duration `envconfig:"VENDORHUB_DB_TX_TIMEOUT" default:"30s"`
	LockTimeout time.Duration `envconfig:"VENDORHUB_DB_LOCK_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORHUB_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification side of the externally issued access tokens.
type JWTConfig struct {
	Secret string `envconfig:"VENDORHUB_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"VENDORHUB_JWT_ISSUER" required:"true"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"VENDORHUB_RATE_LIMIT_RPS" default:"5"`
	Burst             int     `envconfig:"VENDORHUB_RATE_LIMIT_BURST" default:"20"`
	AdminBurst        int     `envconfig:"VENDORHUB_RATE_LIMIT_ADMIN_BURST" default:"100"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VENDORHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VENDORHUB_AUTO_MIGRATE" default:"false"`
}

// EscrowConfig carries the business windows of the order lifecycle.
type EscrowConfig struct {
	CancellationWindow time.Duration `envconfig:"VENDORHUB_ESCROW_CANCELLATION_WINDOW" default:"24h"`
	ReturnWindow       time.Duration `envconfig:"VENDORHUB_ESCROW_RETURN_WINDOW" default:"24h"`
	PaymentTTL         time.Duration `envconfig:"VENDORHUB_ESCROW_PAYMENT_TTL" default:"24h"`
	MinimumPayoutRaw   string        `envconfig:"VENDORHUB_ESCROW_MINIMUM_PAYOUT" default:"50000"`
}

// MinimumPayout parses the configured minimum payout amount.
func (e EscrowConfig) MinimumPayout() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(e.MinimumPayoutRaw))
	if err != nil {
		return decimal.Zero
	}
	return value
}

func (e EscrowConfig) validate() error {
	if _, err := decimal.NewFromString(strings.TrimSpace(e.MinimumPayoutRaw)); err != nil {
		return fmt.Errorf("%s must be a decimal amount: %w", EnvMinimumPayout, err)
	}
	if e.CancellationWindow <= 0 || e.ReturnWindow <= 0 {
		return fmt.Errorf("escrow windows must be positive")
	}
	return nil
}

// WebhookConfig holds the shared secrets of inbound callbacks.
type WebhookConfig struct {
	PaymentServerKey string `envconfig:"VENDORHUB_PAYMENT_SERVER_KEY" required:"true"`
	TrackingSecret   string `envconfig:"VENDORHUB_TRACKING_WEBHOOK_SECRET"`
}

type GatewayConfig struct {
	BaseURL string        `envconfig:"VENDORHUB_GATEWAY_BASE_URL"`
	Timeout time.Duration `envconfig:"VENDORHUB_GATEWAY_TIMEOUT" default:"10s"`
}

// Enabled reports whether refund calls should reach a real gateway.
func (g GatewayConfig) Enabled() bool {
	return strings.TrimSpace(g.BaseURL) != ""
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENDORHUB_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"VENDORHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"VENDORHUB_PUBSUB_NOTIFICATION_TOPIC" default:"vh-notification-events"`
	ChatRoomTopic     string `envconfig:"VENDORHUB_PUBSUB_CHAT_ROOM_TOPIC" default:"vh-chat-room-requests"`
}

type CronConfig struct {
	Interval      time.Duration `envconfig:"VENDORHUB_CRON_INTERVAL" default:"5m"`
	LockTTL       time.Duration `envconfig:"VENDORHUB_CRON_LOCK_TTL" default:"4m"`
	JobTimeout    time.Duration `envconfig:"VENDORHUB_CRON_JOB_TIMEOUT" default:"2m"`
	AuditInterval time.Duration `envconfig:"VENDORHUB_CRON_AUDIT_INTERVAL" default:"6h"`
	ExpiryBatch   int           `envconfig:"VENDORHUB_CRON_EXPIRY_BATCH" default:"200"`
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
