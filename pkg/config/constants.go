package config

const (
	EnvPrefix = "VENDORHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "VENDORHUB_APP_ENV"
	EnvPort          = "VENDORHUB_APP_PORT"
	EnvDBDSN         = "VENDORHUB_DB_DSN"
	EnvDBHost        = "VENDORHUB_DB_HOST"
	EnvDBUser        = "VENDORHUB_DB_USER"
	EnvDBName        = "VENDORHUB_DB_NAME"
	EnvDBTxTimeout   = "VENDORHUB_DB_TX_TIMEOUT"
	EnvRedisURL      = "VENDORHUB_REDIS_URL"
	EnvJWTSecret     = "VENDORHUB_JWT_SECRET"
	EnvJWTIssuer     = "VENDORHUB_JWT_ISSUER"
	EnvServerKey     = "VENDORHUB_PAYMENT_SERVER_KEY"
	EnvMinimumPayout = "VENDORHUB_ESCROW_MINIMUM_PAYOUT"
	EnvCancelWindow  = "VENDORHUB_ESCROW_CANCELLATION_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
