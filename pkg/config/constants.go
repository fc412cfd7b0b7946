package config

const (
	EnvPrefix = "VOLTARA"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv     = "VOLTARA_APP_ENV"
	EnvPort       = "VOLTARA_APP_PORT"
	EnvDBDSN      = "VOLTARA_DB_DSN"
	EnvDBHost     = "VOLTARA_DB_HOST"
	EnvDBUser     = "VOLTARA_DB_USER"
	EnvDBName     = "VOLTARA_DB_NAME"
	EnvRedisURL   = "VOLTARA_REDIS_URL"
	EnvJWTSecret  = "VOLTARA_JWT_SECRET"
	EnvJWTIssuer  = "VOLTARA_JWT_ISSUER"
	EnvJWTExpMins = "VOLTARA_JWT_EXPIRATION_MINUTES"

	EnvOTPHashSalt          = "VOLTARA_OTP_HASH_SALT"
	EnvGatewayAccessToken   = "VOLTARA_GATEWAY_ACCESS_TOKEN"
	EnvGatewayWebhookSecret = "VOLTARA_GATEWAY_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
