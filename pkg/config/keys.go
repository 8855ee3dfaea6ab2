package config

const (
	EnvPrefix = "EXPIRY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv            = "EXPIRY_APP_ENV"
	EnvDBDSN             = "EXPIRY_DB_DSN"
	EnvDBHost            = "EXPIRY_DB_HOST"
	EnvDBUser            = "EXPIRY_DB_USER"
	EnvDBName            = "EXPIRY_DB_NAME"
	EnvRedisURL          = "EXPIRY_REDIS_URL"
	EnvUseSQLite         = "EXPIRY_USE_SQLITE"
	EnvNotificationDays  = "EXPIRY_NOTIFICATION_DAYS"
	EnvExpiringSoonDays  = "EXPIRY_EXPIRING_SOON_DAYS"
	EnvSchedulerTimezone = "EXPIRY_SCHEDULER_TIMEZONE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
