package config

const (
	EnvPrefix = "MATERIEL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv     = "MATERIEL_APP_ENV"
	EnvPort       = "MATERIEL_APP_PORT"
	EnvDBDSN      = "MATERIEL_DB_DSN"
	EnvDBHost     = "MATERIEL_DB_HOST"
	EnvDBUser     = "MATERIEL_DB_USER"
	EnvDBName     = "MATERIEL_DB_NAME"
	EnvRedisURL   = "MATERIEL_REDIS_URL"
	EnvJWTSecret  = "MATERIEL_JWT_SECRET"
	EnvJWTIssuer  = "MATERIEL_JWT_ISSUER"
	EnvJWTExpMins = "MATERIEL_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite  = "MATERIEL_USE_SQLITE"
	EnvAccessMode = "MATERIEL_ACCESS_MODE"
	EnvReactivate = "MATERIEL_ALLOW_RETIRED_REACTIVATION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
