package config

const (
	EnvPrefix = "TAPFLOW"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "TAPFLOW_DB_DSN"
	EnvDBHost = "TAPFLOW_DB_HOST"
	EnvDBUser = "TAPFLOW_DB_USER"
	EnvDBName = "TAPFLOW_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
