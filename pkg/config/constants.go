package config

// EnvPrefix is intentionally empty: every variable names its full
// BIDSTREET_-prefixed key in its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "BIDSTREET_DB_DSN"
	EnvDBHost = "BIDSTREET_DB_HOST"
	EnvDBUser = "BIDSTREET_DB_USER"
	EnvDBName = "BIDSTREET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
