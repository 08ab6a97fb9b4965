package config

// EnvPrefix is passed to envconfig.Process; individual fields carry the
// fully prefixed variable names so the prefix stays visible at the tag.
const EnvPrefix = "laundrylink"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "LAUNDRYLINK_DB_DSN"
	EnvDBHost = "LAUNDRYLINK_DB_HOST"
	EnvDBUser = "LAUNDRYLINK_DB_USER"
	EnvDBName = "LAUNDRYLINK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
