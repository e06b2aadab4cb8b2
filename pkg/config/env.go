package config

const EnvPrefix = "PACKFINDERZ"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PACKFINDERZ_APP_ENV"
	EnvLogLevel = "PACKFINDERZ_LOG_LEVEL"

	EnvDBDSN  = "PACKFINDERZ_DB_DSN"
	EnvDBHost = "PACKFINDERZ_DB_HOST"
	EnvDBUser = "PACKFINDERZ_DB_USER"
	EnvDBName = "PACKFINDERZ_DB_NAME"

	EnvUseSQLite  = "PACKFINDERZ_USE_SQLITE"
	EnvSQLitePath = "PACKFINDERZ_SQLITE_PATH"

	EnvRedisURL = "PACKFINDERZ_REDIS_URL"

	EnvGCPProjectID          = "PACKFINDERZ_GCP_PROJECT_ID"
	EnvPubSubInventoryTopic  = "PACKFINDERZ_PUBSUB_INVENTORY_TOPIC"
	EnvPubSubAlertsTopic     = "PACKFINDERZ_PUBSUB_ALERTS_TOPIC"
	EnvInventoryMaxRetries   = "PACKFINDERZ_INVENTORY_MAX_CAS_RETRIES"
	EnvInventoryLowStockTick = "PACKFINDERZ_INVENTORY_LOW_STOCK_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
