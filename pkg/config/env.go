package config

const EnvPrefix = "STOCKLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv         = "STOCKLEDGER_APP_ENV"
	EnvPort           = "STOCKLEDGER_APP_PORT"
	EnvDBDSN          = "STOCKLEDGER_DB_DSN"
	EnvDBHost         = "STOCKLEDGER_DB_HOST"
	EnvDBUser         = "STOCKLEDGER_DB_USER"
	EnvDBName         = "STOCKLEDGER_DB_NAME"
	EnvRedisURL       = "STOCKLEDGER_REDIS_URL"
	EnvSpreadsheetID  = "STOCKLEDGER_SHEETS_SPREADSHEET_ID"
	EnvSheetsExcluded = "STOCKLEDGER_SHEETS_EXCLUDED"
	EnvSheetsColCost  = "STOCKLEDGER_SHEETS_COL_COST"
	EnvSyncInterval   = "STOCKLEDGER_SYNC_INTERVAL"
	EnvWriteBackQueue = "STOCKLEDGER_WRITEBACK_QUEUE_SIZE"
	EnvUseSQLite      = "STOCKLEDGER_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
