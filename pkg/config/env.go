package config

// EnvPrefix is the envconfig prefix for every variable read by Load.
const EnvPrefix = "HPP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "HPP_APP_ENV"
	EnvPort     = "HPP_APP_PORT"
	EnvLogLevel = "HPP_LOG_LEVEL"

	EnvDBDSN  = "HPP_DB_DSN"
	EnvDBHost = "HPP_DB_HOST"
	EnvDBUser = "HPP_DB_USER"
	EnvDBName = "HPP_DB_NAME"

	EnvRedisURL  = "HPP_REDIS_URL"
	EnvUseSQLite = "HPP_USE_SQLITE"

	EnvDefaultLabor         = "HPP_DEFAULT_LABOR_PER_SERVING"
	EnvDefaultOverhead      = "HPP_DEFAULT_OVERHEAD_PER_SERVING"
	EnvFallbackRecipeCount  = "HPP_FALLBACK_RECIPE_COUNT"
	EnvOverheadWindowDays   = "HPP_OVERHEAD_WINDOW_DAYS"
	EnvCostBasis            = "HPP_COST_BASIS"
	EnvLaborMode            = "HPP_LABOR_MODE"
	EnvLaborLookbackBatches = "HPP_LABOR_LOOKBACK_BATCHES"
	EnvAlertChangeCritical  = "HPP_ALERT_CHANGE_CRITICAL"
	EnvAlertDecrease        = "HPP_ALERT_DECREASE_THRESHOLD"
	EnvAlertDedupWindow     = "HPP_ALERT_DEDUP_WINDOW"
	EnvBatchConcurrency     = "HPP_BATCH_CONCURRENCY"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
