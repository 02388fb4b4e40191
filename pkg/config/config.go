package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	HPP          HPPConfig
	Cron         CronConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.HPP.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HPP_APP_ENV" required:"true"`
	Port         string `envconfig:"HPP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"HPP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HPP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HPP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HPP_DB_DSN"`
	Driver string `envconfig:"HPP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"HPP_DB_HOST"`
	Port     int    `envconfig:"HPP_DB_PORT" default:"5432"`
	User     string `envconfig:"HPP_DB_USER"`
	Password string `envconfig:"HPP_DB_PASSWORD"`
	Name     string `envconfig:"HPP_DB_NAME"`
	SSLMode  string `envconfig:"HPP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HPP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HPP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HPP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HPP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"HPP_DB_SLOW_QUERY" default:"200ms"`
}

// RedisConfig is optional; an empty URL and address disables Redis backed
// locks and caches.
type RedisConfig struct {
	URL          string        `envconfig:"HPP_REDIS_URL"`
	Address      string        `envconfig:"HPP_REDIS_ADDR"`
	Password     string        `envconfig:"HPP_REDIS_PASSWORD"`
	DB           int           `envconfig:"HPP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HPP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HPP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HPP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HPP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HPP_REDIS_WRITE_TIMEOUT" default:"5s"`
	Namespace    string        `envconfig:"HPP_REDIS_NAMESPACE" default:"hpp"`
	SlowCommand  time.Duration `envconfig:"HPP_REDIS_SLOW_COMMAND" default:"250ms"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite    bool `envconfig:"HPP_USE_SQLITE" default:"false"`
	AutoMigrate  bool `envconfig:"HPP_AUTO_MIGRATE" default:"false"`
	AutoSnapshot bool `envconfig:"HPP_AUTO_SNAPSHOT" default:"true"`
	// RecalculateOnPurchase re-snapshots recipes that use an ingredient
	// whose weighted average cost moved.
	RecalculateOnPurchase bool `envconfig:"HPP_RECALCULATE_ON_PURCHASE" default:"true"`
}

// Labor cost modes.
const (
	LaborModeBatches = "batches"
	LaborModeWindow  = "window"
)

// Cost bases. CostBasisBatch adds labor and overhead once to the batch
// material cost; CostBasisPerServing multiplies both by servings first.
const (
	CostBasisBatch      = "batch"
	CostBasisPerServing = "per_serving"
)

// HPPConfig holds the cost engine constants. It is loaded once and passed by
// value to every component.
type HPPConfig struct {
	DefaultLaborPerServing    decimal.Decimal `envconfig:"HPP_DEFAULT_LABOR_PER_SERVING" default:"5000"`
	DefaultOverheadPerServing decimal.Decimal `envconfig:"HPP_DEFAULT_OVERHEAD_PER_SERVING" default:"2000"`
	FallbackRecipeCount       int             `envconfig:"HPP_FALLBACK_RECIPE_COUNT" default:"10"`
	CostBasis                 string          `envconfig:"HPP_COST_BASIS" default:"batch"`
	OverheadWindowDays        int             `envconfig:"HPP_OVERHEAD_WINDOW_DAYS" default:"30"`

	WACLookback   int `envconfig:"HPP_WAC_LOOKBACK" default:"100"`
	WACMaxRetries int `envconfig:"HPP_WAC_MAX_RETRIES" default:"3"`

	LaborMode            string `envconfig:"HPP_LABOR_MODE" default:"batches"`
	LaborLookbackBatches int    `envconfig:"HPP_LABOR_LOOKBACK_BATCHES" default:"10"`
	LaborWindowDays      int    `envconfig:"HPP_LABOR_WINDOW_DAYS" default:"30"`

	ChangeCritical    float64       `envconfig:"HPP_ALERT_CHANGE_CRITICAL" default:"0.20"`
	ChangeHigh        float64       `envconfig:"HPP_ALERT_CHANGE_HIGH" default:"0.10"`
	ChangeMedium      float64       `envconfig:"HPP_ALERT_CHANGE_MEDIUM" default:"0.05"`
	DecreaseThreshold float64       `envconfig:"HPP_ALERT_DECREASE_THRESHOLD" default:"0.10"`
	MarginCritical    float64       `envconfig:"HPP_ALERT_MARGIN_CRITICAL" default:"0.10"`
	MarginHigh        float64       `envconfig:"HPP_ALERT_MARGIN_HIGH" default:"0.20"`
	CostSpike         float64       `envconfig:"HPP_ALERT_COST_SPIKE" default:"0.15"`
	ComponentChange   float64       `envconfig:"HPP_ALERT_COMPONENT_CHANGE" default:"0.05"`
	AlertDedupWindow  time.Duration `envconfig:"HPP_ALERT_DEDUP_WINDOW" default:"24h"`
	TrendDeadBand     float64       `envconfig:"HPP_TREND_DEAD_BAND" default:"1"`
	SnapshotRetention int           `envconfig:"HPP_SNAPSHOT_RETENTION_DAYS" default:"365"`

	BatchConcurrency int `envconfig:"HPP_BATCH_CONCURRENCY" default:"5"`
}

// DefaultHPPConfig mirrors the envconfig defaults for callers that do not load
// from the environment.
func DefaultHPPConfig() HPPConfig {
	return HPPConfig{
		DefaultLaborPerServing:    decimal.NewFromInt(5000),
		DefaultOverheadPerServing: decimal.NewFromInt(2000),
		FallbackRecipeCount:       10,
		CostBasis:                 CostBasisBatch,
		OverheadWindowDays:        30,
		WACLookback:               100,
		WACMaxRetries:             3,
		LaborMode:                 LaborModeBatches,
		LaborLookbackBatches:      10,
		LaborWindowDays:           30,
		ChangeCritical:            0.20,
		ChangeHigh:                0.10,
		ChangeMedium:              0.05,
		DecreaseThreshold:         0.10,
		MarginCritical:            0.10,
		MarginHigh:                0.20,
		CostSpike:                 0.15,
		ComponentChange:           0.05,
		AlertDedupWindow:          24 * time.Hour,
		TrendDeadBand:             1,
		SnapshotRetention:         365,
		BatchConcurrency:          5,
	}
}

func (h HPPConfig) Validate() error {
	var problems []string
	if h.DefaultLaborPerServing.IsNegative() {
		problems = append(problems, EnvDefaultLabor+" must be >= 0")
	}
	if h.DefaultOverheadPerServing.IsNegative() {
		problems = append(problems, EnvDefaultOverhead+" must be >= 0")
	}
	if h.FallbackRecipeCount < 1 {
		problems = append(problems, EnvFallbackRecipeCount+" must be >= 1")
	}
	if h.OverheadWindowDays < 1 {
		problems = append(problems, EnvOverheadWindowDays+" must be >= 1")
	}
	if h.LaborMode != LaborModeBatches && h.LaborMode != LaborModeWindow {
		problems = append(problems, fmt.Sprintf("%s must be %q or %q", EnvLaborMode, LaborModeBatches, LaborModeWindow))
	}
	if h.CostBasis != CostBasisBatch && h.CostBasis != CostBasisPerServing {
		problems = append(problems, fmt.Sprintf("%s must be %q or %q", EnvCostBasis, CostBasisBatch, CostBasisPerServing))
	}
	if h.LaborLookbackBatches < 1 {
		problems = append(problems, EnvLaborLookbackBatches+" must be >= 1")
	}
	if !(h.ChangeCritical >= h.ChangeHigh && h.ChangeHigh >= h.ChangeMedium && h.ChangeMedium > 0) {
		problems = append(problems, "alert change thresholds must satisfy critical >= high >= medium > 0")
	}
	if h.DecreaseThreshold < 0 {
		problems = append(problems, EnvAlertDecrease+" must be >= 0")
	}
	if !(h.MarginHigh >= h.MarginCritical && h.MarginCritical >= 0) {
		problems = append(problems, "alert margin thresholds must satisfy high >= critical >= 0")
	}
	if h.AlertDedupWindow < 0 {
		problems = append(problems, EnvAlertDedupWindow+" must be >= 0")
	}
	if h.BatchConcurrency < 1 {
		problems = append(problems, EnvBatchConcurrency+" must be >= 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid hpp config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// OverheadWindow is the trailing period used for the overhead pool and
// production volume.
func (h HPPConfig) OverheadWindow() time.Duration {
	return time.Duration(h.OverheadWindowDays) * 24 * time.Hour
}

func (h HPPConfig) LaborWindow() time.Duration {
	return time.Duration(h.LaborWindowDays) * 24 * time.Hour
}

func (h HPPConfig) SnapshotRetentionWindow() time.Duration {
	return time.Duration(h.SnapshotRetention) * 24 * time.Hour
}

type CronConfig struct {
	Interval time.Duration `envconfig:"HPP_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"HPP_CRON_LOCK_TTL" default:"30m"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"HPP_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"HPP_METRICS_PATH" default:"/metrics"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:hpp.db?cache=shared"
		return nil
	}

	missing := []string{}
	partValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if partValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
