package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Sheets       SheetsConfig
	Sync         SyncConfig
	WriteBack    WriteBackConfig
	Access       AccessConfig
	HTTP         HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Sheets.validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOCKLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKLEDGER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOCKLEDGER_LOG_FORMAT" default:"json"`
	TimeZone     string `envconfig:"STOCKLEDGER_TIMEZONE" default:"UTC"`
}

// Location resolves the zone that decides where business days begin.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"STOCKLEDGER_DB_DSN"`

	LegacyHost     string `envconfig:"STOCKLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"STOCKLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOCKLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOCKLEDGER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOCKLEDGER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOCKLEDGER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOCKLEDGER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOCKLEDGER_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOCKLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOCKLEDGER_AUTO_MIGRATE" default:"false"`
}

// SheetsConfig describes the spreadsheet of record and its fixed column layout.
// Column indexes are zero-based.
type SheetsConfig struct {
	SpreadsheetID   string        `envconfig:"STOCKLEDGER_SHEETS_SPREADSHEET_ID" required:"true"`
	CredentialsJSON string        `envconfig:"STOCKLEDGER_SHEETS_CREDENTIALS_JSON"`
	CredentialsFile string        `envconfig:"STOCKLEDGER_SHEETS_CREDENTIALS_FILE"`
	ExcludedSheets  []string      `envconfig:"STOCKLEDGER_SHEETS_EXCLUDED"`
	SalesSheet      string        `envconfig:"STOCKLEDGER_SHEETS_SALES_SHEET" default:"Sales"`
	HeaderRows      int           `envconfig:"STOCKLEDGER_SHEETS_HEADER_ROWS" default:"1"`
	ColName         int           `envconfig:"STOCKLEDGER_SHEETS_COL_NAME" default:"0"`
	ColAttribute    int           `envconfig:"STOCKLEDGER_SHEETS_COL_ATTRIBUTE" default:"1"`
	ColQuantity     int           `envconfig:"STOCKLEDGER_SHEETS_COL_QUANTITY" default:"2"`
	ColPrice        int           `envconfig:"STOCKLEDGER_SHEETS_COL_PRICE" default:"3"`
	ColCost         int           `envconfig:"STOCKLEDGER_SHEETS_COL_COST" default:"4"`
	Workers         int           `envconfig:"STOCKLEDGER_SHEETS_WORKERS" default:"4"`
	CallTimeout     time.Duration `envconfig:"STOCKLEDGER_SHEETS_CALL_TIMEOUT" default:"20s"`
}

// Excludes reports whether the worksheet title is not a product category.
func (s SheetsConfig) Excludes(title string) bool {
	if strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(s.SalesSheet)) {
		return true
	}
	for _, excluded := range s.ExcludedSheets {
		if strings.EqualFold(strings.TrimSpace(excluded), strings.TrimSpace(title)) {
			return true
		}
	}
	return false
}

func (s SheetsConfig) validate() error {
	cols := map[string]int{
		"name":      s.ColName,
		"attribute": s.ColAttribute,
		"quantity":  s.ColQuantity,
		"price":     s.ColPrice,
		"cost":      s.ColCost,
	}
	seen := map[int]string{}
	for name, idx := range cols {
		if idx < 0 {
			return fmt.Errorf("sheets column %s must not be negative", name)
		}
		if other, ok := seen[idx]; ok {
			return fmt.Errorf("sheets columns %s and %s share index %d", other, name, idx)
		}
		seen[idx] = name
	}
	if s.HeaderRows < 0 {
		return fmt.Errorf("sheets header rows must not be negative")
	}
	return nil
}

type SyncConfig struct {
	Interval time.Duration `envconfig:"STOCKLEDGER_SYNC_INTERVAL" default:"15s"`
	LockTTL  time.Duration `envconfig:"STOCKLEDGER_SYNC_LOCK_TTL" default:"5m"`
}

type WriteBackConfig struct {
	QueueSize   int           `envconfig:"STOCKLEDGER_WRITEBACK_QUEUE_SIZE" default:"256"`
	MaxAttempts int           `envconfig:"STOCKLEDGER_WRITEBACK_MAX_ATTEMPTS" default:"3"`
	BaseBackoff time.Duration `envconfig:"STOCKLEDGER_WRITEBACK_BASE_BACKOFF" default:"1s"`
}

type AccessConfig struct {
	PasswordHash      string        `envconfig:"STOCKLEDGER_ACCESS_PASSWORD_HASH"`
	MaxFailedAttempts int           `envconfig:"STOCKLEDGER_ACCESS_MAX_FAILED_ATTEMPTS" default:"5"`
	FailureWindow     time.Duration `envconfig:"STOCKLEDGER_ACCESS_FAILURE_WINDOW" default:"0s"`
}

type HTTPConfig struct {
	AdminToken      string        `envconfig:"STOCKLEDGER_HTTP_ADMIN_TOKEN"`
	AllowedOrigins  []string      `envconfig:"STOCKLEDGER_HTTP_ALLOWED_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"STOCKLEDGER_HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		return fmt.Errorf("%s is required when sqlite is enabled", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
