package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	FeatureFlags  FeatureFlagsConfig
	Notifications NotificationsConfig
	Cleanup       CleanupConfig
	Scheduler     SchedulerConfig
	Zoho          ZohoConfig
	SMTP          SMTPConfig
	Ops           OpsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Scheduler.Location(); err != nil {
		return nil, err
	}
	if err := cfg.Notifications.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EXPIRY_APP_ENV" required:"true"`
	Port         string `envconfig:"EXPIRY_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"EXPIRY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"EXPIRY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"EXPIRY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"EXPIRY_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"EXPIRY_DB_DSN"`
	Driver string `envconfig:"EXPIRY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EXPIRY_DB_HOST"`
	LegacyPort     int    `envconfig:"EXPIRY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EXPIRY_DB_USER"`
	LegacyPassword string `envconfig:"EXPIRY_DB_PASSWORD"`
	LegacyName     string `envconfig:"EXPIRY_DB_NAME"`
	LegacySSLMode  string `envconfig:"EXPIRY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EXPIRY_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"EXPIRY_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"EXPIRY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EXPIRY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the threshold above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"EXPIRY_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EXPIRY_REDIS_URL"`
	Address      string        `envconfig:"EXPIRY_REDIS_ADDR"`
	Password     string        `envconfig:"EXPIRY_REDIS_PASSWORD"`
	DB           int           `envconfig:"EXPIRY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EXPIRY_REDIS_POOL_SIZE" default:"5"`
	MinIdleConns int           `envconfig:"EXPIRY_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"EXPIRY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EXPIRY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EXPIRY_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"EXPIRY_REDIS_KEY_PREFIX" default:"expiry"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"EXPIRY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"EXPIRY_AUTO_MIGRATE" default:"false"`
	// PendingFallback labels items without an expiry date as expiring soon once the
	// pending grace window has elapsed.
	PendingFallback bool `envconfig:"EXPIRY_PENDING_FALLBACK" default:"true"`
}

type NotificationsConfig struct {
	Days                []int         `envconfig:"EXPIRY_NOTIFICATION_DAYS" default:"30,15,7,3,1"`
	ExpiringSoonDays    int           `envconfig:"EXPIRY_EXPIRING_SOON_DAYS" default:"30"`
	PendingGrace        time.Duration `envconfig:"EXPIRY_PENDING_GRACE" default:"24h"`
	DigestWindow        time.Duration `envconfig:"EXPIRY_DIGEST_WINDOW" default:"24h"`
	DigestSubject       string        `envconfig:"EXPIRY_DIGEST_SUBJECT" default:"Items needing your attention"`
	RetentionDays       int           `envconfig:"EXPIRY_NOTIFICATION_RETENTION_DAYS" default:"30"`
	ExcludeTestItemName bool          `envconfig:"EXPIRY_DIGEST_EXCLUDE_TEST_ITEMS" default:"true"`
}

func (n NotificationsConfig) validate() error {
	for _, day := range n.Days {
		if day < 0 {
			return fmt.Errorf("%s must not contain negative days", EnvNotificationDays)
		}
	}
	if n.ExpiringSoonDays <= 0 {
		return fmt.Errorf("%s must be positive", EnvExpiringSoonDays)
	}
	return nil
}

type CleanupConfig struct {
	ExpiredGrace    time.Duration `envconfig:"EXPIRY_CLEANUP_EXPIRED_GRACE" default:"24h"`
	UnverifiedGrace time.Duration `envconfig:"EXPIRY_CLEANUP_UNVERIFIED_GRACE" default:"168h"`
}

type SchedulerConfig struct {
	Timezone     string        `envconfig:"EXPIRY_SCHEDULER_TIMEZONE" default:"Europe/London"`
	MisfireGrace time.Duration `envconfig:"EXPIRY_SCHEDULER_MISFIRE_GRACE" default:"3600s"`
	Coalesce     bool          `envconfig:"EXPIRY_SCHEDULER_COALESCE" default:"true"`
	LockTTL      time.Duration `envconfig:"EXPIRY_SCHEDULER_LOCK_TTL" default:"2h"`

	DailySweepSpec     string `envconfig:"EXPIRY_SCHEDULE_DAILY_SWEEP" default:"0 8 * * *"`
	ExpiredCleanupSpec string `envconfig:"EXPIRY_SCHEDULE_EXPIRED_CLEANUP" default:"0 0 * * *"`
	UnverifiedSpec     string `envconfig:"EXPIRY_SCHEDULE_UNVERIFIED_CLEANUP" default:"0 0 * * *"`
	InventorySyncSpec  string `envconfig:"EXPIRY_SCHEDULE_INVENTORY_SYNC" default:"30 */6 * * *"`
	RetentionSpec      string `envconfig:"EXPIRY_SCHEDULE_NOTIFICATION_RETENTION" default:"15 3 * * *"`
}

// Location resolves the scheduler timezone. The same zone defines calendar days
// for expiry math.
func (s SchedulerConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvSchedulerTimezone, err)
	}
	return loc, nil
}

type ZohoConfig struct {
	APIBaseURL     string        `envconfig:"EXPIRY_ZOHO_API_BASE_URL" default:"https://inventory.zoho.eu/api/v1"`
	AccountsURL    string        `envconfig:"EXPIRY_ZOHO_ACCOUNTS_URL" default:"https://accounts.zoho.eu"`
	ClientID       string        `envconfig:"EXPIRY_ZOHO_CLIENT_ID"`
	ClientSecret   string        `envconfig:"EXPIRY_ZOHO_CLIENT_SECRET"`
	RedirectURL    string        `envconfig:"EXPIRY_ZOHO_REDIRECT_URI" default:"http://localhost:5000/auth/zoho/callback"`
	Scopes         []string      `envconfig:"EXPIRY_ZOHO_SCOPES" default:"ZohoInventory.items.ALL,ZohoInventory.settings.READ"`
	RequestTimeout time.Duration `envconfig:"EXPIRY_ZOHO_REQUEST_TIMEOUT" default:"20s"`
	RateLimit      int64         `envconfig:"EXPIRY_ZOHO_RATE_LIMIT" default:"90"`
	RateWindow     time.Duration `envconfig:"EXPIRY_ZOHO_RATE_WINDOW" default:"1m"`
}

// OpsConfig guards the worker's job API. An empty token disables the job
// routes; health and metrics stay open.
type OpsConfig struct {
	Token        string        `envconfig:"EXPIRY_OPS_TOKEN"`
	RunLimit     int           `envconfig:"EXPIRY_OPS_RUN_LIMIT" default:"6"`
	RunWindow    time.Duration `envconfig:"EXPIRY_OPS_RUN_WINDOW" default:"1m"`
	ShutdownWait time.Duration `envconfig:"EXPIRY_OPS_SHUTDOWN_WAIT" default:"30s"`
}

// JobAPIEnabled reports whether the job routes are mounted.
func (o OpsConfig) JobAPIEnabled() bool {
	return strings.TrimSpace(o.Token) != ""
}

type SMTPConfig struct {
	Host        string        `envconfig:"EXPIRY_MAIL_SERVER"`
	Port        int           `envconfig:"EXPIRY_MAIL_PORT" default:"587"`
	Username    string        `envconfig:"EXPIRY_MAIL_USERNAME"`
	Password    string        `envconfig:"EXPIRY_MAIL_PASSWORD"`
	DefaultFrom string        `envconfig:"EXPIRY_MAIL_DEFAULT_SENDER"`
	Timeout     time.Duration `envconfig:"EXPIRY_MAIL_TIMEOUT" default:"20s"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if sqlite {
		db.Driver = DriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:expiry-tracker.db?_foreign_keys=on"
		return nil
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
