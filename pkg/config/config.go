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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Access       AccessConfig
	RateLimit    RateLimitConfig
	Idempotency  IdempotencyConfig
	Tracing      TracingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MATERIEL_APP_ENV" required:"true"`
	Port         string `envconfig:"MATERIEL_APP_PORT" default:"8080"`
	ServiceName  string `envconfig:"MATERIEL_SERVICE_NAME" default:"materiel-api"`
	LogLevel     string `envconfig:"MATERIEL_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MATERIEL_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MATERIEL_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"MATERIEL_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	return splitList(a.CORSOrigins)
}

type DBConfig struct {
	DSN    string `envconfig:"MATERIEL_DB_DSN"`
	Driver string `envconfig:"MATERIEL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MATERIEL_DB_HOST"`
	LegacyPort     int    `envconfig:"MATERIEL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MATERIEL_DB_USER"`
	LegacyPassword string `envconfig:"MATERIEL_DB_PASSWORD"`
	LegacyName     string `envconfig:"MATERIEL_DB_NAME"`
	LegacySSLMode  string `envconfig:"MATERIEL_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"MATERIEL_SQLITE_PATH" default:"materiel.db"`

	MaxOpenConns    int           `envconfig:"MATERIEL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MATERIEL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MATERIEL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MATERIEL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn. Zero disables it.
	SlowQuery time.Duration `envconfig:"MATERIEL_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MATERIEL_REDIS_URL"`
	Address      string        `envconfig:"MATERIEL_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"MATERIEL_REDIS_PASSWORD"`
	DB           int           `envconfig:"MATERIEL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MATERIEL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MATERIEL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MATERIEL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MATERIEL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MATERIEL_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"MATERIEL_REDIS_KEY_PREFIX" default:"mt"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MATERIEL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MATERIEL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MATERIEL_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// AccessConfig controls how the materiel access capability is resolved.
// Mode "role" looks up role assignments in the host tables, "static" uses
// the StaticUserIDs allow-list.
type AccessConfig struct {
	Mode          string        `envconfig:"MATERIEL_ACCESS_MODE" default:"role"`
	RoleShortname string        `envconfig:"MATERIEL_ACCESS_ROLE" default:"mmi_materiel"`
	ContextLevel  int           `envconfig:"MATERIEL_ACCESS_CONTEXT_LEVEL" default:"10"`
	CacheTTL      time.Duration `envconfig:"MATERIEL_ACCESS_CACHE_TTL" default:"1m"`
	StaticUserIDs string        `envconfig:"MATERIEL_ACCESS_STATIC_USERS"`
}

// RateLimitConfig bounds requests per client IP and writes per acting user
// within Window. A zero limit disables that check.
type RateLimitConfig struct {
	Requests      int           `envconfig:"MATERIEL_RATE_LIMIT_REQUESTS" default:"100"`
	WriteRequests int           `envconfig:"MATERIEL_RATE_LIMIT_WRITE_REQUESTS" default:"30"`
	Window        time.Duration `envconfig:"MATERIEL_RATE_LIMIT_WINDOW" default:"1m"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"MATERIEL_IDEMPOTENCY_TTL" default:"24h"`
}

type TracingConfig struct {
	Enabled      bool    `envconfig:"MATERIEL_TRACING_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"MATERIEL_OTLP_ENDPOINT" default:"localhost:4318"`
	Insecure     bool    `envconfig:"MATERIEL_OTLP_INSECURE" default:"true"`
	SampleRatio  float64 `envconfig:"MATERIEL_TRACING_SAMPLE_RATIO" default:"1"`
}

type FeatureFlagsConfig struct {
	UseSQLite                bool `envconfig:"MATERIEL_USE_SQLITE" default:"false"`
	AutoMigrate              bool `envconfig:"MATERIEL_AUTO_MIGRATE" default:"false"`
	AllowRetiredReactivation bool `envconfig:"MATERIEL_ALLOW_RETIRED_REACTIVATION" default:"true"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
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

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
