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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Device        DeviceConfig
	Idempotency   IdempotencyConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TAPFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"TAPFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TAPFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TAPFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TAPFLOW_DB_DSN"`
	Driver string `envconfig:"TAPFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TAPFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"TAPFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TAPFLOW_DB_USER"`
	LegacyPassword string `envconfig:"TAPFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"TAPFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"TAPFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TAPFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TAPFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TAPFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TAPFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TAPFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TAPFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"TAPFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"TAPFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TAPFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TAPFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TAPFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TAPFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TAPFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TAPFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TAPFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TAPFLOW_JWT_EXPIRATION_MINUTES" default:"1440"`
}

func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TAPFLOW_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TAPFLOW_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TAPFLOW_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TAPFLOW_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TAPFLOW_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"TAPFLOW_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"TAPFLOW_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"TAPFLOW_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TAPFLOW_AUTO_MIGRATE" default:"false"`
}

type DeviceConfig struct {
	SignatureSkew    time.Duration `envconfig:"TAPFLOW_DEVICE_SIGNATURE_SKEW" default:"5m"`
	SecretBytes      int           `envconfig:"TAPFLOW_DEVICE_SECRET_BYTES" default:"32"`
	OnlineWindow     time.Duration `envconfig:"TAPFLOW_DEVICE_ONLINE_WINDOW" default:"5m"`
	DefaultMaxPourML int           `envconfig:"TAPFLOW_DEVICE_DEFAULT_MAX_POUR_ML" default:"500"`
	StatusRateWindow time.Duration `envconfig:"TAPFLOW_DEVICE_STATUS_RATE_WINDOW" default:"10s"`
	StatusRateLimit  int           `envconfig:"TAPFLOW_DEVICE_STATUS_RATE_LIMIT" default:"20"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"TAPFLOW_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TAPFLOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TAPFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TAPFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	CommandsTopic         string        `envconfig:"TAPFLOW_PUBSUB_COMMANDS_TOPIC" required:"true"`
	TelemetrySubscription string        `envconfig:"TAPFLOW_PUBSUB_TELEMETRY_SUBSCRIPTION"`
	PublishTimeout        time.Duration `envconfig:"TAPFLOW_PUBSUB_PUBLISH_TIMEOUT" default:"5s"`
}

func (db *DBConfig) ensureDSN() error {
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
