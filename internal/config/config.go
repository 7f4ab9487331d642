package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"

	BackendLocal = "local"
	BackendMinio = "minio"
)

type Config struct {
	GinMode         string        `yaml:"ginMode"`
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"logLevel"`
	ServiceName     string        `yaml:"serviceName"`
	TZ              string        `yaml:"tz"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	DBDriver          string        `yaml:"dbDriver"`
	DBHost            string        `yaml:"dbHost"`
	DBPort            string        `yaml:"dbPort"`
	DBUser            string        `yaml:"dbUser"`
	DBPass            string        `yaml:"dbPassword"`
	DBName            string        `yaml:"dbName"`
	DBSSLMode         string        `yaml:"dbSSLMode"`
	DBMaxOpenConns    int           `yaml:"dbMaxOpenConns"`
	DBMaxIdleConns    int           `yaml:"dbMaxIdleConns"`
	DBConnMaxLifetime time.Duration `yaml:"dbConnMaxLifetime"`
	DBConnectAttempts int           `yaml:"dbConnectAttempts"`
	DBConnectDelay    time.Duration `yaml:"dbConnectDelay"`

	AssetBackend   string `yaml:"assetBackend"`
	UploadDir      string `yaml:"uploadDir"`
	AssetsPrefix   string `yaml:"assetsPrefix"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`

	CleanupWorkers    int  `yaml:"cleanupWorkers"`
	CleanupMaxRetries int  `yaml:"cleanupMaxRetries"`
	CompensateOrphans bool `yaml:"compensateOrphans"`

	CORSAllowOrigins []string `yaml:"corsAllowOrigins"`
	TrustedProxies   []string `yaml:"trustedProxies"`
	OTLPEndpoint     string   `yaml:"otlpEndpoint"`
}

func defaults() *Config {
	return &Config{
		GinMode:         "debug",
		Port:            "8080",
		LogLevel:        "info",
		ServiceName:     "books-api",
		TZ:              "UTC",
		ShutdownTimeout: 10 * time.Second,

		DBDriver:          DriverPostgres,
		DBHost:            "localhost",
		DBPort:            "5432",
		DBUser:            "postgres",
		DBName:            "books",
		DBMaxOpenConns:    10,
		DBMaxIdleConns:    10,
		DBConnMaxLifetime: 5 * time.Minute,
		DBConnectAttempts: 10,
		DBConnectDelay:    2 * time.Second,

		AssetBackend:   BackendLocal,
		UploadDir:      "uploads",
		AssetsPrefix:   "/uploads",
		MaxUploadBytes: 10 << 20,

		CleanupWorkers:    2,
		CleanupMaxRetries: 3,

		CORSAllowOrigins: []string{"*"},
		TrustedProxies:   []string{"127.0.0.1", "::1"},
	}
}

func findEnvFile(name string) (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}

	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and the environment, in that order of precedence.
func Load() (*Config, error) {
	if getenv("GIN_MODE", "debug") == "debug" {
		if envPath, ok := findEnvFile(".env"); ok {
			if err := godotenv.Load(envPath); err != nil {
				log.Printf("warning: could not load %s: %v", envPath, err)
			}
		}
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.DBSSLMode == "" {
		if cfg.GinMode == "release" {
			cfg.DBSSLMode = "require"
		} else {
			cfg.DBSSLMode = "disable"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.GinMode = getenv("GIN_MODE", c.GinMode)
	c.Port = getenv("PORT", c.Port)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.ServiceName = getenv("SERVICE_NAME", c.ServiceName)
	c.TZ = getenv("TZ", c.TZ)
	c.ShutdownTimeout = getenvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.DBDriver = strings.ToLower(getenv("DB_DRIVER", c.DBDriver))
	c.DBHost = getenv("DB_HOST", c.DBHost)
	c.DBPort = getenv("DB_PORT", c.DBPort)
	c.DBUser = getenv("DB_USER", c.DBUser)
	c.DBPass = getenv("DB_PASSWORD", getenv("DB_PASS", c.DBPass))
	c.DBName = getenv("DB_NAME", c.DBName)
	c.DBSSLMode = getenv("DB_SSLMODE", c.DBSSLMode)
	c.DBMaxOpenConns = getenvInt("DB_MAX_OPEN_CONNS", c.DBMaxOpenConns)
	c.DBMaxIdleConns = getenvInt("DB_MAX_IDLE_CONNS", c.DBMaxIdleConns)
	c.DBConnMaxLifetime = getenvDuration("DB_CONN_MAX_LIFETIME", c.DBConnMaxLifetime)
	c.DBConnectAttempts = getenvInt("DB_CONNECT_ATTEMPTS", c.DBConnectAttempts)
	c.DBConnectDelay = getenvDuration("DB_CONNECT_DELAY", c.DBConnectDelay)

	c.AssetBackend = strings.ToLower(getenv("ASSET_BACKEND", c.AssetBackend))
	c.UploadDir = getenv("UPLOAD_DIR", c.UploadDir)
	c.AssetsPrefix = getenv("ASSETS_PREFIX", c.AssetsPrefix)
	c.MaxUploadBytes = int64(getenvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))

	c.MinioEndpoint = getenv("MINIO_ENDPOINT", c.MinioEndpoint)
	c.MinioAccessKey = getenv("MINIO_ACCESS_KEY", c.MinioAccessKey)
	c.MinioSecretKey = getenv("MINIO_SECRET_KEY", c.MinioSecretKey)
	c.MinioBucket = getenv("MINIO_BUCKET", c.MinioBucket)
	c.MinioUseSSL = getenvBool("MINIO_USE_SSL", c.MinioUseSSL)

	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getenvInt("REDIS_DB", c.RedisDB)

	c.CleanupWorkers = getenvInt("CLEANUP_WORKERS", c.CleanupWorkers)
	c.CleanupMaxRetries = getenvInt("CLEANUP_MAX_RETRIES", c.CleanupMaxRetries)
	c.CompensateOrphans = getenvBool("COMPENSATE_ORPHANS", c.CompensateOrphans)

	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.CORSAllowOrigins = splitCSV(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitCSV(v)
	}
	c.OTLPEndpoint = getenv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if strings.TrimSpace(c.DBName) == "" {
		return errors.New("config: DB_NAME is required")
	}
	if c.DBMaxOpenConns <= 0 {
		return errors.New("config: DB_MAX_OPEN_CONNS must be positive")
	}
	if c.DBConnectAttempts <= 0 {
		c.DBConnectAttempts = 1
	}

	switch c.AssetBackend {
	case BackendLocal:
		if strings.TrimSpace(c.UploadDir) == "" {
			return errors.New("config: UPLOAD_DIR is required for the local asset backend")
		}
	case BackendMinio:
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			return errors.New("config: MINIO_ENDPOINT and MINIO_BUCKET are required for the minio asset backend")
		}
	default:
		return fmt.Errorf("config: unsupported ASSET_BACKEND %q", c.AssetBackend)
	}

	prefix := "/" + strings.Trim(c.AssetsPrefix, "/")
	if prefix == "/" {
		return errors.New("config: ASSETS_PREFIX must not be the root path")
	}
	c.AssetsPrefix = prefix

	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.CleanupWorkers <= 0 {
		c.CleanupWorkers = 1
	}
	return nil
}

// DSN returns the driver specific data source name for the configured database.
func (c *Config) DSN() string {
	return c.dsnFor(c.DBName)
}

// ServerDSN is the DSN used to reach the server when the target database may
// not exist yet.
func (c *Config) ServerDSN() string {
	switch c.DBDriver {
	case DriverPostgres:
		return c.dsnFor("postgres")
	case DriverMySQL:
		return c.dsnFor("")
	}
	return c.DSN()
}

func (c *Config) dsnFor(dbName string) string {
	switch c.DBDriver {
	case DriverMySQL:
		loc, err := time.LoadLocation(c.TZ)
		if err != nil {
			loc = time.UTC
		}
		mc := mysql.NewConfig()
		mc.User = c.DBUser
		mc.Passwd = c.DBPass
		mc.Net = "tcp"
		mc.Addr = c.DBHost + ":" + c.DBPort
		mc.DBName = dbName
		mc.ParseTime = true
		mc.Loc = loc
		mc.ClientFoundRows = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	case DriverSQLite:
		return c.DBName
	}

	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DBHost,
		c.DBUser,
		c.DBPass,
		dbName,
		c.DBPort,
		c.DBSSLMode,
		c.TZ,
	)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		log.Printf("warning: ignoring invalid %s=%q", key, v)
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		log.Printf("warning: ignoring invalid %s=%q", key, v)
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
		log.Printf("warning: ignoring invalid %s=%q", key, v)
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
