package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SourcePostgres = "postgres"
	SourceMemory   = "memory"

	StorageLocal = "local"
	StorageS3    = "s3"
)

type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
	URLExpiry       int
}

type ExportConfig struct {
	Storage           string
	Dir               string
	FilesPublicPrefix string
	MaxRows           int
	FileTTL           int
	CleanupSchedule   string
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Port           string
	ExternalURL    string
	Source         string
	FixturesPath   string
	RequestTimeout int
	Timezone       string

	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config
	Export   ExportConfig
	Log      LogConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key, def string) (int, error) {
	s := getenv(key, def)
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid int value %q", key, s)
	}
	return i, nil
}

func parseBool(key, def string) (bool, error) {
	s := getenv(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s: invalid bool value %q", key, s)
	}
	return b, nil
}

// Load reads the configuration from the environment. Every malformed value is
// reported, not just the first.
func Load() (AppConfig, error) {
	var errs []string
	intVar := func(key, def string) int {
		i, err := atoi(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return i
	}
	boolVar := func(key, def string) bool {
		b, err := parseBool(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return b
	}

	cfg := AppConfig{
		Port:           getenv("APP_PORT", "8010"),
		ExternalURL:    getenv("EXTERNAL_URL", ""),
		Source:         strings.ToLower(getenv("REPORT_SOURCE", SourcePostgres)),
		FixturesPath:   getenv("REPORT_FIXTURES", "fixtures/demo.yaml"),
		RequestTimeout: intVar("REQUEST_TIMEOUT", "60"),
		Timezone:       getenv("APP_TIMEZONE", "Asia/Colombo"),
		Postgres: PostgresConfig{
			Host:            getenv("PG_HOST", "127.0.0.1"),
			Port:            intVar("PG_PORT", "5432"),
			User:            getenv("PG_USER", "root"),
			Password:        getenv("PG_PASSWORD", "hello-world"),
			DBName:          getenv("PG_DB", "microfinance"),
			SSLMode:         getenv("PG_SSLMODE", "disable"),
			MaxOpenConns:    intVar("PG_MAX_OPEN_CONNS", "20"),
			MaxIdleConns:    intVar("PG_MAX_IDLE_CONNS", "5"),
			ConnMaxLifetime: intVar("PG_CONN_MAX_LIFETIME", "300"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          intVar("REDIS_DB", "0"),
			MaxRetries:  intVar("REDIS_MAX_RETRIES", "5"),
			DialTimeout: intVar("REDIS_DIAL_TIMEOUT", "10"),
			Timeout:     intVar("REDIS_TIMEOUT", "5"),
			Prefix:      getenv("REDIS_PREFIX", "microfinance_reports_"),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "exports"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          boolVar("S3_USE_SSL", "false"),
			Prefix:          getenv("S3_PREFIX", "reports/"),
			URLExpiry:       intVar("S3_URL_EXPIRY", "3600"),
		},
		Export: ExportConfig{
			Storage:           strings.ToLower(getenv("EXPORT_STORAGE", StorageLocal)),
			Dir:               getenv("EXPORT_DIR", "./exports"),
			FilesPublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
			MaxRows:           intVar("EXPORT_MAX_ROWS", "200000"),
			FileTTL:           intVar("EXPORT_FILE_TTL", "30"),
			CleanupSchedule:   getenv("EXPORT_CLEANUP_SCHEDULE", "*/5 * * * *"),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}

	switch cfg.Source {
	case SourcePostgres, SourceMemory:
	default:
		errs = append(errs, fmt.Sprintf("REPORT_SOURCE: unknown source %q", cfg.Source))
	}
	switch cfg.Export.Storage {
	case StorageLocal, StorageS3:
	default:
		errs = append(errs, fmt.Sprintf("EXPORT_STORAGE: unknown storage %q", cfg.Export.Storage))
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
