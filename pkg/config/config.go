package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Ledger backends.
const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendFlat     = "flat"
)

// Advisory lock backends.
const (
	LockBackendFile  = "file"
	LockBackendRedis = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Storage    StorageConfig
	Ledger     LedgerConfig
	Validation ValidationConfig
	Metrics    MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig locates the file-backed stores shared with legacy consumers.
type StorageConfig struct {
	RevisionsDir     string
	ApprovedListPath string
	ShiftLogPath     string
	RulesPath        string
}

// LedgerConfig selects the sign-off ledger backing and its concurrency knobs.
type LedgerConfig struct {
	Backend          string
	FlatPath         string
	MirrorEnabled    bool
	LockBackend      string
	LockTTL          time.Duration
	GraceWindow      time.Duration
	ApprovalLockWait time.Duration
}

// ValidationConfig tunes the derived business rules.
type ValidationConfig struct {
	CoordinateShiftThreshold float64
	NearTermWindow           time.Duration
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
		TTL:    parseDuration(v.GetString("JWT_TTL"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		RevisionsDir:     v.GetString("REVISIONS_DIR"),
		ApprovedListPath: v.GetString("APPROVED_LIST_PATH"),
		ShiftLogPath:     v.GetString("SHIFT_LOG_PATH"),
		RulesPath:        v.GetString("RULES_PATH"),
	}

	cfg.Ledger = LedgerConfig{
		Backend:          strings.ToLower(v.GetString("LEDGER_BACKEND")),
		FlatPath:         v.GetString("LEDGER_FLAT_PATH"),
		MirrorEnabled:    v.GetBool("LEDGER_MIRROR_ENABLED"),
		LockBackend:      strings.ToLower(v.GetString("LEDGER_LOCK_BACKEND")),
		LockTTL:          parseDuration(v.GetString("LEDGER_LOCK_TTL"), 30*time.Second),
		GraceWindow:      parseDuration(v.GetString("SIGNOFF_GRACE_WINDOW"), 48*time.Hour),
		ApprovalLockWait: parseDuration(v.GetString("APPROVAL_LOCK_WAIT"), 10*time.Second),
	}

	threshold := v.GetFloat64("COORD_SHIFT_THRESHOLD")
	if threshold <= 0 {
		threshold = 0.1333
	}
	cfg.Validation = ValidationConfig{
		CoordinateShiftThreshold: threshold,
		NearTermWindow:           parseDuration(v.GetString("NEAR_TERM_WINDOW"), 10*24*time.Hour),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ocat")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "ocat")
	v.SetDefault("JWT_TTL", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REVISIONS_DIR", "./data/updates")
	v.SetDefault("APPROVED_LIST_PATH", "./data/approved")
	v.SetDefault("SHIFT_LOG_PATH", "./data/coord_shift.log")
	v.SetDefault("RULES_PATH", "./configs/validation_rules.yaml")

	v.SetDefault("LEDGER_BACKEND", LedgerBackendPostgres)
	v.SetDefault("LEDGER_FLAT_PATH", "./data/updates_table.list")
	v.SetDefault("LEDGER_MIRROR_ENABLED", true)
	v.SetDefault("LEDGER_LOCK_BACKEND", LockBackendFile)
	v.SetDefault("LEDGER_LOCK_TTL", "30s")
	v.SetDefault("SIGNOFF_GRACE_WINDOW", "48h")
	v.SetDefault("APPROVAL_LOCK_WAIT", "10s")

	v.SetDefault("COORD_SHIFT_THRESHOLD", 0.1333)
	v.SetDefault("NEAR_TERM_WINDOW", "240h")

	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// viper reports a missing explicit config file as a plain path error.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
