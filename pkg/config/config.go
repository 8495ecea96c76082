package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Holds     HoldsConfig
	Booking   BookingConfig
	Export    ExportConfig
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
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the draft generator and repair engine.
type SchedulerConfig struct {
	SlotMinutes        int
	DayStart           string
	DayEnd             string
	RepairPasses       int
	MaxPatchOpsPerPass int
	SummaryCacheTTL    time.Duration
}

// HoldsConfig controls hold lifetimes and the background sweep.
type HoldsConfig struct {
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
	SweepInterval time.Duration
	SweepWorkers  int
}

// BookingConfig governs cancellation classification.
type BookingConfig struct {
	LateCancelWindow time.Duration
}

// ExportConfig gates the schedule export endpoint.
type ExportConfig struct {
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
		if !errors.As(err, &notFound) {
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
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		SlotMinutes:        v.GetInt("SCHEDULER_SLOT_MINUTES"),
		DayStart:           v.GetString("SCHEDULER_DAY_START"),
		DayEnd:             v.GetString("SCHEDULER_DAY_END"),
		RepairPasses:       v.GetInt("SCHEDULER_REPAIR_PASSES"),
		MaxPatchOpsPerPass: v.GetInt("SCHEDULER_MAX_PATCH_OPS"),
		SummaryCacheTTL:    parseDuration(v.GetString("SCHEDULER_SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Holds = HoldsConfig{
		DefaultTTL:    parseDuration(v.GetString("HOLDS_DEFAULT_TTL"), 5*time.Minute),
		MaxTTL:        parseDuration(v.GetString("HOLDS_MAX_TTL"), 30*time.Minute),
		SweepInterval: parseDuration(v.GetString("HOLDS_SWEEP_INTERVAL"), time.Minute),
		SweepWorkers:  v.GetInt("HOLDS_SWEEP_WORKERS"),
	}

	cfg.Booking = BookingConfig{
		LateCancelWindow: parseDuration(v.GetString("BOOKING_LATE_CANCEL_WINDOW"), 24*time.Hour),
	}

	cfg.Export = ExportConfig{
		Enabled: v.GetBool("ENABLE_SCHEDULE_EXPORT"),
	}

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
	v.SetDefault("DB_NAME", "sayitschedule")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_SLOT_MINUTES", 60)
	v.SetDefault("SCHEDULER_DAY_START", "08:00")
	v.SetDefault("SCHEDULER_DAY_END", "18:00")
	v.SetDefault("SCHEDULER_REPAIR_PASSES", 2)
	v.SetDefault("SCHEDULER_MAX_PATCH_OPS", 20)
	v.SetDefault("SCHEDULER_SUMMARY_CACHE_TTL", "5m")

	v.SetDefault("HOLDS_DEFAULT_TTL", "5m")
	v.SetDefault("HOLDS_MAX_TTL", "30m")
	v.SetDefault("HOLDS_SWEEP_INTERVAL", "1m")
	v.SetDefault("HOLDS_SWEEP_WORKERS", 1)

	v.SetDefault("BOOKING_LATE_CANCEL_WINDOW", "24h")

	v.SetDefault("ENABLE_SCHEDULE_EXPORT", true)
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
