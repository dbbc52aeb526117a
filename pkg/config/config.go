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

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Attendance   AttendanceConfig
	Sessions     SessionPolicyConfig
	Reassignment ReassignmentConfig
	Mail         MailConfig
	Export       ExportConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig tunes the scan acceptance window around a session slot.
type AttendanceConfig struct {
	EarlyEntryMinutes int
	LateEntryMinutes  int
}

// SessionPolicyConfig bounds session slot duration and daily placement.
type SessionPolicyConfig struct {
	MinDurationMinutes int
	MaxDurationMinutes int
	EarliestStart      string
	LatestEnd          string
}

// ReassignmentConfig caps student-initiated session moves.
type ReassignmentConfig struct {
	MaxRequestsPerStudent int
}

// MailConfig configures the outbound notification sender.
type MailConfig struct {
	Enabled        bool
	SendGridAPIKey string
	FromName       string
	FromAddress    string
	QueueWorkers   int
}

// ExportConfig governs cache behaviour for attendance projections.
type ExportConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Attendance = AttendanceConfig{
		EarlyEntryMinutes: v.GetInt("ATTENDANCE_EARLY_ENTRY_MINUTES"),
		LateEntryMinutes:  v.GetInt("ATTENDANCE_LATE_ENTRY_MINUTES"),
	}

	cfg.Sessions = SessionPolicyConfig{
		MinDurationMinutes: v.GetInt("SESSION_MIN_DURATION_MINUTES"),
		MaxDurationMinutes: v.GetInt("SESSION_MAX_DURATION_MINUTES"),
		EarliestStart:      v.GetString("SESSION_EARLIEST_START"),
		LatestEnd:          v.GetString("SESSION_LATEST_END"),
	}

	cfg.Reassignment = ReassignmentConfig{
		MaxRequestsPerStudent: v.GetInt("REASSIGNMENT_MAX_REQUESTS"),
	}

	cfg.Mail = MailConfig{
		Enabled:        v.GetBool("MAIL_ENABLED"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		QueueWorkers:   v.GetInt("MAIL_QUEUE_WORKERS"),
	}

	cfg.Export = ExportConfig{
		CacheEnabled: v.GetBool("EXPORT_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("EXPORT_CACHE_TTL"), 5*time.Minute),
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
	v.SetDefault("DB_NAME", "weekend_course")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "weekend-course-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_EARLY_ENTRY_MINUTES", 30)
	v.SetDefault("ATTENDANCE_LATE_ENTRY_MINUTES", 15)

	v.SetDefault("SESSION_MIN_DURATION_MINUTES", 45)
	v.SetDefault("SESSION_MAX_DURATION_MINUTES", 240)
	v.SetDefault("SESSION_EARLIEST_START", "07:00")
	v.SetDefault("SESSION_LATEST_END", "21:00")

	v.SetDefault("REASSIGNMENT_MAX_REQUESTS", 3)

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Weekend Course")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@localhost")
	v.SetDefault("MAIL_QUEUE_WORKERS", 1)

	v.SetDefault("EXPORT_CACHE_ENABLED", false)
	v.SetDefault("EXPORT_CACHE_TTL", "5m")
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
