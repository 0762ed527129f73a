package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	Database struct {
		URL          string
		MaxOpenConns int
		MaxIdleConns int
	}

	Auth struct {
		JWTSecret       string
		AccessTokenTTL  time.Duration
		RefreshTokenTTL time.Duration
		RatePerSecond   float64
		RateBurst       int
		AdminEmail      string
		AdminPassword   string
	}

	Uploads struct {
		Dir      string
		MaxBytes int64
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}

	Log struct {
		Level  string
		Format string
	}

	Notify struct {
		SendGridAPIKey  string
		MailFrom        string
		SlackWebhookURL string
	}

	ExpirySchedule string

	Features Features
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.GinMode = getEnv("GIN_MODE", "release")

	cfg.Database.URL = getEnv("DATABASE_URL", "")
	cfg.Database.MaxOpenConns = getInt("DB_MAX_OPEN_CONNS", 25)
	cfg.Database.MaxIdleConns = getInt("DB_MAX_IDLE_CONNS", 5)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.Auth.AccessTokenTTL = getDuration("ACCESS_TOKEN_TTL", time.Hour)
	cfg.Auth.RefreshTokenTTL = getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	cfg.Auth.RatePerSecond = getFloat("AUTH_RATE_PER_SEC", 5)
	cfg.Auth.RateBurst = getInt("AUTH_RATE_BURST", 10)
	cfg.Auth.AdminEmail = strings.ToLower(getEnv("ADMIN_EMAIL", ""))
	cfg.Auth.AdminPassword = getEnv("ADMIN_PASSWORD", "")

	cfg.Uploads.Dir = getEnv("UPLOAD_DIR", "./uploads")
	cfg.Uploads.MaxBytes = int64(getInt("MAX_UPLOAD_BYTES", 16<<20))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getInt("REDIS_DB", 0)
	cfg.Redis.TTL = getDuration("CACHE_TTL", time.Minute)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Notify.SendGridAPIKey = getEnv("SENDGRID_API_KEY", "")
	cfg.Notify.MailFrom = getEnv("MAIL_FROM", "")
	cfg.Notify.SlackWebhookURL = getEnv("SLACK_WEBHOOK_URL", "")

	cfg.ExpirySchedule = getEnv("EXPIRY_SCHEDULE", "@every 1h")

	cfg.Features = LoadFeatures()
	return cfg
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable not set"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return def
	}
	return f
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return def
	}
	return b
}
