package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Port        string
	Environment string // ENV: production, development, etc.

	MongoURI string
	MongoDB  string // database name; empty means derive from MongoURI
	RedisURI string

	JWTSecret        string
	JWTCookieExpire  int // days
	OTPExpire        int // minutes
	OTPSweepInterval time.Duration

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	SMTPHost        string
	SMTPPort        int
	SMTPMail        string
	SMTPPassword    string
	MailMaxAttempts int

	MaxUploadMB    int64
	AllowedOrigins []string
	// TrustProxy honours X-Forwarded-For / X-Real-IP. Only set it when every
	// request arrives through a proxy that overwrites those headers.
	TrustProxy     bool
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

func Load() *Config {
	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return &Config{
		Port:        getEnv("PORT", "4000"),
		Environment: strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),

		MongoURI: getEnv("MONGO_URI", getEnv("MONGODB_URI", "mongodb://localhost:27017/todoApp")),
		MongoDB:  getEnv("MONGO_DB", ""),
		RedisURI: getEnv("REDIS_URI", "redis://localhost:6379/0"),

		JWTSecret:        getEnv("JWT_SECRET", defaultJWTSecret),
		JWTCookieExpire:  getEnvInt("JWT_COOKIE_EXPIRE", 5),
		OTPExpire:        getEnvInt("OTP_EXPIRE", 5),
		OTPSweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", time.Minute),

		CloudinaryName:      getEnv("CLOUDINARY_NAME", getEnv("CLOUDINARY_CLOUD_NAME", "")),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "todoApp"),

		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		SMTPMail:        getEnv("SMTP_MAIL", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		MailMaxAttempts: getEnvInt("MAIL_MAX_ATTEMPTS", 5),

		MaxUploadMB:    int64(getEnvInt("MAX_UPLOAD_MB", 50)),
		AllowedOrigins: allowedOrigins,
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindow: getEnvDuration("AUTH_RATE_WINDOW", 2*time.Minute),
	}
}

// Validate rejects configurations that must not reach production.
func (c *Config) Validate() error {
	if c.JWTCookieExpire <= 0 {
		return errors.New("JWT_COOKIE_EXPIRE must be a positive number of days")
	}
	if c.OTPExpire <= 0 {
		return errors.New("OTP_EXPIRE must be a positive number of minutes")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// TokenTTL is the lifetime of issued tokens and of the token cookie.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTCookieExpire) * 24 * time.Hour
}

// OTPTTL is how long a verification or reset code stays valid.
func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPExpire) * time.Minute
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// CloudinaryConfigured reports whether all avatar storage credentials are present.
func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// SMTPConfigured reports whether outbound mail can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPMail != ""
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
