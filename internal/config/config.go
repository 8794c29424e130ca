package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all the configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	SMTP      SMTPConfig
	SNS       SNSConfig
	Session   SessionConfig
	Token     TokenConfig
	Timeouts  TimeoutConfig
	RateLimit RateLimitConfig
	JWTSecret string `mapstructure:"jwtsecret"`
}

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Env            string   `mapstructure:"env"`
	BaseURL        string   `mapstructure:"baseurl"`
	AllowedOrigins []string `mapstructure:"allowedorigins"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds the Redis configuration.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type SMTPConfig struct {
	From     string `mapstructure:"from"`
	Password string `mapstructure:"password"`
	Username string `mapstructure:"username"`
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
}

// SNSConfig enables SMS delivery through AWS SNS when Region is set.
type SNSConfig struct {
	Region   string `mapstructure:"region"`
	SenderID string `mapstructure:"senderid"`
}

// SessionConfig controls session lifetimes and cookie attributes.
type SessionConfig struct {
	Issuer       string        `mapstructure:"issuer"`
	DefaultTTL   time.Duration `mapstructure:"defaultttl"`
	RememberTTL  time.Duration `mapstructure:"rememberttl"`
	AdminTTL     time.Duration `mapstructure:"adminttl"`
	CookieDomain string        `mapstructure:"cookiedomain"`
	CookieSecure bool          `mapstructure:"cookiesecure"`
}

// TokenConfig controls verification codes and password reset tokens.
type TokenConfig struct {
	CodeTTL        time.Duration `mapstructure:"codettl"`
	ResetTTL       time.Duration `mapstructure:"resetttl"`
	CodeLength     int           `mapstructure:"codelength"`
	MaxAttempts    int           `mapstructure:"maxattempts"`
	ResendCooldown time.Duration `mapstructure:"resendcooldown"`
	Pepper         string        `mapstructure:"pepper"`
}

// TimeoutConfig bounds calls to the credential store and the notifier.
type TimeoutConfig struct {
	Store    time.Duration `mapstructure:"store"`
	Notifier time.Duration `mapstructure:"notifier"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`

	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Forwarded-For
	// header identifies the client.
	TrustedProxies []string `mapstructure:"trustedproxies"`
}

var bindings = map[string]string{
	"server.port":              "SERVER_PORT",
	"server.env":               "SERVER_ENV",
	"server.baseurl":           "SERVER_BASE_URL",
	"server.allowedorigins":    "SERVER_ALLOWED_ORIGINS",
	"database.url":             "DATABASE_URL",
	"redis.url":                "REDIS_URL",
	"jwtsecret":                "JWT_SECRET",
	"smtp.from":                "SMTP_FROM",
	"smtp.password":            "SMTP_PASSWORD",
	"smtp.username":            "SMTP_USERNAME",
	"smtp.port":                "SMTP_PORT",
	"smtp.host":                "SMTP_HOST",
	"sns.region":               "SNS_REGION",
	"sns.senderid":             "SNS_SENDER_ID",
	"session.issuer":           "SESSION_ISSUER",
	"session.defaultttl":       "SESSION_DEFAULT_TTL",
	"session.rememberttl":      "SESSION_REMEMBER_TTL",
	"session.adminttl":         "SESSION_ADMIN_TTL",
	"session.cookiedomain":     "SESSION_COOKIE_DOMAIN",
	"session.cookiesecure":     "SESSION_COOKIE_SECURE",
	"token.codettl":            "TOKEN_CODE_TTL",
	"token.resetttl":           "TOKEN_RESET_TTL",
	"token.codelength":         "TOKEN_CODE_LENGTH",
	"token.maxattempts":        "TOKEN_MAX_ATTEMPTS",
	"token.resendcooldown":     "TOKEN_RESEND_COOLDOWN",
	"token.pepper":             "TOKEN_PEPPER",
	"timeouts.store":           "TIMEOUT_STORE",
	"timeouts.notifier":        "TIMEOUT_NOTIFIER",
	"ratelimit.rps":            "RATE_LIMIT_RPS",
	"ratelimit.burst":          "RATE_LIMIT_BURST",
	"ratelimit.trustedproxies": "RATE_LIMIT_TRUSTED_PROXIES",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.baseurl", "http://localhost:3000")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("session.issuer", "heartguard")
	v.SetDefault("session.defaultttl", 4*time.Hour)
	v.SetDefault("session.rememberttl", 30*24*time.Hour)
	v.SetDefault("session.adminttl", 8*time.Hour)
	v.SetDefault("session.cookiesecure", true)
	v.SetDefault("token.codettl", 10*time.Minute)
	v.SetDefault("token.resetttl", time.Hour)
	v.SetDefault("token.codelength", 6)
	v.SetDefault("token.maxattempts", 5)
	v.SetDefault("token.resendcooldown", time.Minute)
	v.SetDefault("timeouts.store", 3*time.Second)
	v.SetDefault("timeouts.notifier", 10*time.Second)
	v.SetDefault("ratelimit.rps", 5.0)
	v.SetDefault("ratelimit.burst", 10)
}

// Load creates a new Config object from the .env file and environment variables.
func Load() (*Config, error) {
	// Load .env into process environment for BindEnv to work with file-based envs
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ godotenv could not load .env: %v", err)
	} else {
		log.Printf("ℹ️ .env loaded into process environment via godotenv")
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Printf("⚠️ .env file not found, relying on environment variables")
	} else {
		log.Printf("ℹ️ Using config file: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Token.Pepper == "" {
		cfg.Token.Pepper = cfg.JWTSecret
	}

	log.Printf("✅ Configuration loaded: env=%s port=%s", cfg.Server.Env, cfg.Server.Port)
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
