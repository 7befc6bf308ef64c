// Package config provides application configuration loaded from an optional
// stockroom.yaml file and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	App      AppConfig      `mapstructure:"app"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int      `mapstructure:"write_timeout"` // seconds
	IdleTimeout  int      `mapstructure:"idle_timeout"`  // seconds
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// DatabaseConfig selects the driver and holds its connection settings.
// Driver is "postgres" or "sqlite"; Path is only used by sqlite.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSNValue string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool   `mapstructure:"dev"`
	Migrations bool   `mapstructure:"migrations"`
	LogLevel   string `mapstructure:"log_level"`
}

// AuthConfig configures bearer token verification. At least one of
// JWTSecret (HS256) or JWKSURL (RS256/ES256) must be set to serve.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	JWKSURL    string `mapstructure:"jwks_url"`
	Issuer     string `mapstructure:"issuer"`
	Audience   string `mapstructure:"audience"`
	AdminID    string `mapstructure:"admin_id"`
	AdminEmail string `mapstructure:"admin_email"`
}

// CacheConfig controls the subject role cache. With RedisURL empty the
// cache is in-process.
type CacheConfig struct {
	RoleTTL  time.Duration `mapstructure:"role_ttl"`
	RedisURL string        `mapstructure:"redis_url"`
}

// DSN returns the connection string for the configured driver. An explicit
// DATABASE_DSN wins over the individual fields.
func (d DatabaseConfig) DSN() string {
	if d.DSNValue != "" {
		return d.DSNValue
	}
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// envBindings maps config keys to the environment variables deployments use.
var envBindings = map[string]string{
	"server.port":          "PORT",
	"server.read_timeout":  "SERVER_READ_TIMEOUT",
	"server.write_timeout": "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":  "SERVER_IDLE_TIMEOUT",
	"server.cors_origins":  "CORS_ORIGINS",
	"database.driver":      "DB_DRIVER",
	"database.dsn":         "DATABASE_DSN",
	"database.host":        "DB_HOST",
	"database.port":        "DB_PORT",
	"database.user":        "DB_USER",
	"database.password":    "DB_PASSWORD",
	"database.name":        "DB_NAME",
	"database.sslmode":     "DB_SSLMODE",
	"database.path":        "DB_PATH",
	"app.dev":              "DEV",
	"app.migrations":       "MIGRATIONS",
	"app.log_level":        "LOG_LEVEL",
	"auth.jwt_secret":      "AUTH_JWT_SECRET",
	"auth.jwks_url":        "AUTH_JWKS_URL",
	"auth.issuer":          "AUTH_ISSUER",
	"auth.audience":        "AUTH_AUDIENCE",
	"auth.admin_id":        "ADMIN_ID",
	"auth.admin_email":     "ADMIN_EMAIL",
	"cache.role_ttl":       "ROLE_CACHE_TTL",
	"cache.redis_url":      "REDIS_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.idle_timeout", 60)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "stockroom")
	v.SetDefault("database.password", "stockroom")
	v.SetDefault("database.name", "stockroom")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "stockroom.db")

	v.SetDefault("app.dev", true)
	v.SetDefault("app.migrations", false)
	v.SetDefault("app.log_level", "info")

	v.SetDefault("cache.role_ttl", 5*time.Minute)
}

// Load reads configuration. path names a config file; when empty,
// stockroom.yaml is looked up in the working directory and ./config.
// A .env file is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("stockroom")
		v.SetConfigType("yaml")
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		return errors.New("one of AUTH_JWT_SECRET or AUTH_JWKS_URL is required")
	}
	return nil
}
