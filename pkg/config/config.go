package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr      string
	DatabaseURL     string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RotateRefreshTokens    bool
	BlacklistAfterRotation bool

	LogLevel        string
	LogPretty       bool
	ShutdownTimeout time.Duration
}

// Load reads an optional dotenv file and then the process environment.
// An empty envFile means ".env" in the working directory; a missing file
// is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("access_token_minutes_ttl", 5)
	v.SetDefault("refresh_token_minutes_ttl", 1440)
	v.SetDefault("rotate_refresh_tokens", false)
	v.SetDefault("blacklist_after_rotation", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("shutdown_timeout", "15s")
	v.AutomaticEnv()

	cfg := &Config{
		ListenAddr:             v.GetString("listen_addr"),
		DatabaseURL:            v.GetString("database_url"),
		JWTSecret:              v.GetString("jwt_secret"),
		AccessTokenTTL:         time.Duration(v.GetInt("access_token_minutes_ttl")) * time.Minute,
		RefreshTokenTTL:        time.Duration(v.GetInt("refresh_token_minutes_ttl")) * time.Minute,
		RotateRefreshTokens:    v.GetBool("rotate_refresh_tokens"),
		BlacklistAfterRotation: v.GetBool("blacklist_after_rotation"),
		LogLevel:               v.GetString("log_level"),
		LogPretty:              v.GetBool("log_pretty"),
		ShutdownTimeout:        v.GetDuration("shutdown_timeout"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_MINUTES_TTL must be positive"))
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_MINUTES_TTL must exceed ACCESS_TOKEN_MINUTES_TTL"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
