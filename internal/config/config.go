package config

import (
	"errors"
	"os"
	"strconv"
)

type Config struct {
	Port                    string
	DatabaseDSN             string
	JWTSecret               string
	Env                     string
	SessionTTLSeconds       int
	ReaperIntervalSeconds   int
	ActivityRequiresSession bool
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func Load() Config {
	return Config{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseDSN: getenv("DATABASE_DSN", "chatserver.db"),
		JWTSecret:   getenv("JWT_SECRET", "dev-secret-change-me"),
		Env:         getenv("APP_ENV", "dev"),
		// 0 表示会话不过期，续期通过 /heartbeat 完成。
		SessionTTLSeconds:       getenvInt("SESSION_TTL_SECONDS", 0),
		ReaperIntervalSeconds:   getenvInt("REAPER_INTERVAL_SECONDS", 30),
		ActivityRequiresSession: getenvBool("ACTIVITY_REQUIRES_SESSION", false),
	}
}

func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port must not be empty")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("database dsn must not be empty")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == "dev-secret-change-me" {
		return errors.New("default jwt secret is not allowed outside dev")
	}
	return nil
}
