package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	SupabaseURL   string        `validate:"required,url"`
	SupabaseKey   string        `validate:"required"`
	Port          string        `validate:"required,numeric"`
	RedisAddr     string        `validate:"omitempty,hostname_port"` // empty disables the shared lock
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	RemoteTimeout time.Duration `validate:"gt=0"`
	LockTTL       time.Duration `validate:"gt=0"`
	GinMode       string        `validate:"omitempty,oneof=debug release test"`
}

// Load reads .env (when present) and the environment, then validates.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg := &Config{
		SupabaseURL:   os.Getenv("SUPABASE_URL"),
		SupabaseKey:   os.Getenv("SUPABASE_KEY"),
		Port:          getEnv("PORT", "3000"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		GinMode:       os.Getenv("GIN_MODE"),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("REDIS_DB must be an integer: %w", err)
	}
	if cfg.RemoteTimeout, err = time.ParseDuration(getEnv("REMOTE_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("REMOTE_TIMEOUT must be a duration: %w", err)
	}
	if cfg.LockTTL, err = time.ParseDuration(getEnv("LOCK_TTL", "30s")); err != nil {
		return nil, fmt.Errorf("LOCK_TTL must be a duration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
