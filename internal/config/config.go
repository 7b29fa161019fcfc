package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"caudal-api/internal/util"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds environment-driven settings for the query API.
type Config struct {
	DBDriver     string
	SQLitePath   string
	DatabaseURL  string
	MaxOpenConns int

	HTTPAddr string

	LogDir     string
	LogLevel   int
	LogConsole bool

	DefaultCoordinateLimit int
	MaxCoordinateLimit     int
}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		DBDriver:               DriverSQLite,
		SQLitePath:             "../db/obras.db",
		HTTPAddr:               ":8080",
		LogDir:                 "../log",
		LogLevel:               util.LOG_LEVEL_INFO,
		DefaultCoordinateLimit: 120,
		MaxCoordinateLimit:     5000,
	}

	if driver := env("DB_DRIVER"); driver != "" {
		switch driver {
		case DriverSQLite, DriverPostgres:
			cfg.DBDriver = driver
		default:
			return cfg, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, postgres)", driver)
		}
	}

	if path := env("SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	cfg.DatabaseURL = env("DATABASE_URL")
	if cfg.DBDriver == DriverPostgres && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
	}

	var err error
	if cfg.MaxOpenConns, err = intEnv("DB_MAX_OPEN_CONNS", 0, 0); err != nil {
		return cfg, err
	}

	if addr := env("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	} else if portStr := env("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
		cfg.HTTPAddr = fmt.Sprintf(":%d", port)
	}

	if dir := env("LOG_DIR"); dir != "" {
		cfg.LogDir = dir
	}
	if cfg.LogLevel, err = util.ParseLevel(env("LOG_LEVEL")); err != nil {
		return cfg, err
	}
	if consoleStr := env("LOG_CONSOLE"); consoleStr != "" {
		if cfg.LogConsole, err = strconv.ParseBool(consoleStr); err != nil {
			return cfg, fmt.Errorf("invalid LOG_CONSOLE: %s", consoleStr)
		}
	}

	if cfg.DefaultCoordinateLimit, err = intEnv("COORDINATES_DEFAULT_LIMIT", cfg.DefaultCoordinateLimit, 1); err != nil {
		return cfg, err
	}
	if cfg.MaxCoordinateLimit, err = intEnv("COORDINATES_MAX_LIMIT", cfg.MaxCoordinateLimit, 1); err != nil {
		return cfg, err
	}
	if cfg.DefaultCoordinateLimit > cfg.MaxCoordinateLimit {
		return cfg, fmt.Errorf("COORDINATES_DEFAULT_LIMIT (%d) exceeds COORDINATES_MAX_LIMIT (%d)", cfg.DefaultCoordinateLimit, cfg.MaxCoordinateLimit)
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intEnv(key string, def, lowest int) (int, error) {
	s := env(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < lowest {
		return def, fmt.Errorf("invalid %s: %s", key, s)
	}
	return v, nil
}
