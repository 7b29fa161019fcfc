package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caudal-api/internal/util"
)

var configKeys = []string{
	"DB_DRIVER", "SQLITE_PATH", "DATABASE_URL", "DB_MAX_OPEN_CONNS", "HTTP_ADDR", "PORT",
	"LOG_DIR", "LOG_LEVEL", "LOG_CONSOLE", "COORDINATES_DEFAULT_LIMIT", "COORDINATES_MAX_LIMIT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "../db/obras.db", cfg.SQLitePath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "../log", cfg.LogDir)
	assert.Equal(t, util.LOG_LEVEL_INFO, cfg.LogLevel)
	assert.False(t, cfg.LogConsole)
	assert.Equal(t, 120, cfg.DefaultCoordinateLimit)
	assert.Equal(t, 5000, cfg.MaxCoordinateLimit)
	assert.Equal(t, 0, cfg.MaxOpenConns)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://obras@localhost/obras")
	t.Setenv("DB_MAX_OPEN_CONNS", "8")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_CONSOLE", "true")
	t.Setenv("COORDINATES_DEFAULT_LIMIT", "50")
	t.Setenv("COORDINATES_MAX_LIMIT", "500")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://obras@localhost/obras", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.MaxOpenConns)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, util.LOG_LEVEL_DEBUG, cfg.LogLevel)
	assert.True(t, cfg.LogConsole)
	assert.Equal(t, 50, cfg.DefaultCoordinateLimit)
	assert.Equal(t, 500, cfg.MaxCoordinateLimit)

	t.Setenv("HTTP_ADDR", "127.0.0.1:7000")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.HTTPAddr, "HTTP_ADDR wins over PORT")
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":       {"DB_DRIVER": "mysql"},
		"postgres without url": {"DB_DRIVER": "postgres"},
		"bad port":             {"PORT": "eighty"},
		"negative port":        {"PORT": "-1"},
		"bad log level":        {"LOG_LEVEL": "loud"},
		"bad log console":      {"LOG_CONSOLE": "maybe"},
		"zero default limit":   {"COORDINATES_DEFAULT_LIMIT": "0"},
		"bad max limit":        {"COORDINATES_MAX_LIMIT": "x"},
		"default above max":    {"COORDINATES_DEFAULT_LIMIT": "600", "COORDINATES_MAX_LIMIT": "500"},
		"negative open conns":  {"DB_MAX_OPEN_CONNS": "-2"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
