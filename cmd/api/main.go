package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"caudal-api/internal/config"
	"caudal-api/internal/domain"
	"caudal-api/internal/endpoints"
	"caudal-api/internal/repository"
	"caudal-api/internal/router"
	"caudal-api/internal/util"
)

func LoggerInitialize(cfg config.Config) (*util.AppLogger, error) {

	logger := &util.AppLogger{}

	opts := util.LoggerOptions{
		Dir:      cfg.LogDir,
		FileName: "webService.log",
		Level:    cfg.LogLevel,
		Console:  cfg.LogConsole,
	}
	if err := logger.Init(opts); err != nil {
		return nil, err
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Service started")

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: Caudal API started \n", currentTime)

	return logger, nil
}

func NewStore(cfg config.Config) (*repository.SQLStore, error) {
	var store *repository.SQLStore

	switch cfg.DBDriver {
	case config.DriverSQLite:
		store = repository.NewSQLiteStore(cfg.SQLitePath)
	case config.DriverPostgres:
		store = repository.NewPostgresStore(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.DBDriver)
	}
	store.SetMaxOpenConns(cfg.MaxOpenConns)

	return store, nil
}

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := LoggerInitialize(cfg)
	if err != nil {
		log.Fatalf("Error while initializing the logger: %v", err)
	}

	err = run(cfg, logger)
	logger.DeInit()
	if err != nil {
		log.Fatalf("Service stopped: %v", err)
	}
}

// run opens the record store and serves until shutdown. Startup failures are
// returned so main can exit non-zero once the log is drained.
func run(cfg config.Config, logger *util.AppLogger) error {
	sqlStore, err := NewStore(cfg)
	if err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, err)
		return err
	}

	var store domain.MeasurementStore = sqlStore
	if err := store.Init(); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to initialize record store:", err)
		return fmt.Errorf("failed to initialize record store: %w", err)
	}
	defer store.Close()

	logger.LogEvent(util.LOG_LEVEL_INFO, "Record store ready, driver", cfg.DBDriver)

	limits := endpoints.Limits{
		DefaultCoordinates: cfg.DefaultCoordinateLimit,
		MaxCoordinates:     cfg.MaxCoordinateLimit,
	}
	if err := router.Run(cfg.HTTPAddr, store, logger, limits); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Server exited:", err)
		return err
	}
	return nil
}
