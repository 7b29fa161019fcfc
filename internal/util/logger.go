package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var ErrLogNotInitialized = errors.New("log object is not initialized yet")

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// LoggerOptions describes where an AppLogger writes and how much.
type LoggerOptions struct {
	Dir      string
	FileName string
	Level    int
	Console  bool
	Rewrite  bool
}

// AppLogger queues events on a buffered channel and writes them from a single
// goroutine so handlers never block on disk.
type AppLogger struct {
	logBuffer         chan leveledEntry
	handle            *os.File
	wg                *sync.WaitGroup
	mu                sync.RWMutex
	loggerInitialized bool
	zapLogger         *zap.Logger
}

type leveledEntry struct {
	level  int
	logMsg string
}

func (m *AppLogger) Init(opts LoggerOptions) error {
	if err := CheckAndCreateLogFolder(opts.Dir); err != nil {
		return err
	}

	flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if opts.Rewrite {
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}

	handle, err := os.OpenFile(filepath.Join(opts.Dir, opts.FileName), flags, 0666)
	if err != nil {
		return err
	}

	m.handle = handle
	m.zapLogger = newZapLogger(handle, opts.Console, ZapLevel(opts.Level))
	m.wg = new(sync.WaitGroup)
	m.logBuffer = make(chan leveledEntry, LOG_BUFFER_SIZE)

	m.wg.Add(1)
	go m.logWriter()

	m.mu.Lock()
	m.loggerInitialized = true
	m.mu.Unlock()
	return nil
}

func newZapLogger(file *os.File, console bool, level zapcore.Level) *zap.Logger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.AddSync(file), level),
	}
	if console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.Lock(os.Stderr), level))
	}
	return zap.New(zapcore.NewTee(cores...))
}

func ZapLevel(level int) zapcore.Level {
	switch level {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps the LOG_LEVEL names onto the LOG_LEVEL_* constants.
func ParseLevel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LOG_LEVEL_ERROR, nil
	case "warn", "warning":
		return LOG_LEVEL_WARN, nil
	case "", "info":
		return LOG_LEVEL_INFO, nil
	case "debug":
		return LOG_LEVEL_DEBUG, nil
	default:
		return LOG_LEVEL_INFO, fmt.Errorf("invalid log level %q (allowed: debug, info, warn, error)", s)
	}
}

func (m *AppLogger) logWriter() {
	defer m.wg.Done()
	for entry := range m.logBuffer {
		switch entry.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(entry.logMsg)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(entry.logMsg)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(entry.logMsg)
		default:
			m.zapLogger.Info(entry.logMsg)
		}
	}
	_ = m.zapLogger.Sync()
}

// LogEvent accepts an optional leading LOG_LEVEL_* followed by message parts,
// which are joined with spaces.
func (m *AppLogger) LogEvent(v ...interface{}) error {
	level, msg := formatEvent(v...)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loggerInitialized {
		return ErrLogNotInitialized
	}
	m.logBuffer <- leveledEntry{level, msg}
	return nil
}

func formatEvent(v ...interface{}) (int, string) {
	if len(v) == 0 {
		return LOG_LEVEL_INFO, ""
	}
	if level, ok := v[0].(int); ok && len(v) > 1 && level >= LOG_LEVEL_ERROR && level <= LOG_LEVEL_DEBUG {
		return level, strings.TrimSpace(fmt.Sprintln(v[1:]...))
	}
	return LOG_LEVEL_INFO, strings.TrimSpace(fmt.Sprintln(v...))
}

// DeInit drains pending events and closes the log file.
func (m *AppLogger) DeInit() {
	m.mu.Lock()
	if !m.loggerInitialized {
		m.mu.Unlock()
		return
	}
	m.loggerInitialized = false
	close(m.logBuffer)
	m.mu.Unlock()

	m.wg.Wait()
	m.handle.Close()
}

func CheckAndCreateLogFolder(folder string) error {
	if folder == "" {
		return errors.New("log folder is empty")
	}
	if _, err := os.Stat(folder); os.IsNotExist(err) {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("failed to create log folder %s: %w", folder, err)
		}
	}
	return nil
}
