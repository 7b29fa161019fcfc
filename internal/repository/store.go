package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"caudal-api/internal/domain"
)

var _ domain.MeasurementStore = (*SQLStore)(nil)

//go:embed sql/*.sql
var schemaFS embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// dialect captures what differs between the supported engines: the driver
// name, the placeholder style and the DDL file.
type dialect struct {
	driver     string
	numbered   bool
	schemaFile string
}

var (
	sqliteDialect   = dialect{driver: DriverSQLite, schemaFile: "sql/schema_sqlite.sql"}
	postgresDialect = dialect{driver: DriverPostgres, numbered: true, schemaFile: "sql/schema_postgres.sql"}
)

// rebind rewrites ? placeholders into $1..$n for engines that need numbered ones.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// SQLStore is the MeasurementStore backed by database/sql. The same queries run
// on SQLite and Postgres.
type SQLStore struct {
	db           *sql.DB
	dsn          string
	dialect      dialect
	maxOpenConns int
}

func NewSQLiteStore(path string) *SQLStore {
	return &SQLStore{dsn: path, dialect: sqliteDialect}
}

func NewPostgresStore(databaseURL string) *SQLStore {
	return &SQLStore{dsn: databaseURL, dialect: postgresDialect}
}

// SetMaxOpenConns caps the pool. It must be called before Init; zero keeps the
// driver default.
func (s *SQLStore) SetMaxOpenConns(n int) {
	s.maxOpenConns = n
}

// Init opens the pool and creates the table and indexes when they are missing.
// It is safe to call against an existing database.
func (s *SQLStore) Init() error {
	var err error

	dsn, err := s.buildDSN()
	if err != nil {
		return err
	}

	s.db, err = sql.Open(s.dialect.driver, dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	if s.maxOpenConns > 0 {
		s.db.SetMaxOpenConns(s.maxOpenConns)
	}

	if err = s.db.Ping(); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	schema, err := schemaFS.ReadFile(s.dialect.schemaFile)
	if err != nil {
		return fmt.Errorf("error reading schema: %w", err)
	}

	for _, stmt := range splitStatements(string(schema)) {
		if _, err = s.db.Exec(stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) buildDSN() (string, error) {
	if s.dialect.driver != DriverSQLite {
		if s.dsn == "" {
			return "", errors.New("database url is empty")
		}
		return s.dsn, nil
	}

	path := s.dsn
	if dir := filepath.Dir(sqliteFilePath(path)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	params := "_busy_timeout=5000&_journal_mode=WAL"
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params, nil
	}
	return "file:" + path + "?" + params, nil
}

// sqliteFilePath returns the on-disk part of a SQLite DSN, without the file:
// scheme and query parameters.
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.db.PingContext(ctx)
}

// withReadSession runs fn inside one read-only transaction. The transaction is
// released on every return path, including panics in fn.
func (s *SQLStore) withReadSession(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return errors.New("store is not initialized")
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("error opening read session: %w", err)
	}
	defer tx.Rollback()

	return fn(tx)
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
