package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DB is a *sql.DB that knows which SQL dialect it speaks. Stores write
// queries with ? placeholders and pass them through Rebind.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the named driver ("sqlite" or "postgres") and applies all
// pending migrations.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "sqlite":
		return open("sqlite", sqliteDSN(dsn), SQLite)
	case "postgres":
		return open("pgx", dsn, Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenForTesting returns a migrated, private in-memory SQLite database.
func OpenForTesting() (*DB, error) {
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", uuid.NewString())
	d, err := open("sqlite", dsn, SQLite)
	if err != nil {
		return nil, err
	}
	// Shared-cache memory databases report table locks instead of waiting on
	// concurrent writers.
	d.SetMaxOpenConns(1)
	return d, nil
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=rwc&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
}

func open(driverName, dsn string, dialect Dialect) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		if cerr := sqlDB.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (also failed to close db: %v)", err, cerr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Run migrations
	if err := runMigrations(driverName, dsn, dialect); err != nil {
		if cerr := sqlDB.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to run migrations: %w (also failed to close db: %v)", err, cerr)
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{DB: sqlDB, Dialect: dialect}, nil
}

// runMigrations applies migrations over a dedicated handle: closing a
// migrate instance closes the database it was given.
func runMigrations(driverName, dsn string, dialect Dialect) error {
	migDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	var (
		drv  database.Driver
		name string
	)
	switch dialect {
	case Postgres:
		drv, err = migratepgx.WithInstance(migDB, &migratepgx.Config{})
		name = "pgx"
	default:
		drv, err = migratesqlite.WithInstance(migDB, &migratesqlite.Config{})
		name = "sqlite"
	}
	if err != nil {
		_ = migDB.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = drv.Close()
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, drv)
	if err != nil {
		_ = src.Close()
		_ = drv.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Rebind rewrites ? placeholders into the dialect's positional form.
func (d *DB) Rebind(query string) string {
	if d.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
