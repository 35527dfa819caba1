// Package database opens the contacts database and manages its schema.
// The driver is chosen from the DATABASE_URL: postgres:// URLs use lib/pq,
// everything else is treated as a sqlite file path.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB wraps the sql.DB connection pool together with its driver identity.
type DB struct {
	Conn   *sql.DB
	driver string
}

// Open connects to the database described by databaseURL and verifies
// connectivity. It does not touch the schema; call MigrateUp for that.
func Open(databaseURL string) (*DB, error) {
	driver, dsn := resolveDriver(databaseURL)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite permits one writer at a time; a single pooled connection
		// queues concurrent transactions instead of failing with SQLITE_BUSY,
		// and keeps :memory: databases on one connection.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Conn: conn, driver: driver}, nil
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string { return db.driver }

// Close closes the connection pool.
func (db *DB) Close() error { return db.Conn.Close() }

// MigrateUp applies all pending schema migrations.
func (db *DB) MigrateUp() error {
	m, err := db.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back the given number of migrations.
func (db *DB) MigrateDown(steps int) error {
	m, err := db.migrator()
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// MigrateVersion reports the current schema version and whether the last
// migration left the schema dirty. A fresh database reports version 0.
func (db *DB) MigrateVersion() (uint, bool, error) {
	m, err := db.migrator()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	dialect := "sqlite"
	var drv migratedb.Driver
	var err error
	switch db.driver {
	case DriverPostgres:
		dialect = "postgres"
		drv, err = migratepg.WithInstance(db.Conn, &migratepg.Config{})
	default:
		drv, err = migratesqlite.WithInstance(db.Conn, &migratesqlite.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.driver, drv)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	return m, nil
}

// resolveDriver maps a DATABASE_URL onto a driver name and its DSN.
func resolveDriver(databaseURL string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL
	case strings.HasPrefix(databaseURL, "sqlite3://"):
		return DriverSQLite, strings.TrimPrefix(databaseURL, "sqlite3://")
	default:
		return DriverSQLite, databaseURL
	}
}
