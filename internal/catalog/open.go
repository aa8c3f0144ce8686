package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
)

// Source is an open connection that can extract its schema.
type Source interface {
	Extractor
	Close() error
}

// Drivers lists the driver names Open accepts.
var Drivers = []string{"sqlite", "postgres", "mysql"}

// Open connects to a database and returns an extractor for it. schema
// names the database schema to read; it defaults to "public" for
// PostgreSQL and to the DSN's database for MySQL, and is ignored for
// SQLite.
func Open(ctx context.Context, driver, dsn, schema string) (Source, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		db, err := openSQL(ctx, "sqlite", dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLiteExtractor(db), nil

	case "postgres", "postgresql", "pgx":
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := conn.Ping(ctx); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("pinging postgres: %w", err)
		}
		if schema == "" {
			schema = "public"
		}
		return NewPostgresExtractor(conn, schema), nil

	case "mysql":
		if schema == "" {
			cfg, err := mysql.ParseDSN(dsn)
			if err != nil {
				return nil, fmt.Errorf("parsing mysql dsn: %w", err)
			}
			schema = cfg.DBName
		}
		if schema == "" {
			return nil, fmt.Errorf("mysql: no database in dsn and no schema given")
		}
		db, err := openSQL(ctx, "mysql", dsn)
		if err != nil {
			return nil, err
		}
		return NewMySQLExtractor(db, schema), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
}

func openSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", driver, err)
	}
	return db, nil
}
