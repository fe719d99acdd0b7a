package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mongocsvexport/internal/domain"
)

// OpenSQL opens and pings a SQL database for the given connection.
// The caller must Close the returned handle.
func OpenSQL(ctx context.Context, conn *domain.DatabaseConnection) (*sql.DB, error) {
	var driverName, dsn string
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		driverName, dsn = "sqlite", buildSQLiteDSN(conn)
	case domain.DatabaseDriverMySQL:
		driverName, dsn = "mysql", buildMySQLDSN(conn)
	case domain.DatabaseDriverPostgres:
		driverName, dsn = "postgres", buildPostgresDSN(conn)
	default:
		return nil, fmt.Errorf("unsupported sql driver: %q", conn.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	// Exports hold one streaming cursor at a time.
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return db, nil
}

// OpenPostgresDSN opens a Postgres database from a raw lib/pq connection string.
func OpenPostgresDSN(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
