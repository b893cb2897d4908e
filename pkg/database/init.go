package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Alijeyrad/karsaz_backend/config"
)

// maintenanceDB is always present on a PostgreSQL server.
const maintenanceDB = "postgres"

// EnsureDatabases creates every named database that does not exist yet,
// connecting with the credentials of cfg to the maintenance database.
func EnsureDatabases(ctx context.Context, cfg config.DatabaseConfig, names []string) error {
	if len(names) == 0 {
		return errors.New("no database names configured")
	}

	admin := cfg
	admin.DBName = maintenanceDB
	conn, err := sql.Open("postgres", DSN(admin))
	if err != nil {
		return fmt.Errorf("open %s: %w", maintenanceDB, err)
	}
	defer conn.Close()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping %s: %w", maintenanceDB, err)
	}

	for _, name := range names {
		created, err := ensureDatabase(ctx, conn, name)
		if err != nil {
			return fmt.Errorf("database %q: %w", name, err)
		}
		if created {
			slog.InfoContext(ctx, "database created", "name", name)
		}
	}
	return nil
}

func ensureDatabase(ctx context.Context, conn *sql.DB, name string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existence: %w", err)
	}
	if exists {
		return false, nil
	}
	// CREATE DATABASE takes no bind parameters.
	if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return false, fmt.Errorf("create: %w", err)
	}
	return true, nil
}
