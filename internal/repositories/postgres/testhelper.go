package postgres

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/lib/pq"

	"github.com/nidoproject/authz/internal/infrastructure/config"
	"github.com/nidoproject/authz/internal/infrastructure/database"
)

// SetupTestDB connects to the test database and runs migrations. Tests are
// skipped when no database is reachable, so the rest of the suite stays
// runnable without one.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if err := config.InitConfig("test"); err != nil {
		t.Skipf("no test database config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Skipf("no test database config: %v", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	if err := pg.RunMigrations("../../../internal/infrastructure/database/migrations/postgres"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return pg.DB
}

// CleanupTestDB removes seeded fact rows and closes the connection.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	tables := []string{"group_memberships", "groups", "rights", "users", "communities"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("Warning: Failed to clean up table %s: %v", table, err)
		}
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}
