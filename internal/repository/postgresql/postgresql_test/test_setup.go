//go:build integration

package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDatabaseSetup owns a migrated PostgreSQL database for repository tests
type TestDatabaseSetup struct {
	DB        *database.DB
	container testcontainers.Container
}

// NewTestDatabase connects to TEST_DATABASE_URL when set, otherwise starts
// a throwaway postgres container.
func NewTestDatabase(ctx context.Context) (*TestDatabaseSetup, error) {
	setup := &TestDatabaseSetup{}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "timesheet_test",
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "secret",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start postgres container: %w", err)
		}
		setup.container = container

		host, err := container.Host(ctx)
		if err != nil {
			setup.Close()
			return nil, fmt.Errorf("host: %w", err)
		}
		port, err := container.MappedPort(ctx, "5432/tcp")
		if err != nil {
			setup.Close()
			return nil, fmt.Errorf("mapped port: %w", err)
		}
		dsn = fmt.Sprintf("postgres://test:secret@%s:%s/timesheet_test?sslmode=disable", host, port.Port())
	}

	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 5, MinConns: 1})
	if err != nil {
		setup.Close()
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	setup.DB = db

	if err := database.Migrate(ctx, db); err != nil {
		setup.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return setup, nil
}

// TruncateAllTables removes all rows, keeping the schema
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"time_entry_breaks",
		"time_entries",
		"employee_shift_assignments",
		"shift_schedule_times",
		"shift_schedules",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

func (t *TestDatabaseSetup) Close() {
	if t.DB != nil {
		t.DB.Close()
	}
	if t.container != nil {
		_ = t.container.Terminate(context.Background())
	}
}
