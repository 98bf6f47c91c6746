package testutil

import (
	"context"
	"testing"

	"github.com/pratik-mahalle/skuprice/internal/config"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/repository/postgres"
	"github.com/pratik-mahalle/skuprice/migrations"
)

// NewTestDB opens an in-memory SQLite database with all migrations applied.
// The database is closed when the test finishes.
func NewTestDB(t *testing.T) *postgres.DB {
	t.Helper()

	db, err := postgres.New(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := postgres.RunMigrations(context.Background(), db, migrations.FS()); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return db
}

// NewTestLogger returns a logger that only reports errors
func NewTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

// StrPtr returns a pointer to s
func StrPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to n
func Int64Ptr(n int64) *int64 {
	return &n
}
