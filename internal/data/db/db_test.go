package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

func TestDialect(t *testing.T) {
	assert.Equal(t, "sqlite", Dialect(":memory:"))
	assert.Equal(t, "sqlite", Dialect("sqlite:/tmp/x"))
	assert.Equal(t, "sqlite", Dialect("file:test?mode=memory&cache=shared"))
	assert.Equal(t, "sqlite", Dialect("/var/lib/capacity.db"))
	assert.Equal(t, "postgres", Dialect("postgres://u:p@localhost/capacity"))
	assert.Equal(t, "postgres", Dialect("host=localhost user=postgres"))
}

func TestDSNFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("POSTGRES_USER", "cc")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_NAME", "registry")
	assert.Equal(t, "postgres://cc:pw@db:5433/registry?sslmode=disable", DSNFromEnv())

	t.Setenv("DATABASE_DSN", ":memory:")
	assert.Equal(t, ":memory:", DSNFromEnv())
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	svc, err := Open(":memory:", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	assert.Equal(t, "sqlite", svc.Dialect())
	require.NoError(t, svc.AutoMigrateAll())
	assert.True(t, svc.DB().Migrator().HasTable("components"))
	assert.True(t, svc.DB().Migrator().HasTable("unit_registry_entries"))
	assert.True(t, svc.DB().Migrator().HasTable("rebuild_checkpoints"))
}

func TestErrorClassification(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("scan: %w", &pgconn.PgError{Code: "08006"})))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsTransient(errors.New("database is locked")))
	assert.False(t, IsTransient(errors.New("NOT NULL constraint failed: components.unit_id")))

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: components.component_id")))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
