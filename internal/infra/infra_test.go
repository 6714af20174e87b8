package infra

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://user:pw@db:5432/payvost?sslmode=disable",
		migrationURL("postgres://user:pw@db:5432/payvost?sslmode=disable"))
	assert.Equal(t, "pgx5://db/payvost", migrationURL("postgresql://db/payvost"))
	assert.Equal(t, "pgx5://db/payvost", migrationURL("pgx5://db/payvost"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := 0, 0
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups++
		case strings.HasSuffix(n, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)

	schema, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(schema), "idempotency_key  TEXT UNIQUE")
	assert.Contains(t, string(schema), "CHECK (balance >= 0)")
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisClient(context.Background(), "")
	assert.Error(t, err)
	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewPostgresPoolValidatesURL(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), "", "test")
	assert.Error(t, err)
	_, err = NewPostgresPool(context.Background(), "postgres://%zz", "test")
	assert.Error(t, err)
}
