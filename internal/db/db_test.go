package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := Init("sqlite", filepath.Join(t.TempDir(), "data", "ressona.db"))
	require.NoError(t, err)
	defer Close(conn)

	require.NoError(t, Migrate(ctx, conn.DB, "sqlite"))

	version, err := Version(ctx, conn.DB, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	var count int
	require.NoError(t, conn.Get(&count, `SELECT COUNT(*) FROM intentions`))
	assert.Equal(t, 0, count)

	require.NoError(t, Rollback(ctx, conn.DB, "sqlite"))
	_, err = conn.Exec(`SELECT COUNT(*) FROM intentions`)
	assert.Error(t, err)
}

func TestMigrateUnknownDriver(t *testing.T) {
	err := Migrate(context.Background(), nil, "mysql")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestWithPragmas(t *testing.T) {
	assert.Equal(t, "a.db?"+sqlitePragmas, withPragmas("a.db"))
	assert.Equal(t, "a.db?cache=shared&"+sqlitePragmas, withPragmas("a.db?cache=shared"))
	assert.Equal(t, "a.db?_pragma=busy_timeout(1)", withPragmas("a.db?_pragma=busy_timeout(1)"))
}
