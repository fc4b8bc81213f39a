package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"society/internal/config"
	"society/internal/core"
	"society/internal/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func memoryEnv(t *testing.T, seed string) {
	t.Helper()
	dir := t.TempDir()
	if seed != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_houses.txt"), []byte(seed), 0o644))
	}
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("DATA_DIRECTORY", dir)
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "error")
}

func TestGeneratePaymentsCommand(t *testing.T) {
	memoryEnv(t, "A-101\nA-102,A,vacant\nB-201,B\n")

	out, err := run(t, "generate-payments", "--amount", "1500")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 2 payments of 1500")
}

func TestGeneratePaymentsCommandRejectsNonPositiveAmount(t *testing.T) {
	memoryEnv(t, "A-101\n")

	_, err := run(t, "generate-payments", "--amount", "0")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = run(t, "generate-payments", "--amount", "abc")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestCreateUserCommand(t *testing.T) {
	memoryEnv(t, "")

	out, err := run(t, "create-user", "--email", "Admin@Example.com", "--name", "Admin", "--password", "s3cretpass", "--role", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Created admin@example.com")
	assert.Contains(t, out, "with role admin")
}

func TestCreateUserCommandRejectsUnknownRole(t *testing.T) {
	memoryEnv(t, "")

	_, err := run(t, "create-user", "--email", "a@example.com", "--password", "s3cretpass", "--role", "janitor")
	assert.Error(t, err)
}

func TestNoticeCommands(t *testing.T) {
	memoryEnv(t, "")

	tests := map[string]string{
		"export": "Export not available with cloud database",
		"import": "Import not available with cloud database",
		"reset":  "Reset not available with cloud database",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := run(t, name)
			require.NoError(t, err)
			assert.Equal(t, want+"\n", out)
		})
	}
}

func TestMigrationTarget(t *testing.T) {
	d, dsn, err := migrationTarget(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	require.NoError(t, err)
	assert.Equal(t, storage.DialectSQLite, d)
	assert.Equal(t, "x.db", dsn)

	d, dsn, err = migrationTarget(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://db/society"})
	require.NoError(t, err)
	assert.Equal(t, storage.DialectPostgres, d)
	assert.Equal(t, "postgres://db/society", dsn)

	_, _, err = migrationTarget(&config.Config{DataBackend: "supabase"})
	assert.Error(t, err)
}

func TestMigrateCommandSQLite(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "society.db"))
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations applied (sqlite)")
}
