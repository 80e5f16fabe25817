package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tree_bench/al"
	"tree_bench/mp"
	"tree_bench/ns"
	"tree_bench/postgres"
	"tree_bench/tree/treetest"
)

func TestDialect(t *testing.T) {
	d := postgres.Dialect{}
	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t,
		"UPDATE t SET path = CAST($1 AS TEXT) || path WHERE id = $2",
		d.Rebind("UPDATE t SET path = "+d.ConcatParam("path")+" WHERE id = ?"))
	assert.Contains(t, d.BinaryVarchar(255), `COLLATE "C"`)
}

func TestUnreachable(t *testing.T) {
	e := postgres.New("pg-down", "postgres://postgres@127.0.0.1:1/postgres?sslmode=disable&connect_timeout=1")
	assert.Equal(t, "pg-down", e.Name())
	_, err := e.Open(context.Background())
	assert.Error(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Remove())
}

// setupPostgresContainer starts a throwaway PostgreSQL server and returns
// its DSN.
func setupPostgresContainer(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container in short mode")
	}
	ctx := context.Background()
	password := gofakeit.Password(true, true, true, false, false, 16)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": password,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	t.Cleanup(func() { postgresC.Terminate(ctx) })

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)
	port, err := postgresC.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://postgres:%s@%s:%s/postgres?sslmode=disable", password, host, port.Port())
}

func TestModels(t *testing.T) {
	dsn := setupPostgresContainer(t)
	e := postgres.New("pg15", dsn)
	t.Cleanup(func() { e.Close() })

	db, err := e.Open(context.Background())
	require.NoError(t, err)
	// every model recreates its table, so one server serves all subtests
	open := func(t *testing.T) *sql.DB { return db }

	t.Run("mp", func(t *testing.T) { treetest.Run(t, open, e.Dialect(), mp.New) })
	t.Run("al", func(t *testing.T) { treetest.Run(t, open, e.Dialect(), al.New) })
	t.Run("ns", func(t *testing.T) { treetest.Run(t, open, e.Dialect(), ns.New) })
}
