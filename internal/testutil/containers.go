package testutil

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/at-ishikawa/recipebook/internal/config"
	"github.com/at-ishikawa/recipebook/internal/database"
	"github.com/at-ishikawa/recipebook/schemas"
)

const (
	testDatabase = "recipes"
	testUser     = "recipebook"
	testPassword = "recipebook"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed, skipping container-based test")
	}
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port) (string, int) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start %s", req.Image)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate %s: %v", req.Image, err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped.Int()
}

// StartPostgres runs a PostgreSQL container and returns its connection settings.
func StartPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	requireDocker(t)

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
			"POSTGRES_DB":       testDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForSQL("5432/tcp", "postgres", func(host string, port nat.Port) string {
				return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
					testUser, testPassword, host, port.Port(), testDatabase)
			}),
		).WithStartupTimeout(90 * time.Second),
	}, "5432/tcp")

	return config.DatabaseConfig{
		Driver:   "postgres",
		Host:     host,
		Port:     port,
		Database: testDatabase,
		Username: testUser,
		Password: testPassword,
		SSLMode:  "disable",
	}
}

// StartMariaDB runs a MariaDB container and returns its connection settings.
func StartMariaDB(t *testing.T) config.DatabaseConfig {
	t.Helper()
	requireDocker(t)

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": testPassword,
			"MARIADB_USER":          testUser,
			"MARIADB_PASSWORD":      testPassword,
			"MARIADB_DATABASE":      testDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("3306/tcp"),
			wait.ForSQL("3306/tcp", "mysql", func(host string, port nat.Port) string {
				return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", testUser, testPassword, host, port.Port(), testDatabase)
			}),
		).WithStartupTimeout(120 * time.Second),
	}, "3306/tcp")

	return config.DatabaseConfig{
		Driver:   "mariadb",
		Host:     host,
		Port:     port,
		Database: testDatabase,
		Username: testUser,
		Password: testPassword,
	}
}

// StartRedis runs a Redis container and returns its URL.
func StartRedis(t *testing.T) string {
	t.Helper()
	requireDocker(t)

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}, "6379/tcp")
	return fmt.Sprintf("redis://%s:%d/0", host, port)
}

// OpenMigrated connects to the database and creates the catalog tables.
func OpenMigrated(t *testing.T, cfg config.DatabaseConfig) *database.DB {
	t.Helper()

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrations, err := schemas.For(db.Dialect().Name())
	require.NoError(t, err)
	_, err = database.Migrate(context.Background(), cfg, migrations)
	require.NoError(t, err)
	return db
}
