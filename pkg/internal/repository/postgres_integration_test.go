//go:build integration

package repository_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/storage/db"
)

// newPostgresRepo 在 Docker 中启动 PostgreSQL，需设置 TEST_INTEGRATION.
func newPostgresRepo(t *testing.T) *repository.FileRepository {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skip integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("dropvault_test"),
		postgres.WithUsername("dropvault"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	client, err := db.New(ctx, configs.DBConfig{
		Type:     configs.PostgreSQL,
		Host:     host,
		Port:     portNum,
		User:     "dropvault",
		Password: "test-password",
		Database: "dropvault_test",
		SSLMode:  "disable",
		LogLevel: "silent",
	}, db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewFileRepository(client.GetDB())
	require.NoError(t, repo.Migrate(ctx))

	return repo
}

func TestPostgresLifecycle(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	rec, err := repo.Insert(ctx, repository.InsertParams{
		Token: "pg000001", Filename: "report.pdf", Size: 1024, Locator: "/api/file/a.pdf", TTL: time.Hour,
	})
	require.NoError(t, err)

	_, err = repo.Insert(ctx, repository.InsertParams{
		Token: "pg000001", Filename: "other", Locator: "/api/file/b", TTL: time.Hour,
	})
	require.ErrorIs(t, err, repository.ErrDuplicateToken)

	ok, err := repo.IncrementDownloadCount(ctx, rec.ShareToken)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByToken(ctx, rec.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DownloadCount)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

	n, err := repo.SoftDeleteExpired(ctx, rec.ExpiresAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
