package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/model"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/storage/db"
)

// fakeClock 可手动推进的时钟.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRepo(t *testing.T) (*repository.FileRepository, *gorm.DB, *fakeClock) {
	t.Helper()

	client, err := db.New(context.Background(), configs.DBConfig{
		Type:     configs.SQLite,
		DSN:      "file:" + filepath.Join(t.TempDir(), "files.db"),
		Database: "files",
		LogLevel: "silent",
	}, db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := repository.NewFileRepository(client.GetDB(), repository.WithClock(clock.Now))
	require.NoError(t, repo.Migrate(context.Background()))

	return repo, client.GetDB(), clock
}

func insert(t *testing.T, repo *repository.FileRepository, token string, ttl time.Duration) *model.FileRecord {
	t.Helper()

	rec, err := repo.Insert(context.Background(), repository.InsertParams{
		Token:    token,
		Filename: token + ".txt",
		Size:     3,
		Locator:  "/api/file/" + token + ".txt",
		TTL:      ttl,
	})
	require.NoError(t, err)

	return rec
}

func rawRecord(t *testing.T, gdb *gorm.DB, token string) model.FileRecord {
	t.Helper()

	var rec model.FileRecord
	require.NoError(t, gdb.Where("share_id = ?", token).Take(&rec).Error)

	return rec
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo, _, clock := newRepo(t)

	rec, err := repo.Insert(ctx, repository.InsertParams{
		Token:       "abcd1234",
		Filename:    "report.pdf",
		Size:        1024,
		ContentType: "application/pdf",
		Locator:     "/uploads/x.pdf",
		TTL:         time.Minute,
	})
	require.NoError(t, err)
	assert.Len(t, rec.ID, 36)
	assert.True(t, clock.Now().Equal(rec.CreatedAt))
	assert.True(t, rec.CreatedAt.Add(time.Minute).Equal(rec.ExpiresAt))

	got, err := repo.FindByToken(ctx, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Equal(t, int64(1024), got.FileSize)
	assert.Equal(t, "application/pdf", got.ContentTypeOr(""))
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, 0, got.DownloadCount)
	assert.False(t, got.IsDeleted)
	assert.Nil(t, got.DeletedAt)

	_, err = repo.FindByToken(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInsertNullContentType(t *testing.T) {
	repo, _, _ := newRepo(t)
	insert(t, repo, "nullct01", time.Minute)

	got, err := repo.FindByToken(context.Background(), "nullct01")
	require.NoError(t, err)
	assert.Nil(t, got.ContentType)
}

func TestInsertDuplicateToken(t *testing.T) {
	repo, _, _ := newRepo(t)
	insert(t, repo, "dup00001", time.Minute)

	_, err := repo.Insert(context.Background(), repository.InsertParams{
		Token: "dup00001", Filename: "b", Locator: "/api/file/b", TTL: time.Minute,
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateToken)
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, gdb, clock := newRepo(t)
	insert(t, repo, "soft0001", time.Hour)

	changed, err := repo.SoftDelete(ctx, "soft0001")
	require.NoError(t, err)
	assert.True(t, changed)

	first := rawRecord(t, gdb, "soft0001")
	require.NotNil(t, first.DeletedAt)
	assert.True(t, first.IsDeleted)

	clock.Advance(time.Minute)

	changed, err = repo.SoftDelete(ctx, "soft0001")
	require.NoError(t, err)
	assert.False(t, changed)

	second := rawRecord(t, gdb, "soft0001")
	assert.True(t, first.DeletedAt.Equal(*second.DeletedAt))

	_, err = repo.FindByToken(ctx, "soft0001")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIncrementDownloadCountConcurrent(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t)
	insert(t, repo, "count001", time.Hour)

	const n = 20

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := repo.IncrementDownloadCount(ctx, "count001")
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}

	wg.Wait()

	got, err := repo.FindByToken(ctx, "count001")
	require.NoError(t, err)
	assert.Equal(t, n, got.DownloadCount)

	// 已删除的记录不再计数
	_, err = repo.SoftDelete(ctx, "count001")
	require.NoError(t, err)

	ok, err := repo.IncrementDownloadCount(ctx, "count001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindByLocatorCandidateOrder(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t)

	_, err := repo.Insert(ctx, repository.InsertParams{Token: "pub00001", Filename: "p", Locator: "/uploads/x.bin", TTL: time.Hour})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, repository.InsertParams{Token: "api00001", Filename: "a", Locator: "/api/file/x.bin", TTL: time.Hour})
	require.NoError(t, err)

	got, err := repo.FindByLocator(ctx, "/api/file/x.bin", "/uploads/x.bin")
	require.NoError(t, err)
	assert.Equal(t, "api00001", got.ShareToken)

	_, err = repo.SoftDelete(ctx, "api00001")
	require.NoError(t, err)

	got, err = repo.FindByLocator(ctx, "/api/file/x.bin", "/uploads/x.bin")
	require.NoError(t, err)
	assert.Equal(t, "pub00001", got.ShareToken)

	_, err = repo.FindByLocator(ctx, "/api/file/none")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.FindByLocator(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLocatorReferenced(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t)

	insert(t, repo, "ref00001", time.Hour)

	_, err := repo.SoftDelete(ctx, "ref00001")
	require.NoError(t, err)

	ok, err := repo.LocatorReferenced(ctx, "/uploads/ref00001.txt", "/api/file/ref00001.txt")
	require.NoError(t, err)
	assert.True(t, ok, "deleted rows still count as references")

	ok, err = repo.LocatorReferenced(ctx, "/api/file/other.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.LocatorReferenced(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiryQueries(t *testing.T) {
	ctx := context.Background()
	repo, _, clock := newRepo(t)

	insert(t, repo, "short001", time.Minute)
	insert(t, repo, "short002", time.Minute)
	insert(t, repo, "long0001", time.Hour)

	expired, err := repo.ListExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, expired)

	// 边界时刻算过期
	clock.Advance(time.Minute)

	expired, err = repo.ListExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Len(t, expired, 2)

	n, err := repo.SoftDeleteExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.SoftDeleteExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = repo.FindByToken(ctx, "long0001")
	assert.NoError(t, err)
}

func TestPurgeByRetention(t *testing.T) {
	ctx := context.Background()
	repo, gdb, clock := newRepo(t)

	old := insert(t, repo, "old00001", time.Hour)
	insert(t, repo, "new00001", time.Hour)
	live := insert(t, repo, "live0001", time.Hour)

	_, err := repo.SoftDelete(ctx, "old00001")
	require.NoError(t, err)

	clock.Advance(10 * 24 * time.Hour)

	_, err = repo.SoftDelete(ctx, "new00001")
	require.NoError(t, err)

	recs, err := repo.ListPurgeable(ctx, 7)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, old.ID, recs[0].ID)

	// 未删除的记录即使给出 id 也不会被物理删除
	n, err := repo.PurgeByIDs(ctx, []string{old.ID, live.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int64
	require.NoError(t, gdb.Model(&model.FileRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	n, err = repo.PurgeByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLocatorsInUse(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t)

	insert(t, repo, "use00001", time.Hour)
	insert(t, repo, "gone0001", time.Hour)

	_, err := repo.SoftDelete(ctx, "gone0001")
	require.NoError(t, err)

	locs := []string{"/api/file/use00001.txt", "/api/file/gone0001.txt", "/api/file/nope.txt"}
	for i := range 600 {
		locs = append(locs, fmt.Sprintf("/api/file/pad%d", i))
	}

	used, err := repo.LocatorsInUse(ctx, locs)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"/api/file/use00001.txt": true}, used)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	repo, _, clock := newRepo(t)

	insert(t, repo, "stat0001", time.Minute)
	insert(t, repo, "stat0002", time.Hour)
	insert(t, repo, "stat0003", time.Hour)

	_, err := repo.IncrementDownloadCount(ctx, "stat0002")
	require.NoError(t, err)
	_, err = repo.SoftDelete(ctx, "stat0003")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	s, err := repo.Stats(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, repository.Stats{Active: 1, Expired: 1, Deleted: 1, ActiveBytes: 3, TotalDownloads: 1}, s)
}
