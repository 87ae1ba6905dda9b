package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anthology-downloader/internal/storage"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "catalog", "papers.db"), 2*time.Second, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func record(id, status, checksum string) *storage.PaperRecord {
	return &storage.PaperRecord{
		RunID:      "run-1",
		Event:      "ACL",
		Year:       "2018",
		Identifier: id,
		Title:      "Example Paper",
		SourceURL:  "https://aclweb.org/anthology/" + id + ".pdf",
		FilePath:   "/tmp/out/" + id + "-example-paper.pdf",
		CheckSum:   checksum,
		Status:     status,
		FetchedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestUpsertPaper(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	isNew, err := repo.UpsertPaper(ctx, record("P18-1001", storage.StatusDownloaded, "abc"))
	require.NoError(t, err)
	assert.True(t, isNew)

	second := record("P18-1001", storage.StatusSkipped, "")
	second.RunID = "run-2"
	isNew, err = repo.UpsertPaper(ctx, second)
	require.NoError(t, err)
	assert.False(t, isNew)

	got, err := repo.GetPaper(ctx, "ACL", "2018", "P18-1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, storage.StatusSkipped, got.Status)
	assert.Equal(t, "run-2", got.RunID)
	assert.Equal(t, "abc", got.CheckSum, "empty checksum keeps the previous one")
	assert.True(t, got.FetchedAt.Equal(second.FetchedAt))
}

func TestGetPaperAndCount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	missing, err := repo.GetPaper(ctx, "ACL", "2018", "P18-1001")
	require.NoError(t, err)
	assert.Nil(t, missing)

	for _, id := range []string{"P18-1001", "P18-1002", "P18-1003"} {
		_, err := repo.UpsertPaper(ctx, record(id, storage.StatusDownloaded, "x"))
		require.NoError(t, err)
	}
	other := record("N18-1001", storage.StatusFailed, "")
	other.Event = "NAACL"
	_, err = repo.UpsertPaper(ctx, other)
	require.NoError(t, err)

	found, err := repo.GetPaper(ctx, "ACL", "2018", "P18-1002")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "P18-1002", found.Identifier)

	count, err := repo.CountByEvent(ctx, "ACL", "2018")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = repo.CountByEvent(ctx, "ACL", "2019")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetMissing(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.GetPaper(context.Background(), "ACL", "2018", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "papers.db")

	repo, err := NewRepository(path, 2*time.Second, nil)
	require.NoError(t, err)
	_, err = repo.UpsertPaper(ctx, record("P18-1001", storage.StatusDownloaded, "abc"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewRepository(path, 2*time.Second, nil)
	require.NoError(t, err)
	defer repo.Close()

	count, err := repo.CountByEvent(ctx, "ACL", "2018")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
