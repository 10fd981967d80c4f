package jobs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/mbtisong/internal/musicgen"
	"github.com/jo-hoe/mbtisong/internal/util"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := util.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLiteStore_JobLifecycle(t *testing.T) {
	store := newStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	cb := "http://example.com/callback"

	job := &Job{
		ID:          "job-1",
		Input:       Input{Category: "ENFJ", Keywords: []string{"stage", "lights"}, Joy: 80, Energy: 90, Vocal: "male"},
		CallbackURL: &cb,
		CreatedAt:   now,
	}
	require.NoError(t, store.CreateJob(job))
	assert.Equal(t, StageQueued, job.Stage)

	start := now.Add(time.Second)
	require.NoError(t, store.UpdateStage(job.ID, StageWriting, &start))
	require.NoError(t, store.SaveLyrics(job.ID, "1. Title: Lights", "Lights", "model"))
	require.NoError(t, store.UpdateStage(job.ID, StageComposing, nil))

	mid, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StageComposing, mid.Stage)
	assert.False(t, mid.Stage.Terminal())

	asset := musicgen.AssetResult{StreamURL: "https://s/1", DownloadURL: "https://d/1.mp3", CoverURL: "https://c/1"}
	done := now.Add(2 * time.Second)
	require.NoError(t, store.SaveResult(job.ID, asset, "/data/audio/job-1.mp3", 4096, done))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, got.Stage)
	assert.True(t, got.Stage.Terminal())
	assert.Equal(t, job.Input, got.Input)
	require.NotNil(t, got.CallbackURL)
	assert.Equal(t, cb, *got.CallbackURL)
	assert.Equal(t, "Lights", got.Title)
	assert.Equal(t, "model", got.LyricsSource)
	assert.Equal(t, asset, got.Asset)
	assert.Equal(t, int64(4096), got.AudioSize)
	assert.Equal(t, "/data/audio/job-1.mp3", got.AudioPath)
	assert.Nil(t, got.ErrorKind)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.StartedAt.Equal(start))
	assert.True(t, got.CompletedAt.Equal(done))
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestSQLiteStore_SaveError(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.CreateJob(&Job{ID: "job-2", Input: Input{Category: "ISTP"}}))
	require.NoError(t, store.SaveError("job-2", "PollTimeout", "no track after 70 attempts", time.Now()))

	got, err := store.GetJob("job-2")
	require.NoError(t, err)
	assert.Equal(t, StageFailed, got.Stage)
	require.NotNil(t, got.ErrorKind)
	assert.Equal(t, "PollTimeout", *got.ErrorKind)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "70 attempts")
	assert.Nil(t, got.CallbackURL)
}

func TestSQLiteStore_Errors(t *testing.T) {
	store := newStore(t)
	_, err := store.GetJob("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, store.CreateJob(nil))
	assert.Error(t, store.CreateJob(&Job{}))
	require.NoError(t, store.CreateJob(&Job{ID: "dup"}))
	assert.Error(t, store.CreateJob(&Job{ID: "dup"}))
}
