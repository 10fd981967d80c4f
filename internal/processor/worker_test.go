package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/mbtisong/internal/common"
	"github.com/jo-hoe/mbtisong/internal/jobs"
	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/musicgen"
	"github.com/jo-hoe/mbtisong/internal/prompt"
)

type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*jobs.Job
	resultErr error
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*jobs.Job)}
}

func (s *memStore) CreateJob(job *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *job
	s.jobs[job.ID] = &c
	return nil
}

func (s *memStore) UpdateStage(id string, stage jobs.Stage, startedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Stage = stage
		if startedAt != nil {
			st := *startedAt
			j.StartedAt = &st
		}
	}
	return nil
}

func (s *memStore) SaveLyrics(id, lyrics, title, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Lyrics, j.Title, j.LyricsSource = lyrics, title, source
	}
	return nil
}

func (s *memStore) SaveResult(id string, asset musicgen.AssetResult, audioPath string, audioSize int64, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultErr != nil {
		return s.resultErr
	}
	if j, ok := s.jobs[id]; ok {
		j.Stage = jobs.StageCompleted
		j.Asset = asset
		j.AudioPath, j.AudioSize = audioPath, audioSize
		ct := completedAt
		j.CompletedAt = &ct
	}
	return nil
}

func (s *memStore) SaveError(id, kind, msg string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Stage = jobs.StageFailed
		k, m := kind, msg
		j.ErrorKind, j.ErrorMessage = &k, &m
		ct := completedAt
		j.CompletedAt = &ct
	}
	return nil
}

func (s *memStore) GetJob(id string) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		c := *j
		return &c, nil
	}
	return nil, jobs.ErrNotFound
}

type writerMock struct {
	out string
	err error
}

func (m *writerMock) WriteLyrics(context.Context, prompt.Input) (string, error) {
	return m.out, m.err
}

type musicMock struct {
	mu    sync.Mutex
	songs []musicgen.Song
	asset musicgen.AssetResult
	err   error
}

func (m *musicMock) Generate(_ context.Context, song musicgen.Song) (musicgen.AssetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.songs = append(m.songs, song)
	return m.asset, m.err
}

type audioMock struct {
	size int64
	err  error
	urls []string
}

func (a *audioMock) Fetch(_ context.Context, jobID, url string) (string, int64, error) {
	a.urls = append(a.urls, url)
	if a.err != nil {
		return "", 0, a.err
	}
	return "/data/audio/" + jobID + ".mp3", a.size, nil
}

type sourceCounter struct {
	mu      sync.Mutex
	sources []string
}

func (c *sourceCounter) LyricsWritten(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func callbackServer(t *testing.T, status int) (*httptest.Server, func() []map[string]any, *atomic.Int32) {
	t.Helper()
	var mu sync.Mutex
	var bodies []map[string]any
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return append([]map[string]any(nil), bodies...)
	}, &hits
}

const modelLyrics = "1. Title: Harbor Lights\n2. (Verse 1) ships come in\n\nReasoning: calm"

func TestWorker_Process_SuccessWithCallback(t *testing.T) {
	cbSrv, bodies, _ := callbackServer(t, http.StatusOK)
	store := newMemStore()
	music := &musicMock{asset: musicgen.AssetResult{StreamURL: "https://s/1", DownloadURL: "https://d/1.mp3", CoverURL: "https://c/1"}}
	audio := &audioMock{size: 2048}
	counter := &sourceCounter{}

	w := New(discardLogger(), store, &writerMock{out: modelLyrics}, music, Options{
		Audio:           audio,
		Observer:        counter,
		CallbackRetries: 2,
		CallbackBackoff: 10 * time.Millisecond,
	})

	cb := cbSrv.URL
	job := jobs.Job{
		ID:          "job-1",
		Input:       jobs.Input{Category: "ISFJ", Keywords: []string{"harbor"}, Joy: 55, Energy: 35, Vocal: "여성"},
		CallbackURL: &cb,
		Stage:       jobs.StageQueued,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.CreateJob(&job))
	require.NoError(t, w.Process(context.Background(), jobs.WorkItem{Job: job}))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StageCompleted, got.Stage)
	assert.Equal(t, "Harbor Lights", got.Title)
	assert.Equal(t, string(llm.SourceModel), got.LyricsSource)
	assert.Equal(t, music.asset, got.Asset)
	assert.Equal(t, int64(2048), got.AudioSize)
	assert.Equal(t, []string{"https://d/1.mp3"}, audio.urls)
	assert.Equal(t, []string{"model"}, counter.sources)

	require.Len(t, music.songs, 1)
	song := music.songs[0]
	assert.Equal(t, prompt.VocalFemale, song.Vocal)
	assert.Equal(t, []string{"harbor"}, song.Keywords)
	assert.Equal(t, 55, song.Joy)

	cbs := bodies()
	require.Len(t, cbs, 1)
	assert.Equal(t, common.StatusCompleted, cbs[0]["status"])
	assert.Equal(t, "job-1", cbs[0]["job_id"])
	result := cbs[0]["result"].(map[string]any)
	assert.Equal(t, "Harbor Lights", result["title"])
	assert.Equal(t, "https://s/1", result["stream_url"])
}

func TestWorker_Process_LLMErrorFallsBackToTemplate(t *testing.T) {
	store := newMemStore()
	music := &musicMock{asset: musicgen.AssetResult{StreamURL: "https://s/2"}}
	w := New(discardLogger(), store, &writerMock{err: errors.New("quota")}, music, Options{})

	job := jobs.Job{ID: "job-2", Input: jobs.Input{Category: "ENTJ", Keywords: []string{"summit"}, Joy: 10, Energy: 90}}
	require.NoError(t, store.CreateJob(&job))
	require.NoError(t, w.Process(context.Background(), jobs.WorkItem{Job: job}))

	got, _ := store.GetJob(job.ID)
	assert.Equal(t, jobs.StageCompleted, got.Stage)
	assert.Equal(t, string(llm.SourceTemplate), got.LyricsSource)
	assert.Equal(t, prompt.Fallback(prompt.Input{Category: "ENTJ", Keywords: []string{"summit"}, Joy: 10, Energy: 90}), got.Lyrics)
	assert.Equal(t, musicgen.Title(musicgen.Song{Lyrics: got.Lyrics, Category: "ENTJ"}), got.Title)
	assert.Empty(t, got.AudioPath, "no downloader configured")
}

func TestWorker_Process_CallerLyricsSkipModel(t *testing.T) {
	store := newMemStore()
	music := &musicMock{asset: musicgen.AssetResult{DownloadURL: "https://d/3.mp3"}}
	audio := &audioMock{err: errors.New("disk full")}
	w := New(discardLogger(), store, &writerMock{err: errors.New("must not be called")}, music, Options{Audio: audio})

	job := jobs.Job{ID: "job-3", Input: jobs.Input{Category: "INTP", Lyrics: modelLyrics, Title: "Mine"}}
	require.NoError(t, store.CreateJob(&job))
	require.NoError(t, w.Process(context.Background(), jobs.WorkItem{Job: job}))

	got, _ := store.GetJob(job.ID)
	assert.Equal(t, jobs.StageCompleted, got.Stage, "download failure is not fatal")
	assert.Equal(t, SourceCaller, got.LyricsSource)
	assert.Equal(t, "Mine", got.Title)
	assert.Equal(t, modelLyrics, got.Lyrics)
	assert.Zero(t, got.AudioSize)
}

func TestWorker_Process_MusicErrorSetsFailed(t *testing.T) {
	cbSrv, bodies, hits := callbackServer(t, http.StatusInternalServerError)
	store := newMemStore()
	music := &musicMock{err: &musicgen.Error{Kind: musicgen.KindPollTimeout, TaskID: "abc", Attempts: 70}}
	w := New(discardLogger(), store, nil, music, Options{CallbackRetries: 3, CallbackBackoff: time.Millisecond})

	cb := cbSrv.URL
	job := jobs.Job{ID: "job-4", Input: jobs.Input{Category: "ESTP"}, CallbackURL: &cb}
	require.NoError(t, store.CreateJob(&job))

	err := w.Process(context.Background(), jobs.WorkItem{Job: job})
	require.ErrorIs(t, err, musicgen.ErrPollTimeout)

	got, _ := store.GetJob(job.ID)
	assert.Equal(t, jobs.StageFailed, got.Stage)
	require.NotNil(t, got.ErrorKind)
	assert.Equal(t, "PollTimeout", *got.ErrorKind)
	assert.Equal(t, int32(3), hits.Load(), "callback retried")
	cbs := bodies()
	require.NotEmpty(t, cbs)
	assert.Equal(t, common.StatusFailed, cbs[0]["status"])
	assert.Equal(t, "PollTimeout", cbs[0]["error_kind"])
}

func TestWorker_Process_SaveResultFailureIsTerminal(t *testing.T) {
	cbSrv, bodies, _ := callbackServer(t, http.StatusOK)
	store := newMemStore()
	store.resultErr = errors.New("disk I/O error")
	music := &musicMock{asset: musicgen.AssetResult{StreamURL: "https://s/5"}}
	w := New(discardLogger(), store, nil, music, Options{CallbackBackoff: time.Millisecond})

	cb := cbSrv.URL
	job := jobs.Job{ID: "job-5", Input: jobs.Input{Category: "ENFJ"}, CallbackURL: &cb}
	require.NoError(t, store.CreateJob(&job))

	err := w.Process(context.Background(), jobs.WorkItem{Job: job})
	require.Error(t, err)

	got, _ := store.GetJob(job.ID)
	assert.Equal(t, jobs.StageFailed, got.Stage, "pollers must see a terminal stage")
	require.NotNil(t, got.ErrorKind)
	assert.Equal(t, "Internal", *got.ErrorKind)
	cbs := bodies()
	require.Len(t, cbs, 1)
	assert.Equal(t, common.StatusFailed, cbs[0]["status"])
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "RemoteJobFailed", ErrorKind(&musicgen.Error{Kind: musicgen.KindRemoteJobFailed}))
	assert.Equal(t, "Canceled", ErrorKind(context.Canceled))
	assert.Equal(t, "Internal", ErrorKind(errors.New("x")))
}
