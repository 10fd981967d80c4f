package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/mbtisong/internal/common"
	"github.com/jo-hoe/mbtisong/internal/config"
	"github.com/jo-hoe/mbtisong/internal/engagement"
	"github.com/jo-hoe/mbtisong/internal/jobs"
	"github.com/jo-hoe/mbtisong/internal/metrics"
	"github.com/jo-hoe/mbtisong/internal/musicgen"
	"github.com/jo-hoe/mbtisong/internal/processor"
	"github.com/jo-hoe/mbtisong/internal/storage"
	"github.com/jo-hoe/mbtisong/internal/util"
)

type musicStub struct {
	asset musicgen.AssetResult
	err   error
}

func (m musicStub) Generate(context.Context, musicgen.Song) (musicgen.AssetResult, error) {
	return m.asset, m.err
}

type captureRecorder struct {
	mu      sync.Mutex
	records []engagement.Record
	err     error
}

func (c *captureRecorder) Record(_ context.Context, r engagement.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, r)
	return nil
}

func (c *captureRecorder) all() []engagement.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]engagement.Record(nil), c.records...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var fixedNow = time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *jobs.SQLiteStore
	rec   *captureRecorder
	srv   *httptest.Server
}

func newFixture(t *testing.T, music musicStub, mutate func(*Service)) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := util.OpenSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := jobs.NewSQLiteStore(db)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.MaxBodySize = 64 << 10
	cfg.Share.BaseURL = "https://share.example"

	rec := &captureRecorder{}
	svc := &Service{
		Log:       discardLogger(),
		Cfg:       cfg,
		Store:     store,
		Processor: processor.New(discardLogger(), store, nil, music, processor.Options{}),
		Audio:     storage.NewAudioStore(dir, nil, 0),
		Recorder:  rec,
		Metrics:   metrics.New(),
		Now:       func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(svc)
	}
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	return &fixture{svc: svc, store: store, rec: rec, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), common.ContentTypeJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), "body %s", raw)
	}
	return resp, out
}

var okAsset = musicgen.AssetResult{StreamURL: "https://cdn/s.mp3", DownloadURL: "https://cdn/d.mp3", CoverURL: "https://cdn/c.jpg"}

func TestHealthz(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	resp, body := f.do(t, http.MethodGet, common.PathHealthz, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAPIKeyEnforced(t *testing.T) {
	f := newFixture(t, musicStub{}, func(s *Service) { s.Cfg.Server.APIKey = "secret" })

	resp, _ := f.do(t, http.MethodGet, common.PathStyles, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, common.PathStyles, nil, http.Header{common.HeaderAPIKey: {"secret"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, common.PathHealthz, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is public")
}

func TestBodyLimit(t *testing.T) {
	f := newFixture(t, musicStub{}, func(s *Service) { s.Cfg.Server.MaxBodySize = 16 })
	resp, _ := f.do(t, http.MethodPost, common.PathLyrics, map[string]any{"mbti": "INFJ", "personal_line": strings.Repeat("x", 64)}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStyles(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)

	resp, body := f.do(t, http.MethodGet, common.PathStyles, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["categories"], 16)

	resp, body = f.do(t, http.MethodGet, common.PathStyles+"/infj", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "INFJ", body["category"])
	assert.Equal(t, true, body["known"])
	assert.Equal(t, "neo-classical", body["style"].(map[string]any)["genre"])

	_, body = f.do(t, http.MethodGet, common.PathStyles+"/XXXX", nil, nil)
	assert.Equal(t, false, body["known"])
	assert.Equal(t, "pop", body["style"].(map[string]any)["genre"])
}

func TestWriteLyrics_TemplateWithoutModel(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	resp, body := f.do(t, http.MethodPost, common.PathLyrics, map[string]any{
		"mbti":     "enfp",
		"keywords": []string{"stars"},
		"joy":      80,
		"energy":   70,
		"session":  map[string]any{"played": true},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "template", body["source"])
	assert.Contains(t, body["lyrics"], "stars")
	assert.NotEmpty(t, body["title"])
	sess := body["session"].(map[string]any)
	assert.EqualValues(t, 1, sess["button_clicks"])
	assert.EqualValues(t, 1, sess["visit_count"])
	assert.Equal(t, false, sess["played"], "new lyrics reset playback")
	assert.NotEmpty(t, sess["id"])
}

func TestWriteLyrics_RequiresCategory(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	resp, _ := f.do(t, http.MethodPost, common.PathLyrics, map[string]any{"joy": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSong_Sync(t *testing.T) {
	f := newFixture(t, musicStub{asset: okAsset}, nil)
	resp, body := f.do(t, http.MethodPost, common.PathSongs, map[string]any{
		"mbti": "ISTP", "keywords": []string{"rain"}, "joy": 40, "energy": 60, "title": "Rain Walk",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["stage"])
	assert.Equal(t, "Rain Walk", body["title"])
	assert.Equal(t, "template", body["lyrics_source"])
	result := body["result"].(map[string]any)
	assert.Equal(t, okAsset.StreamURL, result["stream_url"])
	assert.Equal(t, okAsset.CoverURL, result["cover_url"])
}

func TestCreateSong_ErrorStatusMapping(t *testing.T) {
	cases := map[musicgen.Kind]int{
		musicgen.KindPollTimeout:          http.StatusGatewayTimeout,
		musicgen.KindRemoteJobFailed:      http.StatusBadGateway,
		musicgen.KindSubmissionRejected:   http.StatusBadGateway,
		musicgen.KindConfigurationMissing: http.StatusServiceUnavailable,
	}
	for kind, want := range cases {
		t.Run(kind.String(), func(t *testing.T) {
			f := newFixture(t, musicStub{err: &musicgen.Error{Kind: kind}}, nil)
			resp, body := f.do(t, http.MethodPost, common.PathSongs, map[string]any{"mbti": "ESFJ"}, nil)
			assert.Equal(t, want, resp.StatusCode)
			assert.Equal(t, "failed", body["stage"])
			assert.Equal(t, kind.String(), body["error_kind"])
		})
	}
}

func TestCreateSong_Validation(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	for _, b := range []map[string]any{
		{},
		{"mbti": "INTJ", "joy": 101},
		{"mbti": "INTJ", "callback_url": "not a url"},
	} {
		resp, _ := f.do(t, http.MethodPost, common.PathSongs, b, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %v", b)
	}
}

func TestCreateSong_Async(t *testing.T) {
	f := newFixture(t, musicStub{asset: okAsset}, nil)
	q := jobs.NewQueue(discardLogger(), 4, 1)
	require.NoError(t, q.Start(context.Background(), f.svc.Processor))
	t.Cleanup(func() { q.Shutdown(time.Second) })
	f.svc.Queue = q

	resp, body := f.do(t, http.MethodPost, common.PathSongs, map[string]any{"mbti": "INFP"},
		http.Header{common.HeaderPrefer: {"respond-async"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id, _ := body["job_id"].(string)
	require.True(t, util.IsID(id))
	assert.Equal(t, common.PathSongs+"/"+id, body["status_url"])

	require.Eventually(t, func() bool {
		_, b := f.do(t, http.MethodGet, body["status_url"].(string), nil, nil)
		return b["stage"] == "completed"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCreateSong_AsyncWithoutQueue(t *testing.T) {
	f := newFixture(t, musicStub{asset: okAsset}, nil)
	resp, _ := f.do(t, http.MethodPost, common.PathSongs, map[string]any{"mbti": "INFP"},
		http.Header{common.HeaderPrefer: {"respond-async"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetSong_NotFound(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	resp, _ := f.do(t, http.MethodGet, common.PathSongs+"/"+util.NewID(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, common.PathSongs+"/not-an-id", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAudio(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	id := util.NewID()
	require.NoError(t, f.store.CreateJob(&jobs.Job{ID: id, Input: jobs.Input{Category: "ESTP"}, Stage: jobs.StageQueued, CreatedAt: fixedNow}))
	require.NoError(t, f.store.SaveLyrics(id, "la", "Neon/Run", "template"))

	p, err := f.svc.Audio.Path(id)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte("ID3-fake-mp3"), 0o600))
	require.NoError(t, f.store.SaveResult(id, okAsset, p, 12, fixedNow))

	resp, err := http.Get(f.srv.URL + common.PathSongs + "/" + id + "/audio")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, common.ContentTypeMPEG, resp.Header.Get("Content-Type"))
	assert.Equal(t, "12", resp.Header.Get("Content-Length"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="NeonRun.mp3"`)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ID3-fake-mp3", string(b))

	_, body := f.do(t, http.MethodGet, common.PathSongs+"/"+id, nil, nil)
	assert.Equal(t, common.PathSongs+"/"+id+"/audio", body["result"].(map[string]any)["audio_url"])
}

func TestGetAudio_NotStored(t *testing.T) {
	f := newFixture(t, musicStub{asset: okAsset}, nil)
	_, body := f.do(t, http.MethodPost, common.PathSongs, map[string]any{"mbti": "ISFP"}, nil)
	resp, _ := f.do(t, http.MethodGet, common.PathSongs+"/"+body["job_id"].(string)+"/audio", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func submission() map[string]any {
	return map[string]any{
		"user_id":       "u1",
		"mbti":          "infj",
		"keywords":      []string{"sea", "night"},
		"joy":           30,
		"energy":        20,
		"personal_line": "tired",
		"satisfaction":  4,
		"mbti_match":    true,
		"would_return":  true,
		"lyrics":        "a\nb\nc",
		"vocal_gender":  "female",
		"survey": map[string]any{
			"bo_exhaust": 5, "bo_cynicism": 4, "bo_burden": 4,
			"bo_anger": 3, "bo_fatigue": 5, "bo_sleep": 4,
		},
		"session": map[string]any{
			"id": "s1", "started_at": fixedNow.Add(-90 * time.Second), "visit_count": 2,
			"button_clicks": 3, "played": true,
		},
	}
}

func TestRecordEngagement(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	resp, body := f.do(t, http.MethodPost, common.PathEngagement, submission(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 25, body["burnout_score"])
	assert.Equal(t, "high", body["burnout_level"])
	assert.NotEmpty(t, body["feedback"])

	recs := f.rec.all()
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, "INFJ", r.MBTI)
	assert.Equal(t, 90, r.PageViewTime)
	assert.Equal(t, 3, r.LyricsLines)
	assert.True(t, r.Revisit)
	assert.True(t, r.Played)
	assert.False(t, r.Sharing)
}

func TestRecordEngagement_Invalid(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	sub := submission()
	sub["satisfaction"] = 9
	resp, _ := f.do(t, http.MethodPost, common.PathEngagement, sub, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, f.rec.all())
}

func TestRecordEngagement_StoreFailure(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	f.rec.err = errors.New("sheets down")
	resp, body := f.do(t, http.MethodPost, common.PathEngagement, submission(), nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestShare(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	req := submission()
	req["audio_url"] = "https://cdn/s.mp3"
	req["title"] = "Tide"
	resp, body := f.do(t, http.MethodPost, common.PathShare, req, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	link := body["share_url"].(string)
	assert.True(t, strings.HasPrefix(link, "https://share.example?"))
	assert.Contains(t, link, "ref=u1")
	assert.Contains(t, link, "title=Tide")
	assert.Equal(t, true, body["session"].(map[string]any)["sharing"])

	recs := f.rec.all()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Sharing)
}

func TestSessionEvents(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)

	resp, body := f.do(t, http.MethodPost, common.PathSession, map[string]any{
		"session": map[string]any{"id": "s1", "download_clicks": 1},
		"event":   "download", "audio_size_bytes": 4096,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := body["session"].(map[string]any)
	assert.Equal(t, true, sess["downloaded"])
	assert.EqualValues(t, 2, sess["download_clicks"])
	assert.EqualValues(t, 4096, sess["audio_size_bytes"])

	_, body = f.do(t, http.MethodPost, common.PathSession, map[string]any{
		"session": map[string]any{"id": "s2"},
		"stored":  map[string]any{"id": "s1", "visit_count": 3, "played": true},
		"event":   "visit",
	}, nil)
	sess = body["session"].(map[string]any)
	assert.Equal(t, "s2", sess["id"])
	assert.EqualValues(t, 4, sess["visit_count"])
	assert.Equal(t, true, sess["played"])

	resp, _ = f.do(t, http.MethodPost, common.PathSession, map[string]any{"event": "dance"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	f := newFixture(t, musicStub{}, nil)
	f.do(t, http.MethodGet, common.PathSongs+"/"+util.NewID(), nil, nil)

	resp, err := http.Get(f.srv.URL + common.PathMetrics)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), `mbtisong_http_requests_total{code="404",method="GET",route="/v1/songs/{id}"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(musicgen.ErrPollTimeout))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}
