package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/mbtisong/internal/common"
	"github.com/jo-hoe/mbtisong/internal/jobs"
	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/musicgen"
	"github.com/jo-hoe/mbtisong/internal/prompt"
)

// SourceCaller marks lyrics supplied with the request.
const SourceCaller = "caller"

// Generator turns lyrics into a playable asset.
type Generator interface {
	Generate(ctx context.Context, song musicgen.Song) (musicgen.AssetResult, error)
}

// Downloader stores the finished track locally.
type Downloader interface {
	Fetch(ctx context.Context, jobID, url string) (string, int64, error)
}

// LyricsObserver is told where each job's lyrics came from.
type LyricsObserver interface {
	LyricsWritten(source string)
}

// Options are the optional collaborators and callback tuning.
type Options struct {
	Audio           Downloader
	Observer        LyricsObserver
	CallbackRetries int
	CallbackBackoff time.Duration
	HTTPClient      *http.Client
}

// Worker implements jobs.Processor: lyrics, then music, then the optional
// download and callback.
type Worker struct {
	log     *slog.Logger
	store   jobs.Store
	writer  llm.Writer
	music   Generator
	audio   Downloader
	obs     LyricsObserver
	retries int
	backoff time.Duration
	http    *http.Client
}

var _ jobs.Processor = (*Worker)(nil)

// New wires a worker. A nil writer means template lyrics only.
func New(log *slog.Logger, store jobs.Store, writer llm.Writer, music Generator, opts Options) *Worker {
	w := &Worker{
		log:     log,
		store:   store,
		writer:  writer,
		music:   music,
		audio:   opts.Audio,
		obs:     opts.Observer,
		retries: opts.CallbackRetries,
		backoff: opts.CallbackBackoff,
		http:    opts.HTTPClient,
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	if w.retries <= 0 {
		w.retries = 3
	}
	if w.backoff <= 0 {
		w.backoff = 2 * time.Second
	}
	if w.http == nil {
		w.http = &http.Client{Timeout: 15 * time.Second}
	}
	return w
}

func (w *Worker) Process(ctx context.Context, item jobs.WorkItem) error {
	job := item.Job
	log := w.log.With("job_id", job.ID)
	now := time.Now().UTC()
	if err := w.store.UpdateStage(job.ID, jobs.StageWriting, &now); err != nil {
		return fmt.Errorf("update stage to writing: %w", err)
	}

	text, source := w.lyrics(ctx, job.Input, log)
	song := musicgen.Song{
		Lyrics:    text,
		Category:  job.Input.Category,
		TitleHint: job.Input.Title,
		Vocal:     prompt.ParseVocal(job.Input.Vocal),
		Keywords:  job.Input.Keywords,
		Joy:       job.Input.Joy,
		Energy:    job.Input.Energy,
	}
	title := musicgen.Title(song)
	if err := w.store.SaveLyrics(job.ID, text, title, source); err != nil {
		w.fail(ctx, job, fmt.Errorf("save lyrics: %w", err))
		return err
	}

	if err := w.store.UpdateStage(job.ID, jobs.StageComposing, nil); err != nil {
		w.fail(ctx, job, fmt.Errorf("update stage to composing: %w", err))
		return err
	}
	asset, err := w.music.Generate(ctx, song)
	if err != nil {
		w.fail(ctx, job, err)
		return err
	}

	var audioPath string
	var audioSize int64
	if w.audio != nil && asset.DownloadURL != "" {
		audioPath, audioSize, err = w.audio.Fetch(ctx, job.ID, asset.DownloadURL)
		if err != nil {
			log.Warn("audio download failed, serving remote url only", "err", err)
			audioPath, audioSize = "", 0
		}
	}

	log.Info("song ready", "title", title, "url", asset.PlaybackURL(), "audio_bytes", audioSize)
	done := time.Now().UTC()
	if err := w.store.SaveResult(job.ID, asset, audioPath, audioSize, done); err != nil {
		err = fmt.Errorf("save result: %w", err)
		w.fail(ctx, job, err)
		return err
	}

	if job.CallbackURL != nil && *job.CallbackURL != "" {
		cbErr := w.sendCallbackWithRetry(ctx, *job.CallbackURL, callbackPayload{
			JobID:  job.ID,
			Status: common.StatusCompleted,
			Stage:  string(jobs.StageCompleted),
			Result: &callbackResult{
				Title:       title,
				StreamURL:   asset.StreamURL,
				DownloadURL: asset.DownloadURL,
				CoverURL:    asset.CoverURL,
				AudioSize:   audioSize,
			},
		})
		if cbErr != nil {
			log.Warn("callback failed after retries", "err", cbErr)
		}
	}
	return nil
}

func (w *Worker) lyrics(ctx context.Context, in jobs.Input, log *slog.Logger) (string, string) {
	if in.Lyrics != "" {
		w.observe(SourceCaller)
		return in.Lyrics, SourceCaller
	}
	res := llm.Write(ctx, w.writer, prompt.Input{
		Category: in.Category,
		Keywords: in.Keywords,
		Note:     in.Note,
		Joy:      in.Joy,
		Energy:   in.Energy,
	}, log)
	w.observe(string(res.Source))
	return res.Text, string(res.Source)
}

func (w *Worker) observe(source string) {
	if w.obs != nil {
		w.obs.LyricsWritten(source)
	}
}

// ErrorKind names err for storage and API responses.
func ErrorKind(err error) string {
	if k := musicgen.KindOf(err); k != musicgen.KindNone {
		return k.String()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Canceled"
	}
	return "Internal"
}

func (w *Worker) fail(ctx context.Context, job jobs.Job, err error) {
	kind := ErrorKind(err)
	if saveErr := w.store.SaveError(job.ID, kind, err.Error(), time.Now().UTC()); saveErr != nil {
		w.log.Error("save job error", "job_id", job.ID, "err", saveErr)
	}
	if job.CallbackURL == nil || *job.CallbackURL == "" {
		return
	}
	msg := err.Error()
	cbErr := w.sendCallbackWithRetry(ctx, *job.CallbackURL, callbackPayload{
		JobID:     job.ID,
		Status:    common.StatusFailed,
		Stage:     string(jobs.StageFailed),
		ErrorKind: kind,
		Error:     &msg,
	})
	if cbErr != nil {
		w.log.Warn("callback failed after retries", "job_id", job.ID, "err", cbErr)
	}
}

type callbackPayload struct {
	JobID     string          `json:"job_id"`
	Status    string          `json:"status"` // completed|failed
	Stage     string          `json:"stage"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Error     *string         `json:"error,omitempty"`
	Result    *callbackResult `json:"result,omitempty"`
}

type callbackResult struct {
	Title       string `json:"title"`
	StreamURL   string `json:"stream_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	AudioSize   int64  `json:"audio_size_bytes"`
}

func (w *Worker) sendCallbackWithRetry(ctx context.Context, url string, payload callbackPayload) error {
	var lastErr error
	for attempt := 1; attempt <= w.retries; attempt++ {
		err := w.postJSON(ctx, url, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == w.retries {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * w.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
	return lastErr
}

func (w *Worker) postJSON(ctx context.Context, url string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", common.ContentTypeJSON)
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback status %d", resp.StatusCode)
	}
	return nil
}
