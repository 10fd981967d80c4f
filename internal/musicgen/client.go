package musicgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jo-hoe/mbtisong/internal/lyrics"
	"github.com/jo-hoe/mbtisong/internal/prompt"
	"github.com/jo-hoe/mbtisong/internal/style"
)

const (
	DefaultModel        = "V4_5"
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 70
	MaxAttemptsLimit    = 1000
)

// API is the remote provider. Implementations perform exactly one HTTP
// exchange per call.
type API interface {
	Submit(ctx context.Context, token string, req GenerationRequest) (SubmitResponse, error)
	Status(ctx context.Context, token string, h JobHandle) (StatusResponse, error)
}

// Observer receives lifecycle events. A nil Observer is allowed.
type Observer interface {
	Submitted(ok bool)
	Polled(status JobStatus, miss bool)
	Finished(kind Kind, attempts int, elapsed time.Duration)
}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	Token        string
	Model        string
	CallbackURL  string
	PollInterval time.Duration
	MaxAttempts  int
	Logger       *slog.Logger
	Observer     Observer
}

// Client runs generation calls. It holds no per-call state and is safe for
// concurrent use.
type Client struct {
	api         API
	token       string
	model       string
	callbackURL string
	interval    time.Duration
	maxAttempts int
	log         *slog.Logger
	obs         Observer
}

func NewClient(api API, opts Options) *Client {
	c := &Client{
		api:         api,
		token:       strings.TrimSpace(opts.Token),
		model:       opts.Model,
		callbackURL: opts.CallbackURL,
		interval:    opts.PollInterval,
		maxAttempts: opts.MaxAttempts,
		log:         opts.Logger,
		obs:         opts.Observer,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.maxAttempts > MaxAttemptsLimit {
		c.maxAttempts = MaxAttemptsLimit
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Configured reports whether a token is present.
func (c *Client) Configured() bool { return c.token != "" }

// Run submits req once and polls until the task finishes, fails or the
// attempt budget is spent. Each attempt is preceded by one poll interval.
func (c *Client) Run(ctx context.Context, req GenerationRequest) (AssetResult, error) {
	start := time.Now()
	if !c.Configured() {
		c.finish(KindConfigurationMissing, 0, start)
		return AssetResult{}, &Error{Kind: KindConfigurationMissing}
	}

	st := NewState(c.maxAttempts)
	st = st.OnSubmit(c.api.Submit(ctx, c.token, req))
	if c.obs != nil {
		c.obs.Submitted(st.Phase == PhasePolling)
	}
	if st.Phase == PhaseFailed {
		c.log.Warn("music submission rejected", "error", st.Err)
		c.finish(st.Err.Kind, 0, start)
		return AssetResult{}, st.Err
	}

	log := c.log.With("task_id", st.Handle.ID)
	log.Info("music task submitted", "max_attempts", st.MaxAttempts, "interval", c.interval)
	for !st.Terminal() {
		if err := wait(ctx, c.interval); err != nil {
			c.finish(KindNone, st.Attempt, start)
			return AssetResult{}, fmt.Errorf("poll task %s: %w", st.Handle.ID, err)
		}
		resp, err := c.api.Status(ctx, c.token, st.Handle)
		if err != nil && ctx.Err() != nil {
			c.finish(KindNone, st.Attempt, start)
			return AssetResult{}, fmt.Errorf("poll task %s: %w", st.Handle.ID, ctx.Err())
		}
		st = st.OnPoll(resp, err)
		miss := err != nil || resp.HTTPStatus != 200
		if c.obs != nil {
			c.obs.Polled(st.Status, miss)
		}
		if miss {
			log.Debug("poll miss", "attempt", st.Attempt, "http_status", resp.HTTPStatus, "error", err)
		} else {
			log.Debug("poll", "attempt", st.Attempt, "status", st.Status.String())
		}
	}

	if st.Phase == PhaseSucceeded {
		log.Info("music task ready", "attempts", st.Attempt, "status", st.Status.String())
		c.finish(KindNone, st.Attempt, start)
		return st.Asset, nil
	}
	log.Warn("music task failed", "attempts", st.Attempt, "error", st.Err)
	c.finish(st.Err.Kind, st.Attempt, start)
	return AssetResult{}, st.Err
}

// Song is the caller-facing input to Generate.
type Song struct {
	Lyrics    string
	Category  string
	TitleHint string
	Vocal     prompt.Vocal
	Keywords  []string
	Joy       int
	Energy    int
}

// Request builds the provider request for song without any I/O.
func (c *Client) Request(song Song) GenerationRequest {
	extracted, body := lyrics.Extract(song.Lyrics)
	hints := style.HintsFor(song.Category)
	title := chooseTitle(song, extracted)

	return GenerationRequest{
		Model: c.model,
		Prompt: prompt.Music(prompt.MusicInput{
			Title:    title,
			Body:     body,
			Hints:    hints,
			Keywords: song.Keywords,
			Joy:      song.Joy,
			Energy:   song.Energy,
			Vocal:    song.Vocal,
		}),
		Title:        title,
		Tags:         hints.Genre,
		CustomMode:   true,
		Instrumental: false,
		CallbackURL:  c.callbackURL,
	}
}

// Title is the track title Request would submit for song: the hint, else
// the title found in the lyrics, else "<category> Song".
func Title(song Song) string {
	extracted, _ := lyrics.Extract(song.Lyrics)
	return chooseTitle(song, extracted)
}

func chooseTitle(song Song, extracted string) string {
	if t := strings.TrimSpace(song.TitleHint); t != "" {
		return t
	}
	if extracted != lyrics.Placeholder {
		return extracted
	}
	return strings.TrimSpace(song.Category + " Song")
}

// Generate turns finished lyrics into a playable asset.
func (c *Client) Generate(ctx context.Context, song Song) (AssetResult, error) {
	return c.Run(ctx, c.Request(song))
}

func (c *Client) finish(kind Kind, attempts int, start time.Time) {
	if c.obs != nil {
		c.obs.Finished(kind, attempts, time.Since(start))
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
