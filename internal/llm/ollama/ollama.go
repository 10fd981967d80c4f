// Package ollama writes lyrics with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/prompt"
)

var _ llm.Writer = (*Writer)(nil)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	defaultTimeout = 120 * time.Second
)

type Settings struct {
	BaseURL     string
	Model       string
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

type Writer struct {
	client  *api.Client
	model   string
	options map[string]any
}

// New parses the base URL. The native API has no /v1 suffix, so one is
// stripped if present.
func New(s Settings) (*Writer, error) {
	base := strings.TrimSpace(s.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimSuffix(strings.TrimSuffix(base, "/"), "/v1")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url %q: %w", base, err)
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	model := s.Model
	if model == "" {
		model = DefaultModel
	}
	opts := map[string]any{}
	if s.Temperature > 0 {
		opts["temperature"] = s.Temperature
	}
	if s.TopP > 0 {
		opts["top_p"] = s.TopP
	}
	return &Writer{
		client:  api.NewClient(u, &http.Client{Timeout: timeout}),
		model:   model,
		options: opts,
	}, nil
}

func (w *Writer) WriteLyrics(ctx context.Context, in prompt.Input) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    w.model,
		Messages: []api.Message{{Role: "user", Content: prompt.Lyrics(in)}},
		Stream:   &stream,
		Options:  w.options,
	}
	var b strings.Builder
	err := w.client.Chat(ctx, req, func(r api.ChatResponse) error {
		b.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", llm.ErrEmptyCompletion
	}
	return out, nil
}
