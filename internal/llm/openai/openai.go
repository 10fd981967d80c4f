// Package openai writes lyrics with an OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/prompt"
)

var _ llm.Writer = (*Writer)(nil)

const (
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Settings configures the writer. BaseURL may point at any compatible proxy.
type Settings struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

type Writer struct {
	client      *goopenai.Client
	model       string
	temperature float32
	topP        float32
}

// New returns a writer; an empty API key is an error.
func New(s Settings) (*Writer, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, llm.ErrNoCredential
	}
	cfg := goopenai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(s.BaseURL, "/")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	model := s.Model
	if model == "" {
		model = DefaultModel
	}
	return &Writer{
		client:      goopenai.NewClientWithConfig(cfg),
		model:       model,
		temperature: s.Temperature,
		topP:        s.TopP,
	}, nil
}

// WriteLyrics sends the lyric prompt as a single user message.
func (w *Writer) WriteLyrics(ctx context.Context, in prompt.Input) (string, error) {
	resp, err := w.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: w.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt.Lyrics(in)},
		},
		Temperature: w.temperature,
		TopP:        w.topP,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
