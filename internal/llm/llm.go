// Package llm defines the lyrics writer abstraction and the template fallback
// used when no model is configured or a model call fails.
package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jo-hoe/mbtisong/internal/prompt"
)

// Source tells callers where lyrics came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceTemplate Source = "template"
)

// Writer produces raw lyrics text for the given attributes.
type Writer interface {
	WriteLyrics(ctx context.Context, in prompt.Input) (string, error)
}

// Result is the outcome of Write. Err holds the model error that caused a
// fallback, if any.
type Result struct {
	Text   string
	Source Source
	Err    error
}

// Write asks w for lyrics and falls back to template lyrics when w is nil,
// fails, or returns blank text. It never returns empty text.
func Write(ctx context.Context, w Writer, in prompt.Input, log *slog.Logger) Result {
	if w == nil {
		return Result{Text: prompt.Fallback(in), Source: SourceTemplate}
	}
	text, err := w.WriteLyrics(ctx, in)
	if err == nil && strings.TrimSpace(text) != "" {
		return Result{Text: strings.TrimSpace(text), Source: SourceModel}
	}
	if err == nil {
		err = ErrEmptyCompletion
	}
	if log != nil {
		log.Warn("lyrics model failed, using template", "error", err, "mbti", in.Category)
	}
	return Result{Text: prompt.Fallback(in), Source: SourceTemplate, Err: err}
}
