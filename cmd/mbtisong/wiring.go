package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	appcfg "github.com/jo-hoe/mbtisong/internal/config"
	"github.com/jo-hoe/mbtisong/internal/engagement"
	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/llm/ollama"
	"github.com/jo-hoe/mbtisong/internal/llm/openai"
	"github.com/jo-hoe/mbtisong/internal/musicgen"
)

// newLogger writes text logs to w at the named level.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// newWriter returns nil for the template provider; llm.Write then uses
// template lyrics.
func newWriter(cfg appcfg.LyricsConfig, logger *slog.Logger) (llm.Writer, error) {
	switch cfg.Provider {
	case appcfg.ProviderOpenAI:
		w, err := openai.New(openai.Settings{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			TopP:        cfg.OpenAI.TopP,
			Timeout:     cfg.OpenAI.Timeout,
		})
		if err != nil {
			// a missing key degrades to template lyrics
			logger.Warn("openai lyrics writer disabled", "err", err)
			return nil, nil
		}
		return w, nil
	case appcfg.ProviderOllama:
		w, err := ollama.New(ollama.Settings{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Ollama.Temperature,
			TopP:        cfg.Ollama.TopP,
			Timeout:     cfg.Ollama.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init ollama writer: %w", err)
		}
		return w, nil
	default:
		return nil, nil
	}
}

func newMusicClient(cfg appcfg.MusicConfig, logger *slog.Logger, obs musicgen.Observer) *musicgen.Client {
	return musicgen.NewClient(musicgen.NewSunoAPI(cfg.BaseURL, nil), musicgen.Options{
		Token:        cfg.APIKey,
		Model:        cfg.Model,
		CallbackURL:  cfg.CallbackURL,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
		Logger:       logger,
		Observer:     obs,
	})
}

func newRecorder(ctx context.Context, cfg appcfg.RecorderConfig, db *sql.DB) (engagement.Recorder, error) {
	switch cfg.Backend {
	case appcfg.BackendSheets:
		return engagement.NewSheetsRecorder(ctx, engagement.SheetsSettings{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			SheetName:       cfg.Sheets.SheetName,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			Endpoint:        cfg.Sheets.Endpoint,
		})
	default:
		return engagement.NewSQLiteRecorder(db)
	}
}
