package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/prompt"
)

func TestWriteLyrics(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"1. Title: Dawn"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	w, err := New(Settings{BaseURL: srv.URL + "/v1", Temperature: 0.8})
	require.NoError(t, err)

	in := prompt.Input{Category: "ISTJ"}
	out, err := w.WriteLyrics(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "1. Title: Dawn", out)

	assert.Equal(t, DefaultModel, req["model"])
	assert.Equal(t, false, req["stream"])
	msgs := req["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, prompt.Lyrics(in), msgs[0].(map[string]any)["content"])
	opts := req["options"].(map[string]any)
	assert.InDelta(t, 0.8, opts["temperature"], 0.001)
}

func TestWriteLyricsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"  "},"done":true}` + "\n"))
	}))
	defer srv.Close()

	w, err := New(Settings{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = w.WriteLyrics(context.Background(), prompt.Input{})
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}

func TestWriteLyricsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer srv.Close()

	w, err := New(Settings{BaseURL: srv.URL, Model: "x"})
	require.NoError(t, err)
	_, err = w.WriteLyrics(context.Background(), prompt.Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama chat")
}
