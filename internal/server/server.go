package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jo-hoe/mbtisong/internal/common"
	"github.com/jo-hoe/mbtisong/internal/config"
	"github.com/jo-hoe/mbtisong/internal/engagement"
	"github.com/jo-hoe/mbtisong/internal/jobs"
	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/metrics"
	"github.com/jo-hoe/mbtisong/internal/musicgen"
	"github.com/jo-hoe/mbtisong/internal/storage"
)

// Service bundles the collaborators the HTTP handlers need. Writer, Audio and
// Metrics are optional.
type Service struct {
	Log       *slog.Logger
	Cfg       *config.Config
	Store     jobs.Store
	Queue     *jobs.Queue
	Processor jobs.Processor
	Writer    llm.Writer
	Audio     *storage.AudioStore
	Recorder  engagement.Recorder
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// NewHTTPServer builds the http.Server with routes and middleware.
func NewHTTPServer(svc *Service) *http.Server {
	return &http.Server{
		Addr:         svc.Cfg.Server.Addr,
		Handler:      svc.Handler(),
		ReadTimeout:  svc.Cfg.Server.ReadTimeout,
		WriteTimeout: svc.Cfg.Server.WriteTimeout,
		IdleTimeout:  svc.Cfg.Server.IdleTimeout,
	}
}

// Handler returns the routed API.
func (svc *Service) Handler() http.Handler {
	if svc.Log == nil {
		svc.Log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	if svc.Now == nil {
		svc.Now = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, svc.logging)

	r.Get(common.PathHealthz, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if svc.Metrics != nil {
		r.Method(http.MethodGet, common.PathMetrics, svc.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(svc.withCommon)

		r.Get(common.PathStyles, svc.handleListStyles)
		r.Get(common.PathStyles+"/{category}", svc.handleGetStyle)
		r.Post(common.PathLyrics, svc.handleWriteLyrics)
		r.Post(common.PathSession, svc.handleSessionEvent)
		r.Post(common.PathEngagement, svc.handleRecordEngagement)
		r.Post(common.PathShare, svc.handleShare)

		r.Route(common.PathSongs, func(r chi.Router) {
			r.Post("/", svc.handleCreateSong)
			r.Get("/{id}", svc.handleGetSong)
			r.Get("/{id}/audio", svc.handleGetAudio)
		})
	})
	return r
}

func (svc *Service) withCommon(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := strings.TrimSpace(svc.Cfg.Server.APIKey); key != "" {
			if r.Header.Get(common.HeaderAPIKey) != key {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		if limit := safeInt64(svc.Cfg.Server.MaxBodySize); limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func (svc *Service) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if svc.Metrics != nil && route != common.PathMetrics {
			svc.Metrics.ObserveHTTP(route, r.Method, code, time.Since(start))
		}
		svc.Log.Info("http",
			"method", r.Method,
			"route", route,
			"status", code,
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// statusFor maps a generation failure to the HTTP status returned to callers.
func statusFor(err error) int {
	switch musicgen.KindOf(err) {
	case musicgen.KindPollTimeout:
		return http.StatusGatewayTimeout
	case musicgen.KindRemoteJobFailed, musicgen.KindSubmissionRejected:
		return http.StatusBadGateway
	case musicgen.KindConfigurationMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func safeInt64(u config.ByteSize) int64 {
	if u > config.ByteSize(math.MaxInt64) {
		return math.MaxInt64
	}
	return int64(u) // #nosec G115 - safe cast after explicit upper-bound check
}

func parseOptionalURL(s string) (*string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil, nil
	}
	if _, err := url.ParseRequestURI(v); err != nil {
		return nil, err
	}
	return &v, nil
}
