package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jo-hoe/mbtisong/internal/engagement"
	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/lyrics"
	"github.com/jo-hoe/mbtisong/internal/musicgen"
	"github.com/jo-hoe/mbtisong/internal/prompt"
	"github.com/jo-hoe/mbtisong/internal/style"
)

func (svc *Service) handleListStyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": style.Categories()})
}

func (svc *Service) handleGetStyle(w http.ResponseWriter, r *http.Request) {
	category := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "category")))
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"known":    style.Known(category),
		"style":    style.Lookup(category),
		"hints":    style.HintsFor(category),
	})
}

type lyricsRequest struct {
	prompt.Input
	Session engagement.Session `json:"session"`
}

type lyricsResponse struct {
	Lyrics  string             `json:"lyrics"`
	Title   string             `json:"title"`
	Body    string             `json:"body"`
	Source  llm.Source         `json:"source"`
	Session engagement.Session `json:"session"`
}

func (svc *Service) handleWriteLyrics(w http.ResponseWriter, r *http.Request) {
	var req lyricsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	req.Category = strings.ToUpper(strings.TrimSpace(req.Category))
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "mbti is required")
		return
	}
	res := llm.Write(r.Context(), svc.Writer, req.Input, svc.Log)
	if svc.Metrics != nil {
		svc.Metrics.LyricsWritten(string(res.Source))
	}
	_, body := lyrics.Extract(res.Text)
	writeJSON(w, http.StatusOK, lyricsResponse{
		Lyrics:  res.Text,
		Title:   musicgen.Title(musicgen.Song{Lyrics: res.Text, Category: req.Category}),
		Body:    body,
		Source:  res.Source,
		Session: req.Session.Normalize(svc.Now()).Click().ResetPlayed(),
	})
}

type sessionRequest struct {
	Session engagement.Session  `json:"session"`
	Stored  *engagement.Session `json:"stored,omitempty"`
	Event   string              `json:"event"` // visit|click|play|download|share
	Size    int64               `json:"audio_size_bytes,omitempty"`
}

var errUnknownEvent = errors.New("unknown session event")

func applyEvent(s engagement.Session, event string, size int64) (engagement.Session, error) {
	switch event {
	case "visit":
		return s.Visit(), nil
	case "click":
		return s.Click(), nil
	case "play":
		return s.Play(), nil
	case "download":
		return s.Download(size), nil
	case "share":
		return s.Share(), nil
	default:
		return s, errUnknownEvent
	}
}

// handleSessionEvent folds one client event into the session. A stored copy
// from an earlier visit is merged first.
func (svc *Service) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	now := svc.Now()
	sess := req.Session
	if req.Stored != nil {
		sess = sess.Merge(*req.Stored)
	}
	sess, err := applyEvent(sess.Normalize(now), strings.ToLower(strings.TrimSpace(req.Event)), req.Size)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

type engagementRequest struct {
	engagement.Submission
	Session engagement.Session `json:"session"`
}

type engagementResponse struct {
	BurnoutScore int                `json:"burnout_score"`
	BurnoutLevel engagement.Level   `json:"burnout_level"`
	Feedback     string             `json:"feedback"`
	Session      engagement.Session `json:"session"`
}

func (svc *Service) handleRecordEngagement(w http.ResponseWriter, r *http.Request) {
	var req engagementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	sess, ok := svc.record(w, r, req.Submission, req.Session)
	if !ok {
		return
	}
	level := req.Survey.Level()
	writeJSON(w, http.StatusCreated, engagementResponse{
		BurnoutScore: req.Survey.Score(),
		BurnoutLevel: level,
		Feedback:     engagement.Feedback(level),
		Session:      sess,
	})
}

type shareRequest struct {
	engagement.Submission
	Session  engagement.Session `json:"session"`
	AudioURL string             `json:"audio_url"`
	CoverURL string             `json:"cover_url"`
	Title    string             `json:"title"`
}

func (svc *Service) handleShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	sess, ok := svc.record(w, r, req.Submission, req.Session.Share())
	if !ok {
		return
	}
	link := engagement.ShareLink(svc.Cfg.Share.BaseURL, engagement.ShareParams{
		UserID:   req.UserID,
		AudioURL: req.AudioURL,
		CoverURL: req.CoverURL,
		Title:    req.Title,
		MBTI:     req.MBTI,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"share_url": link, "session": sess})
}

// record validates sub and appends it. It writes the error response itself
// and reports whether the caller should continue.
func (svc *Service) record(w http.ResponseWriter, r *http.Request, sub engagement.Submission, sess engagement.Session) (engagement.Session, bool) {
	sub.MBTI = strings.ToUpper(strings.TrimSpace(sub.MBTI))
	if err := sub.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return sess, false
	}
	if svc.Recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "engagement store not configured")
		return sess, false
	}
	now := svc.Now()
	sess = sess.Normalize(now)
	err := svc.Recorder.Record(r.Context(), engagement.Build(sub, sess, now))
	if svc.Metrics != nil {
		svc.Metrics.EngagementRecorded(err == nil)
	}
	if err != nil {
		svc.Log.Error("record engagement", "user_id", sub.UserID, "error", err)
		writeError(w, http.StatusBadGateway, "engagement store unavailable")
		return sess, false
	}
	return sess, true
}
