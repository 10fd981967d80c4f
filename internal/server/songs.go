package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jo-hoe/mbtisong/internal/common"
	"github.com/jo-hoe/mbtisong/internal/jobs"
	"github.com/jo-hoe/mbtisong/internal/processor"
	"github.com/jo-hoe/mbtisong/internal/storage"
	"github.com/jo-hoe/mbtisong/internal/util"
)

type songRequest struct {
	jobs.Input
	CallbackURL string `json:"callback_url"`
}

type createResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

func (req songRequest) validate() error {
	if strings.TrimSpace(req.Category) == "" {
		return errors.New("mbti is required")
	}
	if req.Joy < 0 || req.Joy > 100 || req.Energy < 0 || req.Energy > 100 {
		return errors.New("joy and energy must be within 0..100")
	}
	return nil
}

func (svc *Service) handleCreateSong(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	req.Category = strings.ToUpper(strings.TrimSpace(req.Category))
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	callbackURL, err := parseOptionalURL(req.CallbackURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback_url")
		return
	}

	jobID := util.NewID()
	job := jobs.Job{
		ID:          jobID,
		Input:       req.Input,
		Stage:       jobs.StageQueued,
		CallbackURL: callbackURL,
		CreatedAt:   svc.Now(),
	}
	if err := svc.Store.CreateJob(&job); err != nil {
		svc.Log.Error("persist job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	svc.Log.Info("job created", "job_id", jobID, "mbti", req.Category)

	prefer := strings.ToLower(strings.TrimSpace(r.Header.Get(common.HeaderPrefer)))
	if strings.Contains(prefer, common.PreferRespondAsync) {
		if svc.Queue == nil {
			writeError(w, http.StatusServiceUnavailable, "async processing disabled")
			return
		}
		if err := svc.Queue.Enqueue(jobs.WorkItem{Job: job}); err != nil {
			svc.failUnqueued(jobID, err)
			writeError(w, http.StatusServiceUnavailable, "queue full, try later")
			return
		}
		svc.Log.Info("job enqueued", "job_id", jobID)
		writeJSON(w, http.StatusAccepted, createResponse{
			JobID:     jobID,
			StatusURL: path.Join(common.PathSongs, jobID),
		})
		return
	}

	procErr := svc.Processor.Process(r.Context(), jobs.WorkItem{Job: job})
	out, err := svc.Store.GetJob(jobID)
	if err != nil {
		svc.Log.Error("load job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if procErr != nil {
		svc.Log.Error("processing failed", "job_id", jobID, "error", procErr)
		writeJSON(w, statusFor(procErr), jobToOut(out))
		return
	}
	svc.Log.Info("job processed (sync)", "job_id", jobID)
	writeJSON(w, http.StatusOK, jobToOut(out))
}

func (svc *Service) failUnqueued(jobID string, err error) {
	if saveErr := svc.Store.SaveError(jobID, processor.ErrorKind(err), err.Error(), svc.Now()); saveErr != nil {
		svc.Log.Error("save job error", "job_id", jobID, "error", saveErr)
	}
}

func (svc *Service) handleGetSong(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !util.IsID(id) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	job, err := svc.Store.GetJob(id)
	if err != nil || job == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, jobToOut(job))
}

func (svc *Service) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if svc.Audio == nil || !util.IsID(id) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	job, err := svc.Store.GetJob(id)
	if err != nil || job == nil || job.AudioPath == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	f, size, err := svc.Audio.Open(id)
	if err != nil {
		if errors.Is(err, storage.ErrAudioMissing) {
			writeError(w, http.StatusNotFound, "audio not available")
			return
		}
		svc.Log.Error("open audio", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", common.ContentTypeMPEG)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(job)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		svc.Log.Warn("audio copy interrupted", "job_id", id, "error", err)
	}
}

func downloadName(job *jobs.Job) string {
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '/' || r == '\\' || r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(job.Title))
	if name == "" {
		name = job.Input.Category + "_song"
	}
	return name + ".mp3"
}

type songResult struct {
	StreamURL   string `json:"stream_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	AudioURL    string `json:"audio_url,omitempty"`
	AudioSize   int64  `json:"audio_size_bytes"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func jobToOut(job *jobs.Job) map[string]any {
	out := map[string]any{
		"job_id":        job.ID,
		"stage":         string(job.Stage),
		"mbti":          job.Input.Category,
		"title":         job.Title,
		"lyrics":        job.Lyrics,
		"lyrics_source": job.LyricsSource,
		"created_at":    job.CreatedAt,
		"started_at":    job.StartedAt,
		"completed_at":  job.CompletedAt,
	}
	if job.ErrorKind != nil {
		out["error_kind"] = *job.ErrorKind
		out["error"] = deref(job.ErrorMessage)
	}
	if job.Stage == jobs.StageCompleted {
		res := songResult{
			StreamURL:   job.Asset.StreamURL,
			DownloadURL: job.Asset.DownloadURL,
			CoverURL:    job.Asset.CoverURL,
			AudioSize:   job.AudioSize,
		}
		if job.AudioPath != "" {
			res.AudioURL = path.Join(common.PathSongs, job.ID, "audio")
		}
		out["result"] = res
	}
	return out
}
