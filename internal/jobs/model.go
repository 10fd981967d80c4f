package jobs

import (
	"errors"
	"time"

	"github.com/jo-hoe/mbtisong/internal/musicgen"
)

// Stage is the lifecycle stage of a song job.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageWriting   Stage = "writing"
	StageComposing Stage = "composing"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// Terminal reports whether no worker will touch the job again.
func (s Stage) Terminal() bool { return s == StageCompleted || s == StageFailed }

// Input is what the caller asked for.
type Input struct {
	UserID   string   `json:"user_id,omitempty"`
	Category string   `json:"mbti"`
	Keywords []string `json:"keywords,omitempty"`
	Note     string   `json:"personal_line,omitempty"`
	Joy      int      `json:"joy"`
	Energy   int      `json:"energy"`
	Vocal    string   `json:"vocal_gender,omitempty"`
	Title    string   `json:"title,omitempty"`  // title hint
	Lyrics   string   `json:"lyrics,omitempty"` // skips the writing stage when set
}

// Job is one song generation request and its outcome.
type Job struct {
	ID           string
	Input        Input
	Stage        Stage
	CallbackURL  *string
	Lyrics       string
	Title        string
	LyricsSource string // model|template|caller
	Asset        musicgen.AssetResult
	AudioPath    string
	AudioSize    int64
	ErrorKind    *string
	ErrorMessage *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

var ErrNotFound = errors.New("job not found")

// Store persists jobs and their lifecycle.
type Store interface {
	CreateJob(job *Job) error
	UpdateStage(id string, stage Stage, startedAt *time.Time) error
	SaveLyrics(id, lyrics, title, source string) error
	SaveResult(id string, asset musicgen.AssetResult, audioPath string, audioSize int64, completedAt time.Time) error
	SaveError(id, kind, msg string, completedAt time.Time) error
	GetJob(id string) (*Job, error)
}
