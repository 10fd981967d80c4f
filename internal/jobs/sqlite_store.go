package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jo-hoe/mbtisong/internal/musicgen"
)

var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the song_jobs table on db if missing. The caller owns db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS song_jobs (
		id TEXT PRIMARY KEY,
		input_json TEXT NOT NULL,
		stage TEXT NOT NULL,
		callback_url TEXT,
		lyrics TEXT,
		title TEXT,
		lyrics_source TEXT,
		stream_url TEXT,
		download_url TEXT,
		cover_url TEXT,
		audio_path TEXT,
		audio_size INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT,
		error_message TEXT,
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (s *SQLiteStore) CreateJob(job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job.ID is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Stage == "" {
		job.Stage = StageQueued
	}
	in, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	var cb *string
	if job.CallbackURL != nil && *job.CallbackURL != "" {
		cb = job.CallbackURL
	}
	_, err = s.db.Exec(
		`INSERT INTO song_jobs (id, input_json, stage, callback_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, string(in), string(job.Stage), cb, formatTime(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateStage(id string, stage Stage, startedAt *time.Time) error {
	var err error
	if startedAt != nil {
		_, err = s.db.Exec(`UPDATE song_jobs SET stage = ?, started_at = ? WHERE id = ?`, string(stage), formatTime(*startedAt), id)
	} else {
		_, err = s.db.Exec(`UPDATE song_jobs SET stage = ? WHERE id = ?`, string(stage), id)
	}
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveLyrics(id, lyrics, title, source string) error {
	_, err := s.db.Exec(`UPDATE song_jobs SET lyrics = ?, title = ?, lyrics_source = ? WHERE id = ?`, lyrics, title, source, id)
	if err != nil {
		return fmt.Errorf("save lyrics: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveResult(id string, asset musicgen.AssetResult, audioPath string, audioSize int64, completedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE song_jobs
		SET stream_url = ?, download_url = ?, cover_url = ?, audio_path = ?, audio_size = ?,
			stage = ?, error_kind = NULL, error_message = NULL, completed_at = ?
		WHERE id = ?`,
		asset.StreamURL, asset.DownloadURL, asset.CoverURL, audioPath, audioSize,
		string(StageCompleted), formatTime(completedAt), id,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveError(id, kind, msg string, completedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE song_jobs
		SET error_kind = ?, error_message = ?, stage = ?, completed_at = ?
		WHERE id = ?`,
		kind, msg, string(StageFailed), formatTime(completedAt), id,
	)
	if err != nil {
		return fmt.Errorf("save error: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT id, input_json, stage, callback_url, lyrics, title, lyrics_source,
		stream_url, download_url, cover_url, audio_path, audio_size, error_kind, error_message,
		created_at, started_at, completed_at
		FROM song_jobs WHERE id = ?`, id)

	var (
		job                                Job
		in, stage                          string
		cb, lyrics, title, source          sql.NullString
		stream, download, cover, audioPath sql.NullString
		errKind, errMsg                    sql.NullString
		created, started, completed        sql.NullString
	)
	if err := row.Scan(
		&job.ID, &in, &stage, &cb, &lyrics, &title, &source,
		&stream, &download, &cover, &audioPath, &job.AudioSize, &errKind, &errMsg,
		&created, &started, &completed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if err := json.Unmarshal([]byte(in), &job.Input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	job.Stage = Stage(stage)
	job.CallbackURL = nullable(cb)
	job.Lyrics = lyrics.String
	job.Title = title.String
	job.LyricsSource = source.String
	job.Asset = musicgen.AssetResult{StreamURL: stream.String, DownloadURL: download.String, CoverURL: cover.String}
	job.AudioPath = audioPath.String
	job.ErrorKind = nullable(errKind)
	job.ErrorMessage = nullable(errMsg)
	if t, ok := parseTime(created); ok {
		job.CreatedAt = t
	}
	if t, ok := parseTime(started); ok {
		job.StartedAt = &t
	}
	if t, ok := parseTime(completed); ok {
		job.CompletedAt = &t
	}
	return &job, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func parseTime(ns sql.NullString) (time.Time, bool) {
	if !ns.Valid {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	return t, err == nil
}
