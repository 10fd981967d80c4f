package engagement

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var _ Recorder = (*SQLiteRecorder)(nil)

// SQLiteRecorder appends rows to the engagement_records table. It never
// updates or deletes.
type SQLiteRecorder struct {
	db     *sql.DB
	insert string
}

const engagementSchema = `
CREATE TABLE IF NOT EXISTS engagement_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	user_id TEXT,
	mbti TEXT NOT NULL,
	keywords TEXT,
	joy INTEGER,
	energy INTEGER,
	personal_line TEXT,
	satisfaction INTEGER,
	mbti_match INTEGER,
	played INTEGER,
	lyrics_lines INTEGER,
	lyrics TEXT,
	bo_exhaust INTEGER,
	bo_cynicism INTEGER,
	bo_burden INTEGER,
	bo_anger INTEGER,
	bo_fatigue INTEGER,
	bo_sleep INTEGER,
	burnout_score INTEGER,
	burnout_level TEXT,
	would_return INTEGER,
	page_view_time INTEGER,
	button_clicks INTEGER,
	revisit INTEGER,
	sharing INTEGER,
	session_time TEXT,
	downloaded INTEGER,
	download_clicks INTEGER,
	audio_size_bytes INTEGER,
	vocal_gender TEXT
);
`

// NewSQLiteRecorder creates the table if missing.
func NewSQLiteRecorder(db *sql.DB) (*SQLiteRecorder, error) {
	if _, err := db.Exec(engagementSchema); err != nil {
		return nil, fmt.Errorf("migrate engagement schema: %w", err)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	return &SQLiteRecorder{
		db:     db,
		insert: fmt.Sprintf(`INSERT INTO engagement_records (%s) VALUES (%s)`, strings.Join(Columns, ", "), placeholders),
	}, nil
}

func (s *SQLiteRecorder) Record(ctx context.Context, r Record) error {
	if _, err := s.db.ExecContext(ctx, s.insert, r.Row()...); err != nil {
		return fmt.Errorf("append engagement record: %w", err)
	}
	return nil
}
