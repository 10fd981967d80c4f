// Package engagement builds and appends the per-session engagement record:
// user inputs, burnout survey, satisfaction feedback and interaction counters.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jo-hoe/mbtisong/internal/lyrics"
)

// Columns is the fixed column order of every appended row.
var Columns = []string{
	"timestamp", "user_id", "mbti", "keywords", "joy", "energy", "personal_line",
	"satisfaction", "mbti_match", "played", "lyrics_lines", "lyrics",
	"bo_exhaust", "bo_cynicism", "bo_burden", "bo_anger", "bo_fatigue", "bo_sleep",
	"burnout_score", "burnout_level",
	"would_return", "page_view_time", "button_clicks", "revisit", "sharing",
	"session_time", "downloaded", "download_clicks", "audio_size_bytes", "vocal_gender",
}

// Recorder appends records. Implementations must not retry on failure.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Record is one engagement row.
type Record struct {
	Timestamp      time.Time
	UserID         string
	MBTI           string
	Keywords       []string
	Joy            int
	Energy         int
	PersonalLine   string
	Satisfaction   int
	MBTIMatch      bool
	Played         bool
	LyricsLines    int
	Lyrics         string
	Survey         Survey
	BurnoutScore   int
	BurnoutLevel   Level
	WouldReturn    bool
	PageViewTime   int
	ButtonClicks   int
	Revisit        bool
	Sharing        bool
	SessionTime    string
	Downloaded     bool
	DownloadClicks int
	AudioSizeBytes int64
	VocalGender    string
}

// Row renders r in Columns order.
func (r Record) Row() []any {
	return []any{
		r.Timestamp.In(KST).Format(TimestampLayout),
		r.UserID,
		r.MBTI,
		strings.Join(r.Keywords, ","),
		r.Joy,
		r.Energy,
		r.PersonalLine,
		r.Satisfaction,
		r.MBTIMatch,
		r.Played,
		r.LyricsLines,
		r.Lyrics,
		r.Survey.Exhaust,
		r.Survey.Cynicism,
		r.Survey.Burden,
		r.Survey.Anger,
		r.Survey.Fatigue,
		r.Survey.Sleep,
		r.BurnoutScore,
		string(r.BurnoutLevel),
		r.WouldReturn,
		r.PageViewTime,
		r.ButtonClicks,
		r.Revisit,
		r.Sharing,
		r.SessionTime,
		r.Downloaded,
		r.DownloadClicks,
		r.AudioSizeBytes,
		r.VocalGender,
	}
}

// Submission is the feedback form a client posts.
type Submission struct {
	UserID       string   `json:"user_id"`
	MBTI         string   `json:"mbti"`
	Keywords     []string `json:"keywords"`
	Joy          int      `json:"joy"`
	Energy       int      `json:"energy"`
	PersonalLine string   `json:"personal_line"`
	Satisfaction int      `json:"satisfaction"`
	MBTIMatch    bool     `json:"mbti_match"`
	WouldReturn  bool     `json:"would_return"`
	Lyrics       string   `json:"lyrics"`
	VocalGender  string   `json:"vocal_gender"`
	Survey       Survey   `json:"survey"`
}

var ErrInvalidSubmission = errors.New("invalid engagement submission")

// Validate checks ranges: joy and energy 0..100, satisfaction 1..5 and the
// survey answers.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.MBTI) == "" {
		return fmt.Errorf("%w: mbti is required", ErrInvalidSubmission)
	}
	if s.Joy < 0 || s.Joy > 100 || s.Energy < 0 || s.Energy > 100 {
		return fmt.Errorf("%w: joy and energy must be within 0..100", ErrInvalidSubmission)
	}
	if s.Satisfaction < 1 || s.Satisfaction > 5 {
		return fmt.Errorf("%w: satisfaction must be within 1..5", ErrInvalidSubmission)
	}
	if err := s.Survey.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	return nil
}

// Build assembles the row for sub in the context of sess at now.
func Build(sub Submission, sess Session, now time.Time) Record {
	score := sub.Survey.Score()
	return Record{
		Timestamp:      now,
		UserID:         strings.TrimSpace(sub.UserID),
		MBTI:           sub.MBTI,
		Keywords:       sub.Keywords,
		Joy:            sub.Joy,
		Energy:         sub.Energy,
		PersonalLine:   strings.TrimSpace(sub.PersonalLine),
		Satisfaction:   sub.Satisfaction,
		MBTIMatch:      sub.MBTIMatch,
		Played:         sess.Played,
		LyricsLines:    lyrics.LineCount(sub.Lyrics),
		Lyrics:         sub.Lyrics,
		Survey:         sub.Survey,
		BurnoutScore:   score,
		BurnoutLevel:   LevelFor(score, MaxSurveyScore),
		WouldReturn:    sub.WouldReturn,
		PageViewTime:   sess.PageViewSeconds(now),
		ButtonClicks:   sess.ButtonClicks,
		Revisit:        sess.Revisit(),
		Sharing:        sess.Sharing,
		SessionTime:    SessionTime(now),
		Downloaded:     sess.Downloaded,
		DownloadClicks: sess.DownloadClicks,
		AudioSizeBytes: sess.AudioSizeBytes,
		VocalGender:    sub.VocalGender,
	}
}
