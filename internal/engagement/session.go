package engagement

import (
	"time"

	"github.com/jo-hoe/mbtisong/internal/util"
)

// Session carries the per-visitor counters the client sends back with every
// request. Methods never modify the receiver; they return the updated value.
type Session struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	VisitCount     int       `json:"visit_count"`
	ButtonClicks   int       `json:"button_clicks"`
	DownloadClicks int       `json:"download_clicks"`
	Played         bool      `json:"played"`
	Downloaded     bool      `json:"downloaded"`
	Sharing        bool      `json:"sharing"`
	AudioSizeBytes int64     `json:"audio_size_bytes"`
}

// NewSession starts a first visit at now.
func NewSession(now time.Time) Session {
	return Session{ID: util.NewID(), StartedAt: now, VisitCount: 1}
}

// Normalize fills a missing id, start time or visit count.
func (s Session) Normalize(now time.Time) Session {
	if s.ID == "" {
		s.ID = util.NewID()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	if s.VisitCount < 1 {
		s.VisitCount = 1
	}
	return s
}

func (s Session) Visit() Session {
	s.VisitCount++
	return s
}

func (s Session) Click() Session {
	s.ButtonClicks++
	return s
}

// Play marks the generated track as played.
func (s Session) Play() Session {
	s.Played = true
	return s
}

// ResetPlayed clears the played flag after new lyrics are written.
func (s Session) ResetPlayed() Session {
	s.Played = false
	return s
}

// Download records one download of size bytes.
func (s Session) Download(size int64) Session {
	s.Downloaded = true
	s.DownloadClicks++
	if size > s.AudioSizeBytes {
		s.AudioSizeBytes = size
	}
	return s
}

func (s Session) Share() Session {
	s.Sharing = true
	return s
}

// Revisit reports whether this is not the first visit.
func (s Session) Revisit() bool { return s.VisitCount > 1 }

// PageViewSeconds is the whole seconds between the session start and now.
func (s Session) PageViewSeconds(now time.Time) int {
	if s.StartedAt.IsZero() || now.Before(s.StartedAt) {
		return 0
	}
	return int(now.Sub(s.StartedAt) / time.Second)
}

// Merge combines two views of the same session: earliest start, largest
// counters and audio size, flags OR-ed. The receiver's id wins when set.
func (s Session) Merge(o Session) Session {
	out := s
	if out.ID == "" {
		out.ID = o.ID
	}
	if out.StartedAt.IsZero() || (!o.StartedAt.IsZero() && o.StartedAt.Before(out.StartedAt)) {
		out.StartedAt = o.StartedAt
	}
	out.VisitCount = max(s.VisitCount, o.VisitCount)
	out.ButtonClicks = max(s.ButtonClicks, o.ButtonClicks)
	out.DownloadClicks = max(s.DownloadClicks, o.DownloadClicks)
	out.Played = s.Played || o.Played
	out.Downloaded = s.Downloaded || o.Downloaded
	out.Sharing = s.Sharing || o.Sharing
	out.AudioSizeBytes = max(s.AudioSizeBytes, o.AudioSizeBytes)
	return out
}
