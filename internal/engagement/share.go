package engagement

import (
	"net/url"
	"strings"
)

// ShareParams are the optional parts of a share link.
type ShareParams struct {
	UserID   string
	AudioURL string
	CoverURL string
	Title    string
	MBTI     string
}

// ShareLink returns base with a ref parameter (the user id, or "anon")
// followed by whichever of audio, cover, title and mbti are set, in that
// order. Values are form-encoded except that ':' and '/' stay literal so
// embedded URLs remain readable.
func ShareLink(base string, p ShareParams) string {
	ref := strings.TrimSpace(p.UserID)
	if ref == "" {
		ref = "anon"
	}
	params := [][2]string{
		{"ref", ref},
		{"audio", p.AudioURL},
		{"cover", p.CoverURL},
		{"title", p.Title},
		{"mbti", p.MBTI},
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "?"))
	b.WriteByte('?')
	for i, kv := range params {
		if kv[1] == "" {
			continue
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(escapeKeepURL(kv[1]))
	}
	return b.String()
}

var urlSafe = strings.NewReplacer("%3A", ":", "%2F", "/")

func escapeKeepURL(s string) string {
	return urlSafe.Replace(url.QueryEscape(s))
}
