package prompt

import (
	"fmt"
	"strings"

	"github.com/jo-hoe/mbtisong/internal/style"
)

// Vocal is the preferred lead vocal for a generated track.
type Vocal string

const (
	VocalAny    Vocal = "any"
	VocalMale   Vocal = "male"
	VocalFemale Vocal = "female"
)

// ParseVocal accepts English labels and the Korean labels used by the web form.
// Anything else maps to VocalAny.
func ParseVocal(s string) Vocal {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "남성":
		return VocalMale
	case "female", "f", "여성":
		return VocalFemale
	}
	return VocalAny
}

// Line renders the vocal preference for the music prompt.
func (v Vocal) Line() string {
	switch v {
	case VocalMale:
		return "Preferred Vocal: Male voice"
	case VocalFemale:
		return "Preferred Vocal: Female voice"
	}
	return "Preferred Vocal: Any voice"
}

// MusicInput is everything the music provider prompt is built from.
type MusicInput struct {
	Title    string
	Body     string
	Hints    style.Hints
	Keywords []string
	Joy      int
	Energy   int
	Vocal    Vocal
}

// Music builds the provider prompt: target style, structure, vocal and mixing
// guidance followed by the cleaned lyrics.
func Music(in MusicInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Song Title]\n%s\n\n", in.Title)
	b.WriteString("[Target Style]\n")
	fmt.Fprintf(&b, "Genre: %s\n", in.Hints.Genre)
	fmt.Fprintf(&b, "BPM: %d\n", in.Hints.BPM)
	fmt.Fprintf(&b, "Instruments: %s\n", strings.Join(in.Hints.Instruments, ", "))
	fmt.Fprintf(&b, "Mood: %s\n", strings.Join(in.Hints.Mood, ", "))
	fmt.Fprintf(&b, "Keywords: %s\n\n", keywordList(in.Keywords, NoneMarker))
	b.WriteString("→ Use the above Keywords not only in the lyrics but also to inspire the overall **mood, sound design, and arrangement** of the track.\n\n")
	fmt.Fprintf(&b, "Joy: %d%%, Energy: %d%%\n\n", clampPercent(in.Joy), clampPercent(in.Energy))
	b.WriteString("[Structure]\nKeep sections in singing flow (Verse/Chorus/Bridge/Outro).\n\n")
	fmt.Fprintf(&b, "[Vocal]\n%s; Pop/indie-friendly lead vocal; natural phrasing; light reverb.\n\n", in.Vocal.Line())
	b.WriteString("[Mixing]\nBalanced mix; vocal forward but not harsh. Let the Keywords influence the ambience and instrumentation.\n\n")
	fmt.Fprintf(&b, "[Lyrics]\n%s", in.Body)
	return strings.TrimSpace(b.String())
}
