// Package style maps an MBTI category to the musical style used for lyrics
// prompts and music generation requests.
package style

// Style is the genre and tempo suggested for a category.
type Style struct {
	Genre string `json:"genre"`
	Tempo int    `json:"tempo"`
}

// Hints extends Style with instrument and mood tags for the music prompt.
type Hints struct {
	Genre       string   `json:"genre"`
	BPM         int      `json:"bpm"`
	Instruments []string `json:"instruments"`
	Mood        []string `json:"mood"`
}

// Default is returned by Lookup for unknown categories.
var Default = Style{Genre: "pop", Tempo: 100}

var categories = []string{
	"INTJ", "INTP", "ENTJ", "ENTP",
	"INFJ", "INFP", "ENFJ", "ENFP",
	"ISTJ", "ISFJ", "ESTJ", "ESFJ",
	"ISTP", "ISFP", "ESTP", "ESFP",
}

var styles = map[string]Style{
	"INFP": {"indie folk", 72},
	"INFJ": {"neo-classical", 68},
	"ENFP": {"funk pop", 114},
	"ENTP": {"alternative rock", 120},
	"INTJ": {"cinematic electronic", 92},
	"INTP": {"ambient techno", 88},
	"ENTJ": {"orchestral rock", 108},
	"ENFJ": {"soul R&B", 96},
	"ISTJ": {"classic jazz", 82},
	"ISFJ": {"acoustic ballad", 76},
	"ESTJ": {"hard rock", 124},
	"ESFJ": {"retro city pop", 110},
	"ISTP": {"lofi hip hop", 90},
	"ISFP": {"dream pop", 92},
	"ESTP": {"EDM house", 126},
	"ESFP": {"latin pop", 120},
}

type tags struct {
	instruments []string
	mood        []string
}

var defaultTags = tags{instruments: []string{"piano", "pad"}, mood: []string{"balanced"}}

var audioTags = map[string]tags{
	"INFP": {[]string{"soft piano", "warm pad", "vinyl hiss"}, []string{"intimate", "nostalgic"}},
	"INFJ": {[]string{"piano", "strings"}, []string{"warm", "reflective"}},
	"ENFP": {[]string{"acoustic guitar", "shaker"}, []string{"bright", "uplifting"}},
	"ENTP": {[]string{"clean electric guitar", "synth lead"}, []string{"playful", "energetic"}},
	"INTJ": {[]string{"minimal synth", "sub bass"}, []string{"focused", "cinematic"}},
	"INTP": {[]string{"ambient pad", "plucks"}, []string{"airy", "thoughtful"}},
	"ENTJ": {[]string{"cinematic drums", "piano"}, []string{"confident", "grand"}},
	"ENFJ": {[]string{"soft keys", "light percussion"}, []string{"gentle", "hopeful"}},
	"ISTJ": {[]string{"acoustic guitar", "upright bass"}, []string{"steady", "calm"}},
	"ISFJ": {[]string{"piano", "strings"}, []string{"comforting", "warm"}},
	"ESTJ": {[]string{"rock drums", "electric bass"}, []string{"driving", "bold"}},
	"ESFJ": {[]string{"city-pop keys", "funk bass"}, []string{"groovy", "friendly"}},
	"ISTP": {[]string{"lofi kit", "bass"}, []string{"chill", "cool"}},
	"ISFP": {[]string{"dreamy synth", "reverb guitar"}, []string{"tender", "dreamy"}},
	"ESTP": {[]string{"edm drums", "synth bass"}, []string{"energetic", "fun"}},
	"ESFP": {[]string{"dance kit", "plucky synth"}, []string{"party", "vivid"}},
}

// Lookup returns the style for category using an exact key match.
// Unknown categories get Default.
func Lookup(category string) Style {
	if s, ok := styles[category]; ok {
		return s
	}
	return Default
}

// HintsFor returns the style plus instrument and mood tags for category.
// Slices are copies; callers may modify them.
func HintsFor(category string) Hints {
	s := Lookup(category)
	t, ok := audioTags[category]
	if !ok {
		t = defaultTags
	}
	return Hints{
		Genre:       s.Genre,
		BPM:         s.Tempo,
		Instruments: append([]string(nil), t.instruments...),
		Mood:        append([]string(nil), t.mood...),
	}
}

// Categories lists the known categories in display order.
func Categories() []string {
	return append([]string(nil), categories...)
}

// Known reports whether category has a dedicated style entry.
func Known(category string) bool {
	_, ok := styles[category]
	return ok
}
