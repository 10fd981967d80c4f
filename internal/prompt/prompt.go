// Package prompt composes the text prompts sent to the lyrics model and the
// music generation provider.
package prompt

import (
	"fmt"
	"strings"

	"github.com/jo-hoe/mbtisong/internal/style"
)

// NoneMarker stands in for empty keyword lists and blank notes.
const NoneMarker = "none"

// SafetyFooter is appended to every lyrics prompt.
const SafetyFooter = "- Forbidden: aggressive, hateful or discriminatory expressions; real names of specific people."

// ReasoningLabel is the heading the model is asked to put before its explanation.
const ReasoningLabel = "Reasoning:"

// Input holds the user attributes a lyrics prompt is built from.
type Input struct {
	Category string   `json:"mbti"`
	Keywords []string `json:"keywords"`
	Note     string   `json:"personal_line"`
	Joy      int      `json:"joy"`
	Energy   int      `json:"energy"`
}

// Lyrics builds the lyrics prompt for in. It is deterministic and never fails.
func Lyrics(in Input) string {
	s := style.Lookup(in.Category)
	var b strings.Builder
	b.WriteString("Context: You are a personal lyricist.\n\n")
	b.WriteString("Task: Write **complete song lyrics** based on the conditions below.\n")
	fmt.Fprintf(&b, "- MBTI: %s. The lyrics must suit a person with this MBTI type.\n", in.Category)
	fmt.Fprintf(&b, "- Mood/Genre: %s / BPM: %d\n", s.Genre, s.Tempo)
	fmt.Fprintf(&b, "- Keywords to include: %s.\n", keywordList(in.Keywords, NoneMarker))
	fmt.Fprintf(&b, "- User's mood today: %s. The lyrics must reflect it.\n", noteOr(in.Note, NoneMarker))
	fmt.Fprintf(&b, "- Emotional intensity: joy %d%%, energy %d%%\n", clampPercent(in.Joy), clampPercent(in.Energy))
	b.WriteString(SafetyFooter + "\n\n")
	b.WriteString("Format:\n")
	fmt.Fprintf(&b, "1. Title (e.g. \"A cool summer night's reverie for %s\")\n", in.Category)
	b.WriteString("2. (Verse 1) ... lyrics ...\n")
	b.WriteString("3. (Chorus) ... lyrics ...\n")
	b.WriteString("4. (Verse 2) ... lyrics ...\n")
	b.WriteString("5. (Bridge) ... lyrics ...\n")
	b.WriteString("6. (Outro) ... lyrics ...\n\n")
	fmt.Fprintf(&b, "Finally, write a two-line paragraph headed %q.\n\n", ReasoningLabel)
	b.WriteString("Output: Follow the format above exactly.")
	return b.String()
}

// Fallback returns template lyrics used when no model is available.
func Fallback(in Input) string {
	k := keywordList(in.Keywords, "today")
	memo := noteOr(in.Note, "I wrote down how I feel")
	lines := []string{
		fmt.Sprintf("Cold on the outside, quietly warming within, a night for %s", in.Category),
		fmt.Sprintf("The word %s drifts by the window", k),
		"I walk in silence but my steps keep a small rhythm",
		"When I think of you my heartbeat falls in line",
		fmt.Sprintf("Even when the thermometer of joy %d%% and energy %d%% shakes", clampPercent(in.Joy), clampPercent(in.Energy)),
		"I finally reach out and switch on the light",
		fmt.Sprintf("I tuck a note that says %s into my chest pocket", memo),
		"Hoping tomorrow's me will hold today's me",
	}
	return strings.Join(lines, "\n")
}

func keywordList(keywords []string, empty string) string {
	kept := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kept = append(kept, k)
		}
	}
	if len(kept) == 0 {
		return empty
	}
	return strings.Join(kept, ", ")
}

func noteOr(note, empty string) string {
	if n := strings.TrimSpace(note); n != "" {
		return n
	}
	return empty
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
