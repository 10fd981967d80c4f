// Package lyrics cleans model output into a song title and a lyric body.
package lyrics

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Placeholder is the title used when none can be recovered from the text.
const Placeholder = "Untitled"

const (
	minTitleLen = 3
	maxTitleLen = 60
)

var (
	reTitle = regexp.MustCompile(`(?mi)^\s*1\.\s*(?:노래\s*제목|song\s*title|title)\s*[:：]?\s*(.+)$`)
	// Everything from the explanation heading onwards is dropped.
	reReasoning = regexp.MustCompile(`(?i)\n\s*(?:\d+\.\s*)?\**\s*(?:가사를\s*생성한\s*이유|reasoning|explanation)\s*\**\s*[:：]`)
	reEnum      = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]*`)
)

const titleQuotes = "\"「」'“”‘’"

// Extract returns the title and the cleaned body of raw. It never fails; for
// input without any recognizable structure it returns Placeholder and the
// trimmed text.
func Extract(raw string) (title, body string) {
	text := strings.ReplaceAll(norm.NFC.String(raw), "\r\n", "\n")
	return Title(text), Body(text)
}

// Title finds the numbered title line, falling back to a short first line.
func Title(text string) string {
	title := ""
	if m := reTitle.FindStringSubmatch(text); m != nil {
		title = cleanTitle(m[1])
	} else if first := firstLine(text); inRange(utf8.RuneCountInString(first)) {
		title = cleanTitle(first)
	}
	if title == "" {
		return Placeholder
	}
	return title
}

// Body truncates text at the explanation heading and strips leading
// enumeration markers. Section labels like "(Verse 1)" are kept.
func Body(text string) string {
	body := strings.TrimSpace(text)
	if loc := reReasoning.FindStringIndex(body); loc != nil {
		body = strings.TrimSpace(body[:loc[0]])
	}
	return reEnum.ReplaceAllString(body, "")
}

func firstLine(text string) string {
	t := strings.TrimSpace(text)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[:i]
	}
	return t
}

func inRange(n int) bool {
	return n >= minTitleLen && n <= maxTitleLen
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(strings.Trim(s, titleQuotes))
}

// LineCount counts the lines of text as stored in engagement records.
func LineCount(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Split(strings.TrimRight(text, "\n"), "\n"))
}
