package engagement

import "time"

// KST is the fixed UTC+9 zone all timestamps are rendered in.
var KST = time.FixedZone("KST", 9*60*60)

const TimestampLayout = "2006-01-02 15:04:05"

// SessionTime buckets t by KST hour: morning [6,12), afternoon [12,18),
// evening [18,24), night otherwise.
func SessionTime(t time.Time) string {
	switch h := t.In(KST).Hour(); {
	case h >= 6 && h < 12:
		return "morning"
	case h >= 12 && h < 18:
		return "afternoon"
	case h >= 18:
		return "evening"
	}
	return "night"
}
