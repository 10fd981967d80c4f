package engagement

import "fmt"

// Survey is the six-item burnout check, each answered 1..5.
type Survey struct {
	Exhaust  int `json:"bo_exhaust"`
	Cynicism int `json:"bo_cynicism"`
	Burden   int `json:"bo_burden"`
	Anger    int `json:"bo_anger"`
	Fatigue  int `json:"bo_fatigue"`
	Sleep    int `json:"bo_sleep"`
}

const (
	SurveyItems    = 6
	minAnswer      = 1
	maxAnswer      = 5
	MaxSurveyScore = SurveyItems * maxAnswer
)

// Level is the burnout band.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

func (s Survey) answers() [SurveyItems]int {
	return [SurveyItems]int{s.Exhaust, s.Cynicism, s.Burden, s.Anger, s.Fatigue, s.Sleep}
}

// Validate rejects answers outside 1..5.
func (s Survey) Validate() error {
	for i, a := range s.answers() {
		if a < minAnswer || a > maxAnswer {
			return fmt.Errorf("burnout answer %d out of range %d..%d: %d", i+1, minAnswer, maxAnswer, a)
		}
	}
	return nil
}

func (s Survey) Score() int {
	total := 0
	for _, a := range s.answers() {
		total += a
	}
	return total
}

func (s Survey) Level() Level { return LevelFor(s.Score(), MaxSurveyScore) }

// LevelFor bands score against maxScore. For the standard 30-point survey the
// cut-offs are 20 and 10; any other maximum uses 75% and 50%.
func LevelFor(score, maxScore int) Level {
	if maxScore == MaxSurveyScore {
		switch {
		case score >= 20:
			return LevelHigh
		case score >= 10:
			return LevelModerate
		}
		return LevelLow
	}
	if maxScore <= 0 {
		return LevelLow
	}
	ratio := float64(score) / float64(maxScore)
	switch {
	case ratio >= 0.75:
		return LevelHigh
	case ratio >= 0.5:
		return LevelModerate
	}
	return LevelLow
}

// Feedback is the short message shown next to a level.
func Feedback(l Level) string {
	switch l {
	case LevelHigh:
		return "Rain: you seem quite worn out. Pause for a moment and rest. How about listening to some music together?"
	case LevelModerate:
		return "Fog: not bad, but there are signs of burnout. A short break and a change of pace will help."
	}
	return "Clear: your condition looks fairly stable. Top up your energy with some music!"
}
