package session

import (
	"fmt"

	"github.com/teilomillet/promptpilot/evaluator"
)

// AnalyticsPoint is the comparison row of one variation that has a result.
type AnalyticsPoint struct {
	ID         int                     `json:"id"`
	Label      string                  `json:"label"`
	LatencyMs  int64                   `json:"latency"`
	Length     int                     `json:"length"`
	TokenUsage int64                   `json:"tokenUsage"`
	Quality    *evaluator.QualityScore `json:"quality,omitempty"`
}

// Analytics projects the variations with a result, in list order. Labels
// follow the card position: the third card is "Variation 3" whether or not
// the first two have results.
func Analytics(variations []PromptVariation) []AnalyticsPoint {
	points := make([]AnalyticsPoint, 0, len(variations))
	for i, v := range variations {
		if v.Result == nil {
			continue
		}
		points = append(points, AnalyticsPoint{
			ID:         v.ID,
			Label:      fmt.Sprintf("Variation %d", i+1),
			LatencyMs:  v.Result.LatencyMs(),
			Length:     v.Result.Length(),
			TokenUsage: v.Result.TokenUsage(),
			Quality:    v.Result.Quality(),
		})
	}
	return points
}

// Summary aggregates analytics points. Score fields only count points that
// were evaluated.
type Summary struct {
	Runs         int     `json:"runs"`
	AvgLatencyMs float64 `json:"avgLatency"`
	AvgLength    float64 `json:"avgLength"`
	AvgTokens    float64 `json:"avgTokenUsage"`
	Scored       int     `json:"scored"`
	AvgScore     float64 `json:"avgScore"`
	BestID       int     `json:"bestId,omitempty"`
	FastestID    int     `json:"fastestId,omitempty"`
}

func Summarize(points []AnalyticsPoint) Summary {
	var s Summary
	if len(points) == 0 {
		return s
	}

	var latency, length, tokens, score float64
	bestScore := 0
	var fastest int64 = -1
	for _, p := range points {
		latency += float64(p.LatencyMs)
		length += float64(p.Length)
		tokens += float64(p.TokenUsage)
		if fastest < 0 || p.LatencyMs < fastest {
			fastest = p.LatencyMs
			s.FastestID = p.ID
		}
		if p.Quality != nil {
			s.Scored++
			score += float64(p.Quality.Score)
			if p.Quality.Score > bestScore {
				bestScore = p.Quality.Score
				s.BestID = p.ID
			}
		}
	}

	n := float64(len(points))
	s.Runs = len(points)
	s.AvgLatencyMs = latency / n
	s.AvgLength = length / n
	s.AvgTokens = tokens / n
	if s.Scored > 0 {
		s.AvgScore = score / float64(s.Scored)
	}
	return s
}
