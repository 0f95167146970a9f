package service

// ScoreItem is one scored unit fed into Aggregate.
type ScoreItem struct {
	Section  string
	Score    float64
	MaxScore float64
}

type SectionScore struct {
	Section    string
	Score      float64
	MaxScore   float64
	Percentage float64
	Count      int
	Passed     bool
}

type AggregateResult struct {
	Sections   []SectionScore
	Total      float64
	MaxTotal   float64
	Percentage float64
	Passed     bool
}

// Aggregate groups items by section in order of first appearance. Percentages
// are unrounded; an empty max yields 0. Each section and the total pass at
// threshold inclusive.
func Aggregate(items []ScoreItem, threshold float64) AggregateResult {
	index := make(map[string]int)
	var res AggregateResult
	for _, it := range items {
		i, ok := index[it.Section]
		if !ok {
			i = len(res.Sections)
			index[it.Section] = i
			res.Sections = append(res.Sections, SectionScore{Section: it.Section})
		}
		res.Sections[i].Score += it.Score
		res.Sections[i].MaxScore += it.MaxScore
		res.Sections[i].Count++
		res.Total += it.Score
		res.MaxTotal += it.MaxScore
	}
	for i := range res.Sections {
		res.Sections[i].Percentage = percentage(res.Sections[i].Score, res.Sections[i].MaxScore)
		res.Sections[i].Passed = res.Sections[i].Percentage >= threshold
	}
	res.Percentage = percentage(res.Total, res.MaxTotal)
	res.Passed = res.Percentage >= threshold
	return res
}

func percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return 100 * score / maxScore
}
