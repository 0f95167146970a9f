package service

import (
	"sort"

	"github.com/lshigami/intervue/internal/model"
)

const (
	sequencerMinIndex      = 2
	sequencerWindow        = 3
	sequencerPromotePct    = 75.0
	sequencerDemotePct     = 40.0
	sequencerUnknownWeight = 1
)

var hardestFirst = map[model.Difficulty]int{model.DifficultyHard: 0, model.DifficultyMedium: 1, model.DifficultyEasy: 2}
var easiestFirst = map[model.Difficulty]int{model.DifficultyEasy: 0, model.DifficultyMedium: 1, model.DifficultyHard: 2}

// SequenceQuestions returns the question order a linear session is served in.
// Already answered questions keep their submission order at the front, so the
// prefix below currentIndex never changes between calls. Once currentIndex
// reaches 2 the unanswered tail is reordered by recent performance: the average
// percentage of the latest evaluated answers (newest first, at most three).
func SequenceQuestions(questions []model.Question, currentIndex int, answeredIDs []uint, recentEvaluated []model.Answer) []model.Question {
	byID := make(map[uint]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	ordered := make([]model.Question, 0, len(questions))
	answered := make(map[uint]struct{}, len(answeredIDs))
	for _, id := range answeredIDs {
		if _, dup := answered[id]; dup {
			continue
		}
		q, ok := byID[id]
		if !ok {
			continue
		}
		answered[id] = struct{}{}
		ordered = append(ordered, q)
	}

	remaining := make([]model.Question, 0, len(questions)-len(ordered))
	for _, q := range questions {
		if _, done := answered[q.ID]; !done {
			remaining = append(remaining, q)
		}
	}

	if currentIndex >= sequencerMinIndex {
		if avg, ok := recentPercentage(recentEvaluated); ok {
			switch {
			case avg >= sequencerPromotePct:
				sortByDifficulty(remaining, hardestFirst)
			case avg < sequencerDemotePct:
				sortByDifficulty(remaining, easiestFirst)
			}
		}
	}
	return append(ordered, remaining...)
}

func recentPercentage(recent []model.Answer) (float64, bool) {
	if len(recent) > sequencerWindow {
		recent = recent[:sequencerWindow]
	}
	if len(recent) == 0 {
		return 0, false
	}
	var sum float64
	for _, a := range recent {
		maxScore := a.MaxScore
		if maxScore <= 0 {
			maxScore = 1
		}
		var score float64
		if a.Score != nil {
			score = *a.Score
		}
		sum += score / maxScore * 100
	}
	return sum / float64(len(recent)), true
}

func sortByDifficulty(qs []model.Question, rank map[model.Difficulty]int) {
	weight := func(d model.Difficulty) int {
		if w, ok := rank[d]; ok {
			return w
		}
		return sequencerUnknownWeight
	}
	sort.SliceStable(qs, func(i, j int) bool {
		return weight(qs[i].Difficulty) < weight(qs[j].Difficulty)
	})
}
