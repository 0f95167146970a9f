package service

import (
	"context"
	"strings"

	"github.com/lshigami/intervue/internal/model"
)

type selectorGrader struct{}

func NewSelectorGrader() Grader {
	return selectorGrader{}
}

// Grade awards full marks only for an exact match of the selected and correct sets.
func (selectorGrader) Grade(_ context.Context, question *model.Question, answer *model.Answer) GradeResult {
	correct := correctOptionIDs(question.Payload.Data())
	selected := make(map[string]struct{})
	for _, id := range answer.SelectedOptionIDs.Data() {
		selected[id] = struct{}{}
	}

	passed := len(selected) == len(correct)
	if passed {
		for _, id := range correct {
			if _, ok := selected[id]; !ok {
				passed = false
				break
			}
		}
	}

	var score float64
	feedback := "Incorrect. Correct answer(s): " + strings.Join(correct, ", ")
	if passed {
		score = question.MaxScore
		feedback = "Correct answer selected."
	}
	return GradeResult{
		Score:  score,
		Passed: passed,
		Detail: model.EvaluationDetail{Passed: passed, AIFeedback: feedback},
	}
}

// correctOptionIDs prefers the explicit id list and falls back to option flags.
func correctOptionIDs(p model.QuestionPayload) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(p.CorrectAnswerIDs) > 0 {
		for _, id := range p.CorrectAnswerIDs {
			add(id)
		}
		return ids
	}
	for _, opt := range p.Options {
		if opt.IsCorrect {
			add(opt.ID)
		}
	}
	return ids
}
