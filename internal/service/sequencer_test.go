package service

import (
	"testing"

	"github.com/lshigami/intervue/internal/model"
	"github.com/stretchr/testify/assert"
)

func questionSet() []model.Question {
	return []model.Question{
		{ID: 1, Difficulty: model.DifficultyMedium},
		{ID: 2, Difficulty: model.DifficultyEasy},
		{ID: 3, Difficulty: model.DifficultyHard},
		{ID: 4, Difficulty: model.DifficultyEasy},
		{ID: 5, Difficulty: model.DifficultyHard},
		{ID: 6, Difficulty: model.DifficultyMedium},
	}
}

func ids(qs []model.Question) []uint {
	out := make([]uint, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func evaluated(scores ...float64) []model.Answer {
	out := make([]model.Answer, 0, len(scores))
	for _, s := range scores {
		out = append(out, model.Answer{Score: floatPtr(s), MaxScore: 10})
	}
	return out
}

func TestSequenceKeepsOrderBeforeSecondQuestion(t *testing.T) {
	got := SequenceQuestions(questionSet(), 1, []uint{1}, evaluated(10))
	assert.Equal(t, []uint{1, 2, 3, 4, 5, 6}, ids(got))
}

func TestSequencePromotesHardQuestions(t *testing.T) {
	got := SequenceQuestions(questionSet(), 2, []uint{1, 2}, evaluated(9, 8, 10))
	assert.Equal(t, []uint{1, 2, 3, 5, 6, 4}, ids(got))
}

func TestSequenceDemotesToEasyQuestions(t *testing.T) {
	got := SequenceQuestions(questionSet(), 2, []uint{3, 5}, evaluated(1, 2))
	assert.Equal(t, []uint{3, 5, 2, 4, 1, 6}, ids(got))
}

func TestSequenceMiddleBandKeepsTemplateOrder(t *testing.T) {
	got := SequenceQuestions(questionSet(), 2, []uint{1, 2}, evaluated(5, 6))
	assert.Equal(t, []uint{1, 2, 3, 4, 5, 6}, ids(got))
}

func TestSequenceUsesLatestThreeOnly(t *testing.T) {
	// newest first; the older zeros would pull the average into the middle band
	got := SequenceQuestions(questionSet(), 4, []uint{1, 2, 3, 4}, evaluated(10, 10, 10, 0, 0, 0))
	assert.Equal(t, []uint{1, 2, 3, 4, 5, 6}, ids(got))

	got = SequenceQuestions(questionSet(), 3, []uint{1, 2, 6}, evaluated(10, 10, 10, 0, 0, 0))
	assert.Equal(t, []uint{1, 2, 6, 3, 5, 4}, ids(got))
}

func TestSequenceAnsweredPrefixIsStable(t *testing.T) {
	answered := []uint{4, 1}
	first := SequenceQuestions(questionSet(), 2, answered, evaluated(10, 10))
	second := SequenceQuestions(questionSet(), 2, answered, evaluated(0, 0))
	assert.Equal(t, ids(first)[:2], ids(second)[:2])
	assert.ElementsMatch(t, ids(questionSet()), ids(first))
	assert.ElementsMatch(t, ids(questionSet()), ids(second))
}

func TestSequenceIgnoresUnknownAndDuplicateAnsweredIDs(t *testing.T) {
	got := SequenceQuestions(questionSet(), 1, []uint{2, 99, 2}, nil)
	assert.Equal(t, []uint{2, 1, 3, 4, 5, 6}, ids(got))
}
