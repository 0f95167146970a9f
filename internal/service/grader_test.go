package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/lshigami/intervue/internal/metrics"
	"github.com/lshigami/intervue/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func mcqQuestion(correct ...string) *model.Question {
	return &model.Question{
		Type:     model.QuestionTypeMCQ,
		MaxScore: 2,
		Payload: datatypes.NewJSONType(model.QuestionPayload{
			Options: []model.QuestionOption{
				{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"},
			},
			CorrectAnswerIDs: correct,
		}),
	}
}

func selected(ids ...string) *model.Answer {
	if ids == nil {
		ids = []string{}
	}
	return &model.Answer{SelectedOptionIDs: datatypes.NewJSONType(ids)}
}

func TestSelectorGraderExactMatch(t *testing.T) {
	g := NewSelectorGrader()
	ctx := context.Background()

	res := g.Grade(ctx, mcqQuestion("b"), selected("b"))
	assert.True(t, res.Passed)
	assert.Equal(t, 2.0, res.Score)

	res = g.Grade(ctx, mcqQuestion("b"), selected("b", "c"))
	assert.False(t, res.Passed)
	assert.Zero(t, res.Score)
	assert.Contains(t, res.Detail.AIFeedback, "b")

	res = g.Grade(ctx, mcqQuestion("a", "c"), selected("c", "a"))
	assert.True(t, res.Passed, "order of selection does not matter")
}

func TestSelectorGraderFallsBackToOptionFlags(t *testing.T) {
	q := &model.Question{
		MaxScore: 1,
		Payload: datatypes.NewJSONType(model.QuestionPayload{
			Options: []model.QuestionOption{{ID: "x"}, {ID: "y", IsCorrect: true}},
		}),
	}
	res := NewSelectorGrader().Grade(context.Background(), q, selected("y"))
	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.Score)
}

func TestSelectorGraderAllOrNothing(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d"}
	pick := func() []string {
		var out []string
		for _, id := range ids {
			if rng.Intn(2) == 1 {
				out = append(out, id)
			}
		}
		return out
	}
	same := func(x, y []string) bool {
		set := map[string]bool{}
		for _, v := range x {
			set[v] = true
		}
		if len(set) != len(y) {
			return false
		}
		for _, v := range y {
			if !set[v] {
				return false
			}
		}
		return true
	}

	g := NewSelectorGrader()
	for i := 0; i < 500; i++ {
		correct := pick()
		if len(correct) == 0 {
			continue
		}
		chosen := pick()
		res := g.Grade(context.Background(), mcqQuestion(correct...), selected(chosen...))
		if same(correct, chosen) {
			require.Equal(t, 2.0, res.Score, "correct=%v chosen=%v", correct, chosen)
		} else {
			require.Zero(t, res.Score, "correct=%v chosen=%v", correct, chosen)
		}
	}
}

func codingQuestion(cases ...model.TestCase) *model.Question {
	return &model.Question{
		Type:     model.QuestionTypeCoding,
		MaxScore: 3,
		Payload: datatypes.NewJSONType(model.QuestionPayload{
			Coding: &model.CodingConfig{AllowedLanguages: []string{"python"}, TestCases: cases},
		}),
	}
}

func TestCodeGraderPartialCredit(t *testing.T) {
	sandbox := &fakeSandbox{results: []SandboxResult{
		{Stdout: "3\n", ExecutionTimeMs: 10},
		{Stdout: "wrong", ExecutionTimeMs: 12},
		{Stdout: " 7 ", ExecutionTimeMs: 5, MemoryUsedMb: 9},
	}}
	q := codingQuestion(
		model.TestCase{Input: "1 2", ExpectedOutput: "3"},
		model.TestCase{Input: "2 2", ExpectedOutput: "4"},
		model.TestCase{Input: "3 4", ExpectedOutput: "7"},
	)
	res := NewCodeGrader(sandbox).Grade(context.Background(), q, &model.Answer{SubmittedText: "print(sum)", ProgrammingLanguage: "python"})

	assert.Equal(t, 2.0, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, 2, res.Detail.TestCasesPassed)
	assert.Equal(t, 3, res.Detail.TestCasesTotal)
	assert.Equal(t, 27, res.Detail.ExecutionTimeMs)
	assert.Equal(t, 9, res.Detail.MemoryUsedMb)
	require.Len(t, sandbox.calls, 3)
	assert.Equal(t, "python", sandbox.calls[0].Language)
	assert.Equal(t, "2 2", sandbox.calls[1].Stdin)
}

func TestCodeGraderCompileErrorStopsRun(t *testing.T) {
	sandbox := &fakeSandbox{results: []SandboxResult{
		{Stdout: "nope"},
		{CompileError: "SyntaxError: invalid syntax"},
		{Stdout: "7"},
	}}
	q := codingQuestion(
		model.TestCase{Input: "1", ExpectedOutput: "1"},
		model.TestCase{Input: "2", ExpectedOutput: "2"},
		model.TestCase{Input: "3", ExpectedOutput: "7"},
	)
	res := NewCodeGrader(sandbox).Grade(context.Background(), q, &model.Answer{SubmittedText: "x"})

	assert.Zero(t, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, "SyntaxError: invalid syntax", res.Detail.CompileError)
	assert.Zero(t, res.Detail.TestCasesPassed)
	assert.Len(t, sandbox.calls, 2, "case three is never run")
	assert.Equal(t, defaultCodeLanguage, sandbox.calls[0].Language)
}

func TestCodeGraderRuntimeErrorFailsCase(t *testing.T) {
	sandbox := &fakeSandbox{results: []SandboxResult{
		{Stdout: "1", RuntimeError: "IndexError"},
		{Stdout: "2"},
	}}
	q := codingQuestion(
		model.TestCase{Input: "1", ExpectedOutput: "1"},
		model.TestCase{Input: "2", ExpectedOutput: "2"},
	)
	res := NewCodeGrader(sandbox).Grade(context.Background(), q, &model.Answer{SubmittedText: "x"})

	assert.Equal(t, 1.5, res.Score)
	assert.Equal(t, 1, res.Detail.TestCasesPassed)
	assert.Equal(t, "IndexError", res.Detail.RuntimeError)
}

func TestCodeGraderEmptySubmission(t *testing.T) {
	sandbox := &fakeSandbox{}
	q := codingQuestion(model.TestCase{Input: "1", ExpectedOutput: "1"})
	res := NewCodeGrader(sandbox).Grade(context.Background(), q, &model.Answer{SubmittedText: "   "})

	assert.Zero(t, res.Score)
	assert.Equal(t, "No code submitted", res.Detail.AIFeedback)
	assert.Empty(t, sandbox.calls)
}

func rubricQuestion() *model.Question {
	return &model.Question{
		Type:     model.QuestionTypeBehavioral,
		Content:  "Tell me about a conflict.",
		MaxScore: 10,
		Payload: datatypes.NewJSONType(model.QuestionPayload{
			Rubric: []model.RubricCriterion{
				{Criterion: "Situation", MaxPoints: 4},
				{Criterion: "Result", MaxPoints: 6},
			},
		}),
	}
}

func TestRubricGraderScalesToMaxScore(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"scores":[{"criterion":"situation","score":9,"maxPoints":99,"feedback":"clear"},{"criterion":"Result","score":3,"maxPoints":6,"feedback":"thin"}]}`,
	}}
	res := NewRubricGrader(llm, metrics.NewNop()).Grade(context.Background(), rubricQuestion(), &model.Answer{SubmittedText: "We disagreed..."})

	require.Len(t, res.Detail.RubricScores, 2)
	assert.Equal(t, 4.0, res.Detail.RubricScores[0].MaxPoints, "max points come from the rubric")
	assert.Equal(t, 4.0, res.Detail.RubricScores[0].Score, "score clamped to max points")
	assert.Equal(t, 7.0, res.Score)
	assert.True(t, res.Passed)
}

func TestRubricGraderFallbackOnOracleFailure(t *testing.T) {
	llm := &fakeLLM{}
	res := NewRubricGrader(llm, metrics.NewNop()).Grade(context.Background(), rubricQuestion(), &model.Answer{SubmittedText: "anything"})

	require.Len(t, res.Detail.RubricScores, 2)
	assert.Equal(t, 2.0, res.Detail.RubricScores[0].Score)
	assert.Equal(t, 3.0, res.Detail.RubricScores[1].Score)
	assert.Equal(t, 5.0, res.Score)
}

func TestRubricGraderEmptyAnswer(t *testing.T) {
	llm := &fakeLLM{}
	res := NewRubricGrader(llm, metrics.NewNop()).Grade(context.Background(), rubricQuestion(), &model.Answer{SubmittedText: ""})

	assert.Zero(t, res.Score)
	assert.Empty(t, llm.calls)
}

func TestGraderRegistryRejectsUnknownType(t *testing.T) {
	reg := NewGraderRegistry(&fakeSandbox{}, &fakeLLM{}, nil)
	_, err := reg.Grade(context.Background(), &model.Question{Type: "essay"}, &model.Answer{})
	assert.Error(t, err)
}
