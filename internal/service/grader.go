package service

import (
	"context"
	"fmt"
	"math"

	"github.com/lshigami/intervue/internal/metrics"
	"github.com/lshigami/intervue/internal/model"
)

type GradeResult struct {
	Score  float64
	Passed bool
	Detail model.EvaluationDetail
}

// Grader scores one answer. Expected failure modes (bad input, sandbox or
// oracle outages) are reported inside the result, never as an error.
type Grader interface {
	Grade(ctx context.Context, question *model.Question, answer *model.Answer) GradeResult
}

// GraderRegistry dispatches on the grading kind of a question.
type GraderRegistry interface {
	Grade(ctx context.Context, question *model.Question, answer *model.Answer) (GradeResult, error)
}

type graderRegistry struct {
	selector Grader
	code     Grader
	rubric   Grader
	metrics  *metrics.Metrics
}

func NewGraderRegistry(sandbox SandboxService, llm GeminiLLMService, m *metrics.Metrics) GraderRegistry {
	if m == nil {
		m = metrics.NewNop()
	}
	return &graderRegistry{
		selector: NewSelectorGrader(),
		code:     NewCodeGrader(sandbox),
		rubric:   NewRubricGrader(llm, m),
		metrics:  m,
	}
}

func (r *graderRegistry) Grade(ctx context.Context, question *model.Question, answer *model.Answer) (GradeResult, error) {
	kind := question.Type.Kind()
	var grader Grader
	switch kind {
	case model.GradingKindSelector:
		grader = r.selector
	case model.GradingKindCode:
		grader = r.code
	case model.GradingKindRubric:
		grader = r.rubric
	default:
		return GradeResult{}, fmt.Errorf("no grader for question type %q", question.Type)
	}

	result := grader.Grade(ctx, question, answer)
	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	r.metrics.GradingOutcomes.WithLabelValues(string(kind), outcome).Inc()
	return result, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
