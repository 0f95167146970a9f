package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lshigami/intervue/internal/metrics"
	"github.com/lshigami/intervue/internal/model"
	"github.com/rs/zerolog/log"
)

const (
	rubricFallbackFeedback  = "Automated evaluation unavailable. Score estimated."
	genericFallbackFeedback = "Score estimated."
	genericCriterion        = "Overall"
	genericMaxPoints        = 10.0
)

type rubricGrader struct {
	llm     GeminiLLMService
	metrics *metrics.Metrics
}

func NewRubricGrader(llm GeminiLLMService, m *metrics.Metrics) Grader {
	if m == nil {
		m = metrics.NewNop()
	}
	return &rubricGrader{llm: llm, metrics: m}
}

func (g *rubricGrader) Grade(ctx context.Context, question *model.Question, answer *model.Answer) GradeResult {
	if strings.TrimSpace(answer.SubmittedText) == "" {
		return GradeResult{Detail: model.EvaluationDetail{AIFeedback: "No answer provided"}}
	}

	rubric := question.Payload.Data().Rubric
	var scores []model.RubricScore
	if len(rubric) == 0 {
		scores = g.scoreGeneric(ctx, question.Content, answer.SubmittedText)
	} else {
		scores = g.scoreWithRubric(ctx, question.Content, answer.SubmittedText, rubric)
	}

	var awarded, possible float64
	lines := make([]string, 0, len(scores))
	for _, s := range scores {
		awarded += s.Score
		possible += s.MaxPoints
		lines = append(lines, fmt.Sprintf("**%s** (%g/%g): %s", s.Criterion, s.Score, s.MaxPoints, s.Feedback))
	}

	var score float64
	if possible > 0 {
		score = round2(question.MaxScore * awarded / possible)
	}
	passed := score >= question.MaxScore*0.7
	return GradeResult{
		Score:  score,
		Passed: passed,
		Detail: model.EvaluationDetail{
			Passed:       passed,
			RubricScores: scores,
			AIFeedback:   strings.Join(lines, "\n"),
		},
	}
}

func (g *rubricGrader) scoreWithRubric(ctx context.Context, content, answer string, rubric []model.RubricCriterion) []model.RubricScore {
	var sb strings.Builder
	sb.WriteString("You are a senior technical interviewer. Evaluate the candidate's answer strictly against the rubric below.\n\n")
	sb.WriteString("Question: " + content + "\n\nRubric:\n")
	for i, r := range rubric {
		fmt.Fprintf(&sb, "%d. %s (max %g pts): %s", i+1, r.Criterion, r.MaxPoints, r.Description)
		if len(r.Keywords) > 0 {
			sb.WriteString(" [Keywords: " + strings.Join(r.Keywords, ", ") + "]")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nCandidate's Answer:\n" + answer + "\n\n")
	sb.WriteString(`Respond ONLY with a JSON array: [{"criterion": string, "score": number, "maxPoints": number, "feedback": "one sentence"}]. `)
	sb.WriteString("Award partial credit where justified. Never exceed maxPoints for a criterion.")

	var raw json.RawMessage
	err := g.llm.GenerateJSON(ctx, LLMRequest{Prompt: sb.String(), Temperature: 0.2, MaxTokens: 1000}, &raw)
	var parsed []model.RubricScore
	if err == nil {
		parsed, err = parseRubricScores(raw)
	}
	if err == nil {
		parsed, err = boundRubricScores(parsed, rubric)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Rubric scoring oracle failed, estimating scores")
		g.metrics.OracleFallbacks.WithLabelValues("rubric").Inc()
		out := make([]model.RubricScore, len(rubric))
		for i, r := range rubric {
			out[i] = model.RubricScore{Criterion: r.Criterion, Score: r.MaxPoints * 0.5, MaxPoints: r.MaxPoints, Feedback: rubricFallbackFeedback}
		}
		return out
	}
	return parsed
}

// boundRubricScores takes maxPoints from the rubric definition when the
// criterion is known and clamps every score into [0, maxPoints].
func boundRubricScores(parsed []model.RubricScore, rubric []model.RubricCriterion) ([]model.RubricScore, error) {
	limits := make(map[string]float64, len(rubric))
	for _, r := range rubric {
		limits[strings.ToLower(strings.TrimSpace(r.Criterion))] = r.MaxPoints
	}
	out := make([]model.RubricScore, 0, len(parsed))
	for _, s := range parsed {
		if limit, ok := limits[strings.ToLower(strings.TrimSpace(s.Criterion))]; ok {
			s.MaxPoints = limit
		}
		if s.MaxPoints <= 0 {
			continue
		}
		s.Score = clamp(s.Score, 0, s.MaxPoints)
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("rubric response had no usable criteria")
	}
	return out, nil
}

func (g *rubricGrader) scoreGeneric(ctx context.Context, content, answer string) []model.RubricScore {
	prompt := "Score this interview answer on a scale of 0-10 for clarity, correctness and depth.\n" +
		"Question: " + content + "\nAnswer: " + answer + "\n" +
		`Respond as JSON: {"criterion":"Overall","score":number,"maxPoints":10,"feedback":"string"}`

	var parsed model.RubricScore
	if err := g.llm.GenerateJSON(ctx, LLMRequest{Prompt: prompt, Temperature: 0.2, MaxTokens: 300}, &parsed); err != nil {
		log.Warn().Err(err).Msg("Generic scoring oracle failed, estimating score")
		g.metrics.OracleFallbacks.WithLabelValues("rubric").Inc()
		return []model.RubricScore{{Criterion: genericCriterion, Score: 5, MaxPoints: genericMaxPoints, Feedback: genericFallbackFeedback}}
	}
	parsed.Criterion = genericCriterion
	parsed.MaxPoints = genericMaxPoints
	parsed.Score = clamp(parsed.Score, 0, genericMaxPoints)
	return []model.RubricScore{parsed}
}

// parseRubricScores accepts a bare array or an object wrapping it in "scores" or "results".
func parseRubricScores(raw json.RawMessage) ([]model.RubricScore, error) {
	var list []model.RubricScore
	if err := json.Unmarshal(raw, &list); err == nil {
		return nonEmptyScores(list)
	}
	var wrapped struct {
		Scores  []model.RubricScore `json:"scores"`
		Results []model.RubricScore `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized rubric response: %w", err)
	}
	if len(wrapped.Scores) > 0 {
		return nonEmptyScores(wrapped.Scores)
	}
	return nonEmptyScores(wrapped.Results)
}

func nonEmptyScores(list []model.RubricScore) ([]model.RubricScore, error) {
	if len(list) == 0 {
		return nil, errors.New("rubric response contained no scores")
	}
	return list, nil
}
