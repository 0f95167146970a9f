package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lshigami/intervue/internal/model"
	"github.com/rs/zerolog/log"
)

type codeGrader struct {
	sandbox SandboxService
}

func NewCodeGrader(sandbox SandboxService) Grader {
	return &codeGrader{sandbox: sandbox}
}

func (g *codeGrader) Grade(ctx context.Context, question *model.Question, answer *model.Answer) GradeResult {
	cfg := question.Payload.Data().Coding
	if cfg == nil || strings.TrimSpace(answer.SubmittedText) == "" {
		return GradeResult{Detail: model.EvaluationDetail{AIFeedback: "No code submitted"}}
	}

	language := answer.ProgrammingLanguage
	if language == "" {
		language = defaultCodeLanguage
	}

	detail := model.EvaluationDetail{TestCasesTotal: len(cfg.TestCases)}
	passed := 0
	for i, tc := range cfg.TestCases {
		res := g.sandbox.RunCode(ctx, SandboxRunOptions{
			Code:          answer.SubmittedText,
			Language:      language,
			Stdin:         tc.Input,
			TimeoutMs:     cfg.TimeoutMs,
			MemoryLimitMb: cfg.MemoryLimitMb,
		})
		detail.ExecutionTimeMs += res.ExecutionTimeMs
		if res.MemoryUsedMb > detail.MemoryUsedMb {
			detail.MemoryUsedMb = res.MemoryUsedMb
		}

		if res.CompileError != "" {
			detail.CompileError = res.CompileError
			detail.TestCasesPassed = 0
			detail.AIFeedback = "Compilation error: " + res.CompileError
			log.Info().Uint("answerID", answer.ID).Int("case", i+1).Msg("Compilation error, remaining test cases skipped")
			return GradeResult{Detail: detail}
		}
		if res.RuntimeError != "" {
			detail.RuntimeError = res.RuntimeError
			continue
		}
		if strings.TrimSpace(res.Stdout) == strings.TrimSpace(tc.ExpectedOutput) {
			passed++
		}
	}

	total := len(cfg.TestCases)
	var score float64
	if total > 0 {
		score = round2(question.MaxScore * float64(passed) / float64(total))
	}
	detail.TestCasesPassed = passed
	detail.Passed = total > 0 && passed == total
	detail.AIFeedback = fmt.Sprintf("Passed %d/%d test cases.", passed, total)
	return GradeResult{Score: score, Passed: detail.Passed, Detail: detail}
}
