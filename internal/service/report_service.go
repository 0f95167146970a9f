package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/metrics"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/queue"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	correctRatio         = 0.7
	defaultPassPercent   = 70.0
	narrativeTemperature = 0.4
	narrativeMaxTokens   = 400
	highRiskEvents       = 2
	mediumRiskEvents     = 5
)

var errAnswersPending = errors.New("answers still being evaluated")

// ReportService builds the recruiter report of a completed linear session.
type ReportService interface {
	HandleJob(ctx context.Context, job queue.Job) error
	OnExhausted(ctx context.Context, job queue.Job, err error)
	Generate(ctx context.Context, sessionID uint, waitForAnswers bool) error
	GetReport(ctx context.Context, candidateID string, sessionID uint) (*dto.ReportResponseDTO, error)
}

type reportService struct {
	sessionRepo   repository.SessionRepository
	answerRepo    repository.AnswerRepository
	reportRepo    repository.ReportRepository
	integrityRepo repository.IntegrityRepository
	llm           GeminiLLMService
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewReportService(
	sessionRepo repository.SessionRepository,
	answerRepo repository.AnswerRepository,
	reportRepo repository.ReportRepository,
	integrityRepo repository.IntegrityRepository,
	llm GeminiLLMService,
	m *metrics.Metrics,
) ReportService {
	return &reportService{
		sessionRepo:   sessionRepo,
		answerRepo:    answerRepo,
		reportRepo:    reportRepo,
		integrityRepo: integrityRepo,
		llm:           llm,
		metrics:       m,
		now:           time.Now,
	}
}

// HandleJob waits for outstanding evaluations on every attempt but the last.
func (s *reportService) HandleJob(ctx context.Context, job queue.Job) error {
	var payload queue.ReportPayload
	if err := job.Decode(&payload); err != nil {
		log.Error().Err(err).Str("jobID", job.ID).Msg("Dropping report job with bad payload")
		return nil
	}
	return s.Generate(ctx, payload.SessionID, job.Attempt < job.MaxAttempts)
}

func (s *reportService) OnExhausted(ctx context.Context, job queue.Job, err error) {
	var payload queue.ReportPayload
	if decodeErr := job.Decode(&payload); decodeErr != nil {
		return
	}
	log.Error().Err(err).Uint("sessionID", payload.SessionID).Msg("Report attempts exhausted")
	report, ferr := s.reportRepo.FindBySessionID(ctx, payload.SessionID)
	if ferr != nil {
		return
	}
	if report.Status != model.ReportStatusReady {
		if uerr := s.reportRepo.UpdateStatus(ctx, report.ID, model.ReportStatusFailed); uerr != nil {
			log.Error().Err(uerr).Uint("reportID", report.ID).Msg("Failed to mark report failed")
		}
	}
}

func (s *reportService) Generate(ctx context.Context, sessionID uint, waitForAnswers bool) error {
	session, err := s.sessionRepo.FindByIDWithTemplate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Uint("sessionID", sessionID).Msg("Session not found, dropping report job")
			return nil
		}
		return fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}

	report, err := s.reportRepo.FindOrCreatePending(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to create report for session %d: %w", sessionID, err)
	}
	if report.Status == model.ReportStatusReady {
		return nil
	}
	if err := s.reportRepo.UpdateStatus(ctx, report.ID, model.ReportStatusGenerating); err != nil {
		return fmt.Errorf("failed to mark report %d generating: %w", report.ID, err)
	}

	if err := s.build(ctx, session, report, waitForAnswers); err != nil {
		status := model.ReportStatusFailed
		if errors.Is(err, errAnswersPending) {
			status = model.ReportStatusPending
			log.Info().Err(err).Uint("sessionID", sessionID).Msg("Report deferred")
		} else {
			log.Error().Err(err).Uint("sessionID", sessionID).Msg("Report generation failed")
		}
		if uerr := s.reportRepo.UpdateStatus(ctx, report.ID, status); uerr != nil {
			log.Error().Err(uerr).Uint("reportID", report.ID).Msg("Failed to mark report failed")
		}
		return err
	}
	log.Info().Uint("reportID", report.ID).Uint("sessionID", sessionID).Msg("Report generated")
	return nil
}

func (s *reportService) build(ctx context.Context, session *model.Session, report *model.Report, waitForAnswers bool) error {
	if waitForAnswers {
		all, err := s.answerRepo.FindBySession(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("failed to load answers: %w", err)
		}
		for _, a := range all {
			if a.Status != model.AnswerStatusEvaluated {
				return fmt.Errorf("%w: answer %d is %s", errAnswersPending, a.ID, a.Status)
			}
		}
	}

	answers, err := s.answerRepo.FindEvaluatedBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to load evaluated answers: %w", err)
	}
	events, err := s.integrityRepo.FindBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to load integrity events: %w", err)
	}

	passPercent := session.Template.PassingScorePercent
	if passPercent <= 0 {
		passPercent = defaultPassPercent
	}
	sections, details, agg := breakdownAnswers(answers, passPercent)
	integrity := integrityReport(events)
	narrative := s.narrative(ctx, session, len(answers), sections, agg.Percentage)

	completedAt := ""
	if session.CompletedAt != nil {
		completedAt = session.CompletedAt.UTC().Format(time.RFC3339)
	}
	generatedAt := s.now()
	report.Status = model.ReportStatusReady
	report.Summary = datatypes.NewJSONType(model.ReportSummary{
		Role:            session.Template.Role,
		Difficulty:      session.Template.Difficulty,
		TotalScore:      agg.Total,
		MaxScore:        agg.MaxTotal,
		PercentageScore: round1(agg.Percentage),
		Passed:          agg.Passed,
		DurationMinutes: session.DurationSeconds / 60,
		CompletedAt:     completedAt,
	})
	report.SectionBreakdown = datatypes.NewJSONType(sections)
	report.QuestionDetails = datatypes.NewJSONType(details)
	report.Integrity = datatypes.NewJSONType(integrity)
	report.AINarrative = narrative
	report.GeneratedAt = &generatedAt
	if err := s.reportRepo.Save(ctx, report); err != nil {
		return fmt.Errorf("failed to save report %d: %w", report.ID, err)
	}

	if err := s.sessionRepo.SetReport(ctx, session.ID, report.ID); err != nil {
		return fmt.Errorf("failed to link report to session: %w", err)
	}
	if integrity.Flagged {
		if err := s.sessionRepo.IncrementIntegrity(ctx, session.ID, 0, 0, true); err != nil {
			return fmt.Errorf("failed to flag session: %w", err)
		}
	}
	return nil
}

// breakdownAnswers groups evaluated answers by question type.
func breakdownAnswers(answers []model.Answer, passPercent float64) ([]model.SectionBreakdown, []model.QuestionDetail, AggregateResult) {
	items := make([]ScoreItem, 0, len(answers))
	correct := map[string]int{}
	details := make([]model.QuestionDetail, 0, len(answers))
	for _, a := range answers {
		section := string(a.Question.Type)
		if section == "" {
			section = "unknown"
		}
		var score float64
		if a.Score != nil {
			score = *a.Score
		}
		maxScore := a.MaxScore
		if maxScore <= 0 {
			maxScore = 1
		}
		items = append(items, ScoreItem{Section: section, Score: score, MaxScore: maxScore})
		if score >= maxScore*correctRatio {
			correct[section]++
		}
		details = append(details, model.QuestionDetail{
			QuestionID:       a.QuestionID,
			Type:             string(a.Question.Type),
			Content:          a.Question.Content,
			Score:            score,
			MaxScore:         maxScore,
			TimeTakenSeconds: a.TimeTakenSeconds,
			Feedback:         a.Evaluation.Data().AIFeedback,
		})
	}

	agg := Aggregate(items, passPercent)
	sections := make([]model.SectionBreakdown, 0, len(agg.Sections))
	for _, sec := range agg.Sections {
		sections = append(sections, model.SectionBreakdown{
			SectionType:   sec.Section,
			Score:         sec.Score,
			MaxScore:      sec.MaxScore,
			Percentage:    round1(sec.Percentage),
			QuestionCount: sec.Count,
			CorrectCount:  correct[sec.Section],
			Passed:        sec.Passed,
		})
	}
	return sections, details, agg
}

func integrityReport(events []model.IntegrityEvent) model.IntegrityReport {
	var counts []model.IntegrityEventCount
	index := map[model.IntegrityEventType]int{}
	high := 0
	for _, e := range events {
		if e.Severity == model.SeverityHigh {
			high++
		}
		if i, ok := index[e.EventType]; ok {
			counts[i].Count++
			continue
		}
		index[e.EventType] = len(counts)
		counts = append(counts, model.IntegrityEventCount{Type: string(e.EventType), Severity: string(e.Severity), Count: 1})
	}
	risk := string(model.SeverityLow)
	switch {
	case high > highRiskEvents:
		risk = string(model.SeverityHigh)
	case len(events) > mediumRiskEvents:
		risk = string(model.SeverityMedium)
	}
	if counts == nil {
		counts = []model.IntegrityEventCount{}
	}
	return model.IntegrityReport{
		Flagged:     risk != string(model.SeverityLow),
		FlagCount:   len(events),
		Events:      counts,
		OverallRisk: risk,
	}
}

func (s *reportService) narrative(ctx context.Context, session *model.Session, answered int, sections []model.SectionBreakdown, pct float64) string {
	role := session.Template.Role
	if role == "" {
		role = "technical"
	}
	parts := make([]string, 0, len(sections))
	for _, sec := range sections {
		parts = append(parts, fmt.Sprintf("%s: %g%%", sec.SectionType, sec.Percentage))
	}
	prompt := fmt.Sprintf(`Write a professional 2-paragraph recruiter summary for a %s interview.
Overall score: %.1f%%. Sections: %s.
Total questions: %d. Duration: %d minutes.
Be factual, concise, and highlight strengths and improvement areas. Do NOT include candidate name.`,
		role, pct, strings.Join(parts, ", "), answered, session.DurationSeconds/60)

	text, err := s.llm.GenerateText(ctx, LLMRequest{Prompt: prompt, Temperature: narrativeTemperature, MaxTokens: narrativeMaxTokens})
	if err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	log.Warn().Err(err).Uint("sessionID", session.ID).Msg("Narrative generation failed, using fallback")
	s.metrics.OracleFallbacks.WithLabelValues("narrative").Inc()
	return fmt.Sprintf("Candidate completed a %s interview with an overall score of %.1f%%.", role, pct)
}

func (s *reportService) GetReport(ctx context.Context, candidateID string, sessionID uint) (*dto.ReportResponseDTO, error) {
	session, err := loadOwnedSession(ctx, s.sessionRepo, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	report, err := s.reportRepo.FindBySessionID(ctx, session.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotReady
		}
		return nil, fmt.Errorf("failed to load report for session %d: %w", session.ID, err)
	}
	var resp dto.ReportResponseDTO
	copier.Copy(&resp, report)
	resp.Status = string(report.Status)
	resp.Summary = report.Summary.Data()
	resp.SectionBreakdown = report.SectionBreakdown.Data()
	resp.QuestionDetails = report.QuestionDetails.Data()
	resp.IntegrityReport = report.Integrity.Data()
	return &resp, nil
}
