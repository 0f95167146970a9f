package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/intervue/config"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/lock"
	"github.com/lshigami/intervue/internal/metrics"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	skippedFeedback     = "Candidate skipped this question."
	followUpScoreCutoff = 7.0
	defaultPanelLevel   = "Normal"
	defaultLockWait     = 45 * time.Second
	abandonLockWait     = 2 * time.Second
	abandonStaleRetries = 3
	coreRetargetMinimum = 3
	coreRetargetHighAvg = 7.5
	coreRetargetLowAvg  = 4.0
	coreTargetHigh      = 7
	coreTargetLow       = 5
	coreTargetDefault   = 6
)

var phaseTargets = map[model.PanelPhase]int{
	model.PhaseWarmup: 2,
	model.PhaseCore:   coreTargetDefault,
	model.PhaseCoding: 1,
	model.PhaseQuery:  1,
}

// PanelService runs the multi-phase panel interview. Every mutation holds the
// per-session lock and is written with a versioned conditional update.
type PanelService interface {
	CreateSession(ctx context.Context, candidateID string, req dto.CreatePanelSessionDTO) (*dto.PanelResponseDTO, error)
	CurrentQuestion(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error)
	SubmitAnswer(ctx context.Context, candidateID, sessionID string, req dto.PanelAnswerDTO) (*dto.PanelResponseDTO, error)
	Skip(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error)
	Abandon(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error)
	GetReport(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error)
	ListSessions(ctx context.Context, candidateID string) ([]dto.PanelSessionSummaryDTO, error)
}

type panelService struct {
	repo     repository.PanelSessionRepository
	ai       PanelAIService
	locker   lock.SessionLocker
	notifier NotifierService
	metrics  *metrics.Metrics
	lockWait time.Duration
	now      func() time.Time
}

func NewPanelService(
	repo repository.PanelSessionRepository,
	ai PanelAIService,
	locker lock.SessionLocker,
	notifier NotifierService,
	m *metrics.Metrics,
	cfg *config.Config,
) PanelService {
	wait := cfg.Panel.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &panelService{
		repo:     repo,
		ai:       ai,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		lockWait: wait,
		now:      time.Now,
	}
}

// evaluationView is what the candidate sees about the last graded answer.
type evaluationView struct {
	Score            float64
	Feedback         string
	FollowUpQuestion string
}

func (s *panelService) CreateSession(ctx context.Context, candidateID string, req dto.CreatePanelSessionDTO) (*dto.PanelResponseDTO, error) {
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = defaultPanelLevel
	}
	startedAt := s.now()
	session := model.PanelSession{
		ID:              uuid.NewString(),
		CandidateID:     candidateID,
		CandidateEmail:  req.CandidateEmail,
		CandidateName:   req.CandidateName,
		Track:           req.Track,
		ExperienceYears: req.ExperienceYears,
		TargetRole:      req.TargetRole,
		Difficulty:      difficulty,
		Phase:           model.PhaseWarmup,
		Status:          model.PanelStatusActive,
		Questions:       datatypes.NewJSONType([]model.PanelQuestion{}),
		Answers:         datatypes.NewJSONType([]model.PanelAnswer{}),
		FinalReport:     datatypes.NewJSONType(model.PanelReport{}),
		StartedAt:       &startedAt,
	}
	if err := s.repo.Create(ctx, &session); err != nil {
		log.Error().Err(err).Str("candidateID", candidateID).Msg("Failed to create panel session")
		return nil, fmt.Errorf("database error creating panel session: %w", err)
	}
	s.metrics.PanelTransitions.WithLabelValues(string(model.PhaseWarmup)).Inc()
	log.Info().Str("sessionID", session.ID).Str("track", session.Track).Msg("Panel session created")

	resp := buildPanelResponse(&session, nil, nil)
	return &resp, nil
}

func (s *panelService) CurrentQuestion(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error) {
	release, err := s.locker.Acquire(ctx, sessionID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.load(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Phase == model.PhaseReport {
		return nil, ErrInterviewComplete
	}
	if session.Status != model.PanelStatusActive {
		return nil, ErrSessionNotActive
	}
	return s.serveQuestion(ctx, session)
}

// serveQuestion reuses the question at the cursor or generates and stores it.
func (s *panelService) serveQuestion(ctx context.Context, session *model.PanelSession) (*dto.PanelResponseDTO, error) {
	question, ok := session.CurrentQuestion()
	if !ok {
		all := session.Questions.Data()
		asked := make([]string, 0, len(all))
		for _, q := range all {
			asked = append(asked, q.QuestionText)
		}
		question = s.ai.GenerateQuestion(ctx, QuestionRequest{
			Phase:          session.Phase,
			Profile:        session.Profile(),
			QuestionNumber: len(all) + 1,
			PreviousQA:     previousQA(session),
			AlreadyAsked:   asked,
		})
		if err := s.apply(ctx, session, model.QuestionAppend{Question: question}); err != nil {
			return nil, err
		}
		log.Info().Str("sessionID", session.ID).Str("phase", string(session.Phase)).Int("questionNumber", len(all)+1).Msg("Panel question generated")
	}
	resp := buildPanelResponse(session, &question, nil)
	return &resp, nil
}

func (s *panelService) SubmitAnswer(ctx context.Context, candidateID, sessionID string, req dto.PanelAnswerDTO) (*dto.PanelResponseDTO, error) {
	release, err := s.locker.Acquire(ctx, sessionID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.load(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Phase == model.PhaseReport || session.Status != model.PanelStatusActive {
		return nil, ErrSessionNotActive
	}
	question, ok := session.QuestionByID(req.QuestionID)
	if !ok {
		return nil, ErrQuestionNotInSession
	}

	if req.IsFollowUp {
		return s.submitFollowUp(ctx, session, question, req)
	}
	if session.HasPendingFollowUp(question.ID) {
		return nil, ErrFollowUpPending
	}
	if _, answered := session.AnswerFor(question.ID); answered {
		return nil, ErrAlreadyAnswered
	}

	eval := s.ai.EvaluateAnswer(ctx, question, req.Answer, req.Language, session.Profile())
	answer := model.PanelAnswer{
		QuestionID:       question.ID,
		Answer:           req.Answer,
		Language:         req.Language,
		Score:            eval.Score,
		Feedback:         eval.Feedback,
		FollowUpQuestion: eval.FollowUpQuestion,
	}
	view := &evaluationView{Score: eval.Score, Feedback: eval.Feedback, FollowUpQuestion: eval.FollowUpQuestion}

	if eval.FollowUpQuestion != "" && eval.Score < followUpScoreCutoff {
		if err := s.apply(ctx, session, model.AnswerRecord{Answer: answer}, model.FollowUpSet{QuestionID: question.ID}); err != nil {
			return nil, err
		}
		log.Info().Str("sessionID", session.ID).Str("questionID", question.ID).Float64("score", eval.Score).Msg("Follow-up requested")
		resp := buildPanelResponse(session, &question, view)
		return &resp, nil
	}

	if err := s.recordAndAdvance(ctx, session, model.AnswerRecord{Answer: answer}); err != nil {
		return nil, err
	}
	resp := buildPanelResponse(session, &question, view)
	return &resp, nil
}

func (s *panelService) submitFollowUp(ctx context.Context, session *model.PanelSession, question model.PanelQuestion, req dto.PanelAnswerDTO) (*dto.PanelResponseDTO, error) {
	if !session.HasPendingFollowUp(question.ID) {
		return nil, ErrNoPendingFollowUp
	}
	base, ok := session.AnswerFor(question.ID)
	if !ok {
		return nil, ErrNoPendingFollowUp
	}

	eval := s.ai.EvaluateFollowUp(ctx, question.QuestionText, base.FollowUpQuestion, req.Answer, session.Track)
	score := eval.Score
	base.FollowUpAnswer = req.Answer
	base.FollowUpScore = &score

	if err := s.recordAndAdvance(ctx, session, model.AnswerRecord{Answer: base}); err != nil {
		return nil, err
	}
	resp := buildPanelResponse(session, &question, &evaluationView{Score: eval.Score, Feedback: eval.Feedback})
	return &resp, nil
}

func (s *panelService) Skip(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error) {
	release, err := s.locker.Acquire(ctx, sessionID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.load(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.PanelStatusActive || session.Phase == model.PhaseReport {
		return nil, ErrSessionNotActive
	}
	current, ok := session.CurrentQuestion()
	if !ok {
		return nil, ErrNoCurrentQuestion
	}

	var patches []model.PanelPatch
	if _, answered := session.AnswerFor(current.ID); !answered {
		patches = append(patches, model.AnswerRecord{Answer: model.PanelAnswer{
			QuestionID: current.ID,
			Answer:     model.SkippedAnswerText,
			Score:      0,
			Feedback:   skippedFeedback,
		}})
	}
	if err := s.recordAndAdvance(ctx, session, patches...); err != nil {
		return nil, err
	}
	log.Info().Str("sessionID", session.ID).Str("questionID", current.ID).Msg("Panel question skipped")

	if session.Phase == model.PhaseReport {
		resp := buildPanelResponse(session, nil, nil)
		return &resp, nil
	}
	return s.serveQuestion(ctx, session)
}

// Abandon waits only briefly for the lock. The versioned write discards any
// in-flight mutation that loaded the session before it.
func (s *panelService) Abandon(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error) {
	release, err := s.locker.Acquire(ctx, sessionID, abandonLockWait)
	switch {
	case err == nil:
		defer release()
	case errors.Is(err, lock.ErrLockTimeout):
		log.Info().Str("sessionID", sessionID).Msg("Abandoning without session lock")
	default:
		return nil, err
	}

	for attempt := 0; attempt < abandonStaleRetries; attempt++ {
		session, err := s.load(ctx, candidateID, sessionID)
		if err != nil {
			return nil, err
		}
		if session.Status != model.PanelStatusActive {
			return nil, ErrSessionNotActive
		}

		answers := session.Answers.Data()
		report := s.ai.GenerateReport(ctx, s.reportRequest(session, answers, true))
		err = s.apply(ctx, session,
			model.FollowUpClear{},
			model.PhaseAdvance{Phase: model.PhaseReport, Index: 0},
			model.Terminalize{Status: model.PanelStatusAbandoned, Report: report, CompletedAt: s.now()},
		)
		if errors.Is(err, ErrSessionChanged) {
			log.Warn().Str("sessionID", sessionID).Int("attempt", attempt+1).Msg("Session changed during abandon, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.PanelTransitions.WithLabelValues(string(model.PhaseReport)).Inc()
		log.Info().Str("sessionID", session.ID).Float64("overallScore", report.OverallScore).Msg("Panel session abandoned")
		s.notify(session, true)
		resp := buildPanelResponse(session, nil, nil)
		return &resp, nil
	}
	return nil, ErrSessionChanged
}

func (s *panelService) GetReport(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error) {
	session, err := s.load(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Phase != model.PhaseReport {
		return nil, ErrReportNotReady
	}
	resp := buildPanelResponse(session, nil, nil)
	return &resp, nil
}

func (s *panelService) ListSessions(ctx context.Context, candidateID string) ([]dto.PanelSessionSummaryDTO, error) {
	sessions, err := s.repo.FindAllByCandidate(ctx, candidateID)
	if err != nil {
		log.Error().Err(err).Str("candidateID", candidateID).Msg("Failed to list panel sessions")
		return nil, fmt.Errorf("failed to list panel sessions: %w", err)
	}
	resp := make([]dto.PanelSessionSummaryDTO, 0, len(sessions))
	for _, ps := range sessions {
		item := dto.PanelSessionSummaryDTO{
			ID:          ps.ID,
			Track:       ps.Track,
			TargetRole:  ps.TargetRole,
			Difficulty:  ps.Difficulty,
			Phase:       ps.Phase,
			Status:      ps.Status,
			StartedAt:   ps.StartedAt,
			CompletedAt: ps.CompletedAt,
			CreatedAt:   ps.CreatedAt,
		}
		if ps.Phase == model.PhaseReport {
			overall := ps.FinalReport.Data().OverallScore
			item.OverallScore = &overall
		}
		resp = append(resp, item)
	}
	return resp, nil
}

// recordAndAdvance applies the given patches, clears the follow-up pointer and
// moves the cursor. Reaching the report phase completes the session.
func (s *panelService) recordAndAdvance(ctx context.Context, session *model.PanelSession, patches ...model.PanelPatch) error {
	patches = append(patches, model.FollowUpClear{})

	work := *session
	if _, err := model.ApplyPatches(&work, patches...); err != nil {
		return err
	}
	nextPhase, nextIndex := advance(&work)
	patches = append(patches, model.PhaseAdvance{Phase: nextPhase, Index: nextIndex})

	completing := nextPhase == model.PhaseReport
	if completing {
		report := s.ai.GenerateReport(ctx, s.reportRequest(&work, work.Answers.Data(), false))
		patches = append(patches, model.Terminalize{Status: model.PanelStatusCompleted, Report: report, CompletedAt: s.now()})
	}

	prevPhase := session.Phase
	if err := s.apply(ctx, session, patches...); err != nil {
		return err
	}
	if session.Phase != prevPhase {
		s.metrics.PanelTransitions.WithLabelValues(string(session.Phase)).Inc()
		log.Info().Str("sessionID", session.ID).Str("from", string(prevPhase)).Str("to", string(session.Phase)).Msg("Panel phase advanced")
	}
	if completing {
		log.Info().Str("sessionID", session.ID).Float64("overallScore", session.FinalReport.Data().OverallScore).Msg("Panel session completed")
		s.notify(session, false)
	}
	return nil
}

// advance computes the cursor after the current question. The core target is
// re-derived from base scores once three core answers exist.
func advance(session *model.PanelSession) (model.PanelPhase, int) {
	target, ok := phaseTargets[session.Phase]
	if !ok {
		target = 1
	}
	if session.Phase == model.PhaseCore {
		var sum float64
		var n int
		for _, a := range session.Answers.Data() {
			if q, found := session.QuestionByID(a.QuestionID); found && q.Phase == model.PhaseCore {
				sum += a.Score
				n++
			}
		}
		if n >= coreRetargetMinimum {
			avg := sum / float64(n)
			switch {
			case avg >= coreRetargetHighAvg:
				target = coreTargetHigh
			case avg < coreRetargetLowAvg:
				target = coreTargetLow
			default:
				target = coreTargetDefault
			}
		}
	}
	next := session.QuestionIndex + 1
	if next < target {
		return session.Phase, next
	}
	return session.Phase.Next(), 0
}

func (s *panelService) reportRequest(session *model.PanelSession, answers []model.PanelAnswer, partial bool) ReportRequest {
	var skipped int
	for _, a := range answers {
		if a.Skipped() {
			skipped++
		}
	}
	asked := len(answers)
	if partial {
		asked = len(session.Questions.Data())
	}
	return ReportRequest{
		Profile:           session.Profile(),
		Questions:         session.Questions.Data(),
		Answers:           answers,
		Partial:           partial,
		QuestionsAsked:    asked,
		QuestionsAnswered: len(answers) - skipped,
		QuestionsSkipped:  skipped,
	}
}

func (s *panelService) notify(session *model.PanelSession, abandoned bool) {
	s.notifier.Notify(ReportEmail{
		To:            session.CandidateEmail,
		CandidateName: session.CandidateName,
		SessionID:     session.ID,
		Report:        session.FinalReport.Data(),
		Abandoned:     abandoned,
	})
}

func (s *panelService) apply(ctx context.Context, session *model.PanelSession, patches ...model.PanelPatch) error {
	err := s.repo.Apply(ctx, session, patches...)
	if errors.Is(err, repository.ErrStaleSession) {
		return ErrSessionChanged
	}
	if err != nil {
		return fmt.Errorf("failed to update panel session %s: %w", session.ID, err)
	}
	return nil
}

func (s *panelService) load(ctx context.Context, candidateID, sessionID string) (*model.PanelSession, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load panel session %s: %w", sessionID, err)
	}
	if session.CandidateID != candidateID {
		return nil, ErrForbidden
	}
	return session, nil
}

func previousQA(session *model.PanelSession) []QARecord {
	var out []QARecord
	for _, a := range session.Answers.Data() {
		q, ok := session.QuestionByID(a.QuestionID)
		if !ok || q.QuestionText == "" {
			continue
		}
		out = append(out, QARecord{Question: q.QuestionText, Answer: a.Answer, Score: a.Score})
	}
	return out
}

func buildPanelResponse(session *model.PanelSession, question *model.PanelQuestion, eval *evaluationView) dto.PanelResponseDTO {
	resp := dto.PanelResponseDTO{
		Session: dto.PanelSessionDTO{
			ID:              session.ID,
			Track:           session.Track,
			ExperienceYears: session.ExperienceYears,
			Role:            session.TargetRole,
			Difficulty:      session.Difficulty,
			Phase:           session.Phase,
			QuestionIndex:   session.QuestionIndex,
			Status:          session.Status,
		},
	}
	for _, p := range Panel() {
		resp.Panel = append(resp.Panel, dto.PanelistDTO{Name: p.Name, Role: p.Role})
	}
	if question != nil {
		q := &dto.PanelQuestionDTO{
			ID:                   question.ID,
			AskedBy:              question.AskedBy,
			Type:                 question.Type,
			QuestionText:         question.QuestionText,
			Constraints:          question.Constraints,
			ExpectedAnswerFormat: question.ExpectedAnswerFormat,
			Editor:               question.Editor,
			SchemaInfo:           question.SchemaInfo,
		}
		if session.HasPendingFollowUp(question.ID) {
			if a, ok := session.AnswerFor(question.ID); ok && a.FollowUpQuestion != "" {
				followUp := a.FollowUpQuestion
				q.PendingFollowUp = &followUp
			}
		}
		resp.CurrentQuestion = q
	}
	if eval != nil {
		e := &dto.PanelEvaluationDTO{Score: eval.Score, Feedback: eval.Feedback}
		if session.PendingFollowUpFor != nil && eval.FollowUpQuestion != "" {
			followUp := eval.FollowUpQuestion
			e.FollowUpQuestion = &followUp
		}
		resp.Evaluation = e
	}
	if session.Phase == model.PhaseReport {
		report := session.FinalReport.Data()
		resp.FinalReport = &report
	}
	return resp
}
