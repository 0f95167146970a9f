package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lshigami/intervue/config"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/queue"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	reportJobAttempts = 3
	reportJobBackoff  = 5 * time.Second
	evalJobAttempts   = 3
	evalJobBackoff    = 2 * time.Second
)

// SessionService drives a candidate through a fixed template. Grading and
// report generation happen on the job queue.
type SessionService interface {
	StartSession(ctx context.Context, candidateID string, req dto.StartSessionDTO) (*dto.SessionResponseDTO, error)
	NextQuestion(ctx context.Context, candidateID string, sessionID uint) (*dto.NextQuestionDTO, error)
	SubmitAnswer(ctx context.Context, candidateID string, sessionID uint, req dto.SubmitAnswerDTO) (*dto.SubmitAnswerResponseDTO, error)
	CompleteSession(ctx context.Context, candidateID string, sessionID uint) (*dto.SessionResponseDTO, error)
	GetSession(ctx context.Context, candidateID string, sessionID uint) (*dto.SessionResponseDTO, error)
	ListSessions(ctx context.Context, candidateID string) ([]dto.SessionResponseDTO, error)
}

type sessionService struct {
	templateRepo    repository.TemplateRepository
	sessionRepo     repository.SessionRepository
	answerRepo      repository.AnswerRepository
	questionService QuestionService
	jobs            queue.Queue
	evalOpts        queue.EnqueueOptions
	reportOpts      queue.EnqueueOptions
	now             func() time.Time
}

func NewSessionService(
	templateRepo repository.TemplateRepository,
	sessionRepo repository.SessionRepository,
	answerRepo repository.AnswerRepository,
	questionService QuestionService,
	jobs queue.Queue,
	cfg *config.Config,
) SessionService {
	evalOpts := queue.EnqueueOptions{MaxAttempts: cfg.Queue.MaxAttempts, Backoff: cfg.Queue.EvalBackoff}
	if evalOpts.MaxAttempts <= 0 {
		evalOpts.MaxAttempts = evalJobAttempts
	}
	if evalOpts.Backoff <= 0 {
		evalOpts.Backoff = evalJobBackoff
	}
	reportOpts := queue.EnqueueOptions{MaxAttempts: reportJobAttempts, Backoff: cfg.Queue.ReportBackoff}
	if reportOpts.Backoff <= 0 {
		reportOpts.Backoff = reportJobBackoff
	}
	return &sessionService{
		templateRepo:    templateRepo,
		sessionRepo:     sessionRepo,
		answerRepo:      answerRepo,
		questionService: questionService,
		jobs:            jobs,
		evalOpts:        evalOpts,
		reportOpts:      reportOpts,
		now:             time.Now,
	}
}

func (s *sessionService) StartSession(ctx context.Context, candidateID string, req dto.StartSessionDTO) (*dto.SessionResponseDTO, error) {
	template, err := s.templateRepo.FindByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template %d: %w", req.TemplateID, err)
	}
	if !template.IsActive {
		return nil, ErrTemplateNotFound
	}

	existing, err := s.sessionRepo.FindInProgress(ctx, candidateID, template.ID)
	switch {
	case err == nil:
		if existing.TimeRemaining(s.now()) > 0 {
			log.Info().Uint("sessionID", existing.ID).Str("candidateID", candidateID).Msg("Resuming in-progress session")
			existing.Template = *template
			resp := sessionDTO(*existing, nil)
			return &resp, nil
		}
		if err := s.expire(ctx, existing); err != nil {
			return nil, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to look up in-progress session: %w", err)
	}

	startedAt := s.now()
	session := model.Session{
		CandidateID:      candidateID,
		TemplateID:       template.ID,
		Status:           model.SessionStatusInProgress,
		StartedAt:        &startedAt,
		TimeLimitMinutes: template.TimeLimitMinutes,
	}
	if err := s.sessionRepo.Create(ctx, &session); err != nil {
		log.Error().Err(err).Str("candidateID", candidateID).Uint("templateID", template.ID).Msg("Failed to create session")
		return nil, fmt.Errorf("database error creating session: %w", err)
	}
	log.Info().Uint("sessionID", session.ID).Str("candidateID", candidateID).Uint("templateID", template.ID).Msg("Session started")

	session.Template = *template
	resp := sessionDTO(session, nil)
	return &resp, nil
}

func (s *sessionService) NextQuestion(ctx context.Context, candidateID string, sessionID uint) (*dto.NextQuestionDTO, error) {
	session, err := s.activeSession(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionService.ActiveForTemplate(ctx, session.TemplateID)
	if err != nil {
		return nil, err
	}
	if session.CurrentQuestionIndex >= len(questions) {
		return nil, ErrNoMoreQuestions
	}

	answers, err := s.answerRepo.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers for session %d: %w", session.ID, err)
	}
	answeredIDs := make([]uint, 0, len(answers))
	for _, a := range answers {
		answeredIDs = append(answeredIDs, a.QuestionID)
	}
	recent, err := s.answerRepo.FindRecentEvaluated(ctx, session.ID, sequencerWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent answers for session %d: %w", session.ID, err)
	}

	ordered := SequenceQuestions(questions, session.CurrentQuestionIndex, answeredIDs, recent)
	return &dto.NextQuestionDTO{
		Question:             candidateQuestionDTO(ordered[session.CurrentQuestionIndex]),
		Index:                session.CurrentQuestionIndex,
		Total:                len(questions),
		TimeRemainingSeconds: int(session.TimeRemaining(s.now()).Seconds()),
	}, nil
}

func (s *sessionService) SubmitAnswer(ctx context.Context, candidateID string, sessionID uint, req dto.SubmitAnswerDTO) (*dto.SubmitAnswerResponseDTO, error) {
	session, err := s.activeSession(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionService.ActiveForTemplate(ctx, session.TemplateID)
	if err != nil {
		return nil, err
	}
	var question *model.Question
	for i := range questions {
		if questions[i].ID == req.QuestionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return nil, ErrQuestionNotInSession
	}

	answers, err := s.answerRepo.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers for session %d: %w", session.ID, err)
	}
	for _, a := range answers {
		if a.QuestionID == req.QuestionID {
			return nil, ErrAlreadyAnswered
		}
	}

	selected := req.SelectedOptionIDs
	if selected == nil {
		selected = []string{}
	}
	answer := model.Answer{
		SessionID:           session.ID,
		QuestionID:          question.ID,
		SubmittedText:       req.SubmittedText,
		SelectedOptionIDs:   datatypes.NewJSONType(selected),
		ProgrammingLanguage: req.ProgrammingLanguage,
		TimeTakenSeconds:    req.TimeTakenSeconds,
		Status:              model.AnswerStatusPending,
		MaxScore:            question.MaxScore,
	}
	err = s.sessionRepo.RecordAnswer(ctx, &answer, session.CurrentQuestionIndex)
	switch {
	case errors.Is(err, repository.ErrDuplicateAnswer):
		return nil, ErrAlreadyAnswered
	case errors.Is(err, repository.ErrIndexMoved):
		log.Warn().Uint("sessionID", session.ID).Uint("questionID", question.ID).Int("index", session.CurrentQuestionIndex).Msg("Question index moved concurrently")
		return nil, s.submitConflict(ctx, session.ID, question.ID)
	case err != nil:
		log.Error().Err(err).Uint("sessionID", session.ID).Uint("questionID", question.ID).Msg("Failed to store answer")
		return nil, fmt.Errorf("database error creating answer: %w", err)
	}

	payload := queue.EvaluationPayload{AnswerID: answer.ID, SessionID: session.ID, QuestionType: string(question.Type)}
	if _, err := s.jobs.Enqueue(ctx, queue.EvaluationQueue, payload, s.evalOpts); err != nil {
		log.Error().Err(err).Uint("answerID", answer.ID).Msg("Failed to enqueue evaluation job")
		return nil, fmt.Errorf("failed to schedule evaluation: %w", err)
	}

	return &dto.SubmitAnswerResponseDTO{
		AnswerID:      answer.ID,
		NextAvailable: session.CurrentQuestionIndex+1 < len(questions),
	}, nil
}

// submitConflict tells a lost submit race for the same question apart from
// any other concurrent change to the session.
func (s *sessionService) submitConflict(ctx context.Context, sessionID, questionID uint) error {
	answers, err := s.answerRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load answers for session %d: %w", sessionID, err)
	}
	for _, a := range answers {
		if a.QuestionID == questionID {
			return ErrAlreadyAnswered
		}
	}
	return ErrSessionChanged
}

// CompleteSession is idempotent: a completed session is returned as is.
func (s *sessionService) CompleteSession(ctx context.Context, candidateID string, sessionID uint) (*dto.SessionResponseDTO, error) {
	session, err := s.ownedSession(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case model.SessionStatusCompleted:
		return s.GetSession(ctx, candidateID, sessionID)
	case model.SessionStatusInProgress:
	default:
		return nil, ErrSessionNotActive
	}
	if err := s.finish(ctx, session); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, candidateID, sessionID)
}

func (s *sessionService) GetSession(ctx context.Context, candidateID string, sessionID uint) (*dto.SessionResponseDTO, error) {
	session, err := s.ownedSession(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answerRepo.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers for session %d: %w", session.ID, err)
	}
	resp := sessionDTO(*session, answers)
	return &resp, nil
}

func (s *sessionService) ListSessions(ctx context.Context, candidateID string) ([]dto.SessionResponseDTO, error) {
	sessions, err := s.sessionRepo.FindAllByCandidate(ctx, candidateID)
	if err != nil {
		log.Error().Err(err).Str("candidateID", candidateID).Msg("Failed to list sessions")
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	resp := make([]dto.SessionResponseDTO, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionDTO(session, nil))
	}
	return resp, nil
}

func (s *sessionService) ownedSession(ctx context.Context, candidateID string, sessionID uint) (*model.Session, error) {
	return loadOwnedSession(ctx, s.sessionRepo, candidateID, sessionID)
}

func loadOwnedSession(ctx context.Context, repo repository.SessionRepository, candidateID string, sessionID uint) (*model.Session, error) {
	session, err := repo.FindByIDWithTemplate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	if session.CandidateID != candidateID {
		return nil, ErrForbidden
	}
	return session, nil
}

// activeSession also enforces the time limit, closing the session once it has run out.
func (s *sessionService) activeSession(ctx context.Context, candidateID string, sessionID uint) (*model.Session, error) {
	session, err := s.ownedSession(ctx, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusInProgress {
		return nil, ErrSessionNotActive
	}
	if session.TimeRemaining(s.now()) <= 0 {
		if err := s.expire(ctx, session); err != nil {
			return nil, err
		}
		return nil, ErrTimeLimitExceeded
	}
	return session, nil
}

func (s *sessionService) expire(ctx context.Context, session *model.Session) error {
	log.Info().Uint("sessionID", session.ID).Msg("Session time limit exceeded, completing")
	return s.finish(ctx, session)
}

func (s *sessionService) finish(ctx context.Context, session *model.Session) error {
	completedAt := s.now()
	duration := 0
	if session.StartedAt != nil {
		duration = int(completedAt.Sub(*session.StartedAt).Seconds())
	}
	completed, err := s.sessionRepo.MarkCompleted(ctx, session.ID, completedAt, duration)
	if err != nil {
		return fmt.Errorf("failed to complete session %d: %w", session.ID, err)
	}
	if !completed {
		// Another request closed it first and owns the report job.
		return nil
	}
	if _, err := s.jobs.Enqueue(ctx, queue.ReportQueue, queue.ReportPayload{SessionID: session.ID}, s.reportOpts); err != nil {
		log.Error().Err(err).Uint("sessionID", session.ID).Msg("Failed to enqueue report job")
		return fmt.Errorf("failed to schedule report: %w", err)
	}
	log.Info().Uint("sessionID", session.ID).Int("durationSeconds", duration).Msg("Session completed")
	return nil
}
