package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/queue"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const forceFinalizeFeedback = "Evaluation failed - score pending manual review"

// EvaluationService is the worker side of the linear answer pipeline.
type EvaluationService interface {
	HandleJob(ctx context.Context, job queue.Job) error
	OnExhausted(ctx context.Context, job queue.Job, err error)
	Evaluate(ctx context.Context, answerID uint) error
	RecomputeSessionScore(ctx context.Context, sessionID uint) error
}

type evaluationService struct {
	answerRepo  repository.AnswerRepository
	sessionRepo repository.SessionRepository
	graders     GraderRegistry
	now         func() time.Time
}

func NewEvaluationService(
	answerRepo repository.AnswerRepository,
	sessionRepo repository.SessionRepository,
	graders GraderRegistry,
) EvaluationService {
	return &evaluationService{
		answerRepo:  answerRepo,
		sessionRepo: sessionRepo,
		graders:     graders,
		now:         time.Now,
	}
}

func (s *evaluationService) HandleJob(ctx context.Context, job queue.Job) error {
	var payload queue.EvaluationPayload
	if err := job.Decode(&payload); err != nil {
		log.Error().Err(err).Str("jobID", job.ID).Msg("Dropping evaluation job with bad payload")
		return nil
	}
	log.Info().Uint("answerID", payload.AnswerID).Str("questionType", payload.QuestionType).Int("attempt", job.Attempt).Msg("Evaluating answer")
	return s.Evaluate(ctx, payload.AnswerID)
}

// OnExhausted finalizes an answer whose job failed every attempt.
func (s *evaluationService) OnExhausted(ctx context.Context, job queue.Job, err error) {
	var payload queue.EvaluationPayload
	if decodeErr := job.Decode(&payload); decodeErr != nil {
		return
	}
	log.Error().Err(err).Uint("answerID", payload.AnswerID).Msg("Evaluation attempts exhausted, forcing score")
	if ferr := s.forceFinalize(ctx, payload.AnswerID, payload.SessionID); ferr != nil {
		log.Error().Err(ferr).Uint("answerID", payload.AnswerID).Msg("Failed to force-finalize answer")
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, answerID uint) error {
	answer, err := s.answerRepo.FindByIDWithQuestion(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Uint("answerID", answerID).Msg("Answer not found, dropping evaluation job")
			return nil
		}
		return fmt.Errorf("failed to load answer %d: %w", answerID, err)
	}

	if answer.Status == model.AnswerStatusEvaluated {
		return s.RecomputeSessionScore(ctx, answer.SessionID)
	}

	if err := s.answerRepo.MarkEvaluating(ctx, answerID); err != nil {
		return fmt.Errorf("failed to mark answer %d evaluating: %w", answerID, err)
	}

	result, gradeErr := s.graders.Grade(ctx, &answer.Question, answer)
	if gradeErr != nil {
		log.Error().Err(gradeErr).Uint("answerID", answerID).Msg("Grading failed, forcing score")
		return s.forceFinalize(ctx, answerID, answer.SessionID)
	}

	if err := s.save(ctx, answerID, result.Score, result.Detail); err != nil {
		return fmt.Errorf("failed to save evaluation for answer %d: %w", answerID, err)
	}
	log.Info().Uint("answerID", answerID).Float64("score", result.Score).Float64("maxScore", answer.Question.MaxScore).Msg("Answer evaluated")

	return s.RecomputeSessionScore(ctx, answer.SessionID)
}

func (s *evaluationService) forceFinalize(ctx context.Context, answerID, sessionID uint) error {
	detail := model.EvaluationDetail{AIFeedback: forceFinalizeFeedback}
	if err := s.save(ctx, answerID, 0, detail); err != nil {
		return err
	}
	if sessionID == 0 {
		return nil
	}
	return s.RecomputeSessionScore(ctx, sessionID)
}

// save retries briefly on transient database errors before giving the job back to the queue.
func (s *evaluationService) save(ctx context.Context, answerID uint, score float64, detail model.EvaluationDetail) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.Retry(func() error {
		return s.answerRepo.SaveEvaluation(ctx, answerID, score, detail, s.now())
	}, backoff.WithContext(b, ctx))
}

// RecomputeSessionScore rebuilds the aggregate from every evaluated answer,
// so duplicate or reordered jobs converge on the same totals.
func (s *evaluationService) RecomputeSessionScore(ctx context.Context, sessionID uint) error {
	answers, err := s.answerRepo.FindEvaluatedBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load evaluated answers for session %d: %w", sessionID, err)
	}
	var total, maxTotal float64
	for _, a := range answers {
		if a.Score != nil {
			total += *a.Score
		}
		if a.MaxScore > 0 {
			maxTotal += a.MaxScore
		} else {
			maxTotal++
		}
	}
	pct := round1(percentage(total, maxTotal))
	if err := s.sessionRepo.UpdateScores(ctx, sessionID, total, maxTotal, pct); err != nil {
		return fmt.Errorf("failed to update scores for session %d: %w", sessionID, err)
	}
	return nil
}
