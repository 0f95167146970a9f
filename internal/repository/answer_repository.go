package repository

import (
	"context"
	"time"

	"github.com/lshigami/intervue/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnswerRepository interface {
	Create(ctx context.Context, answer *model.Answer) error
	FindByIDWithQuestion(ctx context.Context, id uint) (*model.Answer, error)
	FindBySession(ctx context.Context, sessionID uint) ([]model.Answer, error)
	FindEvaluatedBySession(ctx context.Context, sessionID uint) ([]model.Answer, error)
	FindRecentEvaluated(ctx context.Context, sessionID uint, limit int) ([]model.Answer, error)
	MarkEvaluating(ctx context.Context, id uint) error
	SaveEvaluation(ctx context.Context, id uint, score float64, detail model.EvaluationDetail, evaluatedAt time.Time) error
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) Create(ctx context.Context, answer *model.Answer) error {
	return r.db.WithContext(ctx).Create(answer).Error
}

func (r *answerRepository) FindByIDWithQuestion(ctx context.Context, id uint) (*model.Answer, error) {
	var answer model.Answer
	if err := r.db.WithContext(ctx).Preload("Question").First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

// FindBySession returns every answer of a session in submission order.
func (r *answerRepository) FindBySession(ctx context.Context, sessionID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) FindEvaluatedBySession(ctx context.Context, sessionID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.WithContext(ctx).
		Preload("Question").
		Where("session_id = ? AND status = ?", sessionID, model.AnswerStatusEvaluated).
		Order("created_at ASC, id ASC").
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) FindRecentEvaluated(ctx context.Context, sessionID uint, limit int) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionID, model.AnswerStatusEvaluated).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) MarkEvaluating(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Answer{}).
		Where("id = ? AND status <> ?", id, model.AnswerStatusEvaluated).
		Update("status", model.AnswerStatusEvaluating).Error
}

func (r *answerRepository) SaveEvaluation(ctx context.Context, id uint, score float64, detail model.EvaluationDetail, evaluatedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Answer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.AnswerStatusEvaluated,
			"score":        score,
			"evaluation":   datatypes.NewJSONType(detail),
			"evaluated_at": evaluatedAt,
		}).Error
}
