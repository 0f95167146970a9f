package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lshigami/intervue/internal/model"
	"gorm.io/gorm"
)

var (
	// ErrIndexMoved means the session cursor no longer points at the expected
	// question or the session left in_progress.
	ErrIndexMoved = errors.New("session question index moved")
	// ErrDuplicateAnswer means the question already has an answer in the session.
	ErrDuplicateAnswer = errors.New("question already answered in session")
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id uint) (*model.Session, error)
	FindByIDWithTemplate(ctx context.Context, id uint) (*model.Session, error)
	FindInProgress(ctx context.Context, candidateID string, templateID uint) (*model.Session, error)
	FindAllByCandidate(ctx context.Context, candidateID string) ([]model.Session, error)
	RecordAnswer(ctx context.Context, answer *model.Answer, expected int) error
	UpdateScores(ctx context.Context, id uint, total, maxScore, percentage float64) error
	MarkCompleted(ctx context.Context, id uint, completedAt time.Time, durationSeconds int) (bool, error)
	IncrementIntegrity(ctx context.Context, id uint, tabSwitch, copyPaste int, flag bool) error
	SetReport(ctx context.Context, id uint, reportID uint) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) FindByID(ctx context.Context, id uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindByIDWithTemplate(ctx context.Context, id uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Preload("Template").First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindInProgress(ctx context.Context, candidateID string, templateID uint) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("candidate_id = ? AND template_id = ? AND status = ?", candidateID, templateID, model.SessionStatusInProgress).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindAllByCandidate(ctx context.Context, candidateID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Preload("Template").
		Where("candidate_id = ?", candidateID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// RecordAnswer stores the answer and advances the question cursor in one
// transaction. The cursor update runs first so it holds the session row lock
// while the answer is inserted.
func (r *sessionRepository) RecordAnswer(ctx context.Context, answer *model.Answer, expected int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Session{}).
			Where("id = ? AND current_question_index = ? AND status = ?", answer.SessionID, expected, model.SessionStatusInProgress).
			Update("current_question_index", gorm.Expr("current_question_index + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return ErrIndexMoved
		}
		if err := tx.Create(answer).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAnswer
			}
			return err
		}
		return nil
	})
}

func (r *sessionRepository) UpdateScores(ctx context.Context, id uint, total, maxScore, percentage float64) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_score":        total,
			"max_possible_score": maxScore,
			"percentage_score":   percentage,
		}).Error
}

// MarkCompleted reports false when the session had already left in_progress.
func (r *sessionRepository) MarkCompleted(ctx context.Context, id uint, completedAt time.Time, durationSeconds int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND status = ?", id, model.SessionStatusInProgress).
		Updates(map[string]interface{}{
			"status":           model.SessionStatusCompleted,
			"completed_at":     completedAt,
			"duration_seconds": durationSeconds,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *sessionRepository) IncrementIntegrity(ctx context.Context, id uint, tabSwitch, copyPaste int, flag bool) error {
	updates := map[string]interface{}{
		"tab_switch_count": gorm.Expr("tab_switch_count + ?", tabSwitch),
		"copy_paste_count": gorm.Expr("copy_paste_count + ?", copyPaste),
	}
	if flag {
		updates["is_integrity_flagged"] = true
	}
	return r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).Updates(updates).Error
}

func (r *sessionRepository) SetReport(ctx context.Context, id uint, reportID uint) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).Update("report_id", reportID).Error
}
