package repository

import (
	"context"
	"errors"

	"github.com/lshigami/intervue/internal/model"
	"gorm.io/gorm"
)

// ErrStaleSession is returned when a conditional panel write matched no row:
// the session was terminalized or another writer bumped its version.
var ErrStaleSession = errors.New("panel session changed or no longer active")

type PanelSessionRepository interface {
	Create(ctx context.Context, session *model.PanelSession) error
	FindByID(ctx context.Context, id string) (*model.PanelSession, error)
	FindAllByCandidate(ctx context.Context, candidateID string) ([]model.PanelSession, error)
	// Apply runs patches against s and persists the touched columns only if
	// the stored row is still active at s.Version. On success s reflects the
	// written state, including the bumped version.
	Apply(ctx context.Context, s *model.PanelSession, patches ...model.PanelPatch) error
}

type panelSessionRepository struct {
	db *gorm.DB
}

func NewPanelSessionRepository(db *gorm.DB) PanelSessionRepository {
	return &panelSessionRepository{db: db}
}

func (r *panelSessionRepository) Create(ctx context.Context, session *model.PanelSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *panelSessionRepository) FindByID(ctx context.Context, id string) (*model.PanelSession, error) {
	var session model.PanelSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *panelSessionRepository) FindAllByCandidate(ctx context.Context, candidateID string) ([]model.PanelSession, error) {
	var sessions []model.PanelSession
	err := r.db.WithContext(ctx).
		Select("id", "candidate_id", "track", "target_role", "difficulty", "phase", "status", "question_index", "final_report", "started_at", "completed_at", "created_at", "updated_at", "version").
		Where("candidate_id = ?", candidateID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *panelSessionRepository) Apply(ctx context.Context, s *model.PanelSession, patches ...model.PanelPatch) error {
	next := *s
	cols, err := model.ApplyPatches(&next, patches...)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(cols)+1)
	for _, col := range cols {
		updates[col] = columnValue(&next, col)
	}
	updates["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).Model(&model.PanelSession{}).
		Where("id = ? AND status = ? AND version = ?", s.ID, model.PanelStatusActive, s.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSession
	}

	next.Version = s.Version + 1
	*s = next
	return nil
}

func columnValue(s *model.PanelSession, col string) interface{} {
	switch col {
	case "questions":
		return s.Questions
	case "answers":
		return s.Answers
	case "pending_follow_up_for":
		return s.PendingFollowUpFor
	case "phase":
		return s.Phase
	case "question_index":
		return s.QuestionIndex
	case "status":
		return s.Status
	case "final_report":
		return s.FinalReport
	case "completed_at":
		return s.CompletedAt
	}
	return nil
}
