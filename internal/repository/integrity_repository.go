package repository

import (
	"context"

	"github.com/lshigami/intervue/internal/model"
	"gorm.io/gorm"
)

type IntegrityRepository interface {
	Create(ctx context.Context, event *model.IntegrityEvent) error
	CountBySession(ctx context.Context, sessionID uint) (int64, error)
	FindBySession(ctx context.Context, sessionID uint) ([]model.IntegrityEvent, error)
}

type integrityRepository struct {
	db *gorm.DB
}

func NewIntegrityRepository(db *gorm.DB) IntegrityRepository {
	return &integrityRepository{db: db}
}

func (r *integrityRepository) Create(ctx context.Context, event *model.IntegrityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *integrityRepository) CountBySession(ctx context.Context, sessionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.IntegrityEvent{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}

func (r *integrityRepository) FindBySession(ctx context.Context, sessionID uint) ([]model.IntegrityEvent, error) {
	var events []model.IntegrityEvent
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("occurred_at ASC").Find(&events).Error
	return events, err
}
