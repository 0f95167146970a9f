package repository

import (
	"context"
	"errors"

	"github.com/lshigami/intervue/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportRepository interface {
	// FindOrCreatePending returns the session's report, inserting a pending one on first use.
	FindOrCreatePending(ctx context.Context, sessionID uint) (*model.Report, error)
	FindBySessionID(ctx context.Context, sessionID uint) (*model.Report, error)
	UpdateStatus(ctx context.Context, id uint, status model.ReportStatus) error
	Save(ctx context.Context, report *model.Report) error
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) FindOrCreatePending(ctx context.Context, sessionID uint) (*model.Report, error) {
	existing, err := r.FindBySessionID(ctx, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	report := &model.Report{SessionID: sessionID, Status: model.ReportStatusPending}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(report).Error; err != nil {
		return nil, err
	}
	// A concurrent insert wins the unique index; reload whichever row exists.
	return r.FindBySessionID(ctx, sessionID)
}

func (r *reportRepository) FindBySessionID(ctx context.Context, sessionID uint) (*model.Report, error) {
	var report model.Report
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id uint, status model.ReportStatus) error {
	return r.db.WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).Update("status", status).Error
}

func (r *reportRepository) Save(ctx context.Context, report *model.Report) error {
	return r.db.WithContext(ctx).Save(report).Error
}
