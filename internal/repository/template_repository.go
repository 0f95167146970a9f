package repository

import (
	"context"

	"github.com/lshigami/intervue/internal/model"
	"gorm.io/gorm"
)

type TemplateWithCount struct {
	model.Template
	QuestionCount int
}

type TemplateRepository interface {
	Create(ctx context.Context, template *model.Template) error
	FindByID(ctx context.Context, id uint) (*model.Template, error)
	FindByIDWithQuestions(ctx context.Context, id uint) (*model.Template, error)
	FindAllActiveWithQuestionCount(ctx context.Context) ([]TemplateWithCount, error)
}

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, template *model.Template) error {
	// Questions populated on the template are inserted in the same statement.
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *templateRepository) FindByID(ctx context.Context, id uint) (*model.Template, error) {
	var template model.Template
	if err := r.db.WithContext(ctx).First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *templateRepository) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Template, error) {
	var template model.Template
	err := r.db.WithContext(ctx).Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ?", true).Order("questions.order_index ASC, questions.id ASC")
	}).First(&template, id).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *templateRepository) FindAllActiveWithQuestionCount(ctx context.Context) ([]TemplateWithCount, error) {
	var results []TemplateWithCount
	err := r.db.WithContext(ctx).Model(&model.Template{}).
		Select("templates.*, (SELECT COUNT(*) FROM questions WHERE questions.template_id = templates.id AND questions.is_active AND questions.deleted_at IS NULL) as question_count").
		Where("templates.is_active = ? AND templates.deleted_at IS NULL", true).
		Order("templates.created_at DESC").
		Scan(&results).Error
	return results, err
}
