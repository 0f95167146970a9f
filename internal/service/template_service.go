package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultTimeLimitMinutes = 60
	defaultTemplateLevel    = "mid"
)

type TemplateService interface {
	CreateTemplate(ctx context.Context, req dto.TemplateCreateDTO) (*dto.TemplateResponseDTO, error)
	AddQuestion(ctx context.Context, templateID uint, req dto.QuestionCreateDTO) (*dto.QuestionResponseDTO, error)
	GetTemplate(ctx context.Context, templateID uint) (*dto.TemplateResponseDTO, error)
	GetTemplateSummary(ctx context.Context, templateID uint) (*dto.TemplateSummaryDTO, error)
	ListActiveTemplates(ctx context.Context) ([]dto.TemplateSummaryDTO, error)
}

type templateService struct {
	templateRepo    repository.TemplateRepository
	questionService QuestionService
	defaultPass     float64
}

func NewTemplateService(templateRepo repository.TemplateRepository, questionService QuestionService, defaultPass float64) TemplateService {
	if defaultPass <= 0 {
		defaultPass = 70
	}
	return &templateService{templateRepo: templateRepo, questionService: questionService, defaultPass: defaultPass}
}

func (s *templateService) CreateTemplate(ctx context.Context, req dto.TemplateCreateDTO) (*dto.TemplateResponseDTO, error) {
	for i, q := range req.Questions {
		if err := validateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
	}

	sections := make(map[string]model.SectionConfig, len(req.SectionConfig))
	for name, sc := range req.SectionConfig {
		sections[name] = model.SectionConfig{Count: sc.Count, Weight: sc.Weight}
	}
	template := model.Template{
		Name:                req.Name,
		Description:         req.Description,
		Role:                req.Role,
		Difficulty:          req.Difficulty,
		SectionConfig:       datatypes.NewJSONType(sections),
		TimeLimitMinutes:    req.TimeLimitMinutes,
		PassingScorePercent: req.PassingScorePercent,
		IsActive:            true,
	}
	if template.Difficulty == "" {
		template.Difficulty = defaultTemplateLevel
	}
	if template.TimeLimitMinutes <= 0 {
		template.TimeLimitMinutes = defaultTimeLimitMinutes
	}
	if template.PassingScorePercent <= 0 {
		template.PassingScorePercent = s.defaultPass
	}
	for i, q := range req.Questions {
		if q.OrderIndex == 0 {
			q.OrderIndex = i
		}
		template.Questions = append(template.Questions, questionFromDTO(0, q))
	}

	if err := s.templateRepo.Create(ctx, &template); err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Failed to create template in database")
		return nil, fmt.Errorf("database error creating template: %w", err)
	}
	log.Info().Uint("templateID", template.ID).Int("questions", len(template.Questions)).Msg("Template created")

	return s.GetTemplate(ctx, template.ID)
}

func (s *templateService) AddQuestion(ctx context.Context, templateID uint, req dto.QuestionCreateDTO) (*dto.QuestionResponseDTO, error) {
	if _, err := s.templateRepo.FindByID(ctx, templateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template %d: %w", templateID, err)
	}
	if err := validateQuestion(req); err != nil {
		return nil, err
	}
	question, err := s.questionService.Create(ctx, questionFromDTO(templateID, req))
	if err != nil {
		return nil, err
	}
	resp := adminQuestionDTO(*question)
	return &resp, nil
}

func (s *templateService) GetTemplate(ctx context.Context, templateID uint) (*dto.TemplateResponseDTO, error) {
	template, err := s.templateRepo.FindByIDWithQuestions(ctx, templateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template %d: %w", templateID, err)
	}
	var resp dto.TemplateResponseDTO
	if err := copier.Copy(&resp, template); err != nil {
		log.Error().Err(err).Msg("Failed to copy Template model to TemplateResponseDTO")
		return nil, fmt.Errorf("error preparing response data: %w", err)
	}
	for _, q := range template.Questions {
		resp.Questions = append(resp.Questions, adminQuestionDTO(q))
	}
	return &resp, nil
}

// GetTemplateSummary is the candidate view: no questions, so no answer keys.
func (s *templateService) GetTemplateSummary(ctx context.Context, templateID uint) (*dto.TemplateSummaryDTO, error) {
	template, err := s.templateRepo.FindByIDWithQuestions(ctx, templateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template %d: %w", templateID, err)
	}
	if !template.IsActive {
		return nil, ErrTemplateNotFound
	}
	var resp dto.TemplateSummaryDTO
	copier.Copy(&resp, template)
	resp.QuestionCount = 0
	for _, q := range template.Questions {
		if q.IsActive {
			resp.QuestionCount++
		}
	}
	return &resp, nil
}

func (s *templateService) ListActiveTemplates(ctx context.Context) ([]dto.TemplateSummaryDTO, error) {
	rows, err := s.templateRepo.FindAllActiveWithQuestionCount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list templates")
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	resp := make([]dto.TemplateSummaryDTO, 0, len(rows))
	for _, row := range rows {
		var item dto.TemplateSummaryDTO
		copier.Copy(&item, &row.Template)
		item.QuestionCount = row.QuestionCount
		resp = append(resp, item)
	}
	return resp, nil
}

// validateQuestion checks that the type-specific block a grader needs is present.
func validateQuestion(q dto.QuestionCreateDTO) error {
	switch model.QuestionType(q.Type) {
	case model.QuestionTypeMCQ:
		if len(q.Options) < 2 {
			return fmt.Errorf("mcq question needs at least 2 options, got %d", len(q.Options))
		}
		ids := make(map[string]bool, len(q.Options))
		hasCorrect := false
		for _, o := range q.Options {
			if ids[o.ID] {
				return fmt.Errorf("duplicate option id %q", o.ID)
			}
			ids[o.ID] = true
			hasCorrect = hasCorrect || o.IsCorrect
		}
		for _, id := range q.CorrectAnswerIDs {
			if !ids[id] {
				return fmt.Errorf("correct answer id %q is not an option", id)
			}
		}
		if !hasCorrect && len(q.CorrectAnswerIDs) == 0 {
			return errors.New("mcq question needs at least one correct option")
		}
	case model.QuestionTypeCoding:
		if q.CodingConfig == nil || len(q.CodingConfig.TestCases) == 0 {
			return errors.New("coding question needs coding_config with at least one test case")
		}
	case model.QuestionTypeBehavioral, model.QuestionTypeSystemDesign:
	default:
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
	return nil
}
