package service

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/rs/zerolog/log"
)

const defaultQuestionCacheSize = 256

// QuestionService serves the active question set of a template. Sets are
// cached per template and dropped whenever a question is added to it.
type QuestionService interface {
	Create(ctx context.Context, question model.Question) (*model.Question, error)
	ActiveForTemplate(ctx context.Context, templateID uint) ([]model.Question, error)
}

type questionService struct {
	repo  repository.QuestionRepository
	cache *lru.Cache[uint, []model.Question]
}

func NewQuestionService(repo repository.QuestionRepository, cacheSize int) (QuestionService, error) {
	if cacheSize <= 0 {
		cacheSize = defaultQuestionCacheSize
	}
	cache, err := lru.New[uint, []model.Question](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create question cache: %w", err)
	}
	return &questionService{repo: repo, cache: cache}, nil
}

func (s *questionService) Create(ctx context.Context, question model.Question) (*model.Question, error) {
	if err := s.repo.Create(ctx, &question); err != nil {
		log.Error().Err(err).Uint("templateID", question.TemplateID).Msg("Failed to create question")
		return nil, fmt.Errorf("database error creating question: %w", err)
	}
	s.cache.Remove(question.TemplateID)
	return &question, nil
}

// ActiveForTemplate returns a copy of the cached slice so callers may reorder it.
func (s *questionService) ActiveForTemplate(ctx context.Context, templateID uint) ([]model.Question, error) {
	if qs, ok := s.cache.Get(templateID); ok {
		return append([]model.Question(nil), qs...), nil
	}
	qs, err := s.repo.FindActiveByTemplateID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions for template %d: %w", templateID, err)
	}
	s.cache.Add(templateID, qs)
	return append([]model.Question(nil), qs...), nil
}
