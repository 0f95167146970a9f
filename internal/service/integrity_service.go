package service

import (
	"context"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

const integrityFlagThreshold = 5

// IntegrityService records proctoring signals. It only counts; judging them is
// left to the report.
type IntegrityService interface {
	RecordEvent(ctx context.Context, candidateID string, sessionID uint, req dto.IntegrityEventCreateDTO) (*dto.IntegrityEventResponseDTO, error)
	ListEvents(ctx context.Context, candidateID string, sessionID uint) ([]dto.IntegrityEventResponseDTO, error)
}

type integrityService struct {
	sessionRepo   repository.SessionRepository
	integrityRepo repository.IntegrityRepository
}

func NewIntegrityService(sessionRepo repository.SessionRepository, integrityRepo repository.IntegrityRepository) IntegrityService {
	return &integrityService{sessionRepo: sessionRepo, integrityRepo: integrityRepo}
}

func (s *integrityService) RecordEvent(ctx context.Context, candidateID string, sessionID uint, req dto.IntegrityEventCreateDTO) (*dto.IntegrityEventResponseDTO, error) {
	eventType := model.IntegrityEventType(req.EventType)
	if !eventType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegrityEvent, req.EventType)
	}
	session, err := loadOwnedSession(ctx, s.sessionRepo, candidateID, sessionID)
	if err != nil {
		return nil, err
	}

	event := model.IntegrityEvent{
		SessionID:  session.ID,
		EventType:  eventType,
		Severity:   eventType.Severity(),
		QuestionID: req.QuestionID,
		Metadata:   datatypes.JSONMap(req.Metadata),
	}
	if err := s.integrityRepo.Create(ctx, &event); err != nil {
		log.Error().Err(err).Uint("sessionID", session.ID).Str("eventType", req.EventType).Msg("Failed to store integrity event")
		return nil, fmt.Errorf("database error creating integrity event: %w", err)
	}

	count, err := s.integrityRepo.CountBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count integrity events: %w", err)
	}
	var tabSwitch, copyPaste int
	switch eventType {
	case model.IntegrityTabSwitch:
		tabSwitch = 1
	case model.IntegrityCopyPaste:
		copyPaste = 1
	}
	flag := count >= integrityFlagThreshold
	if tabSwitch > 0 || copyPaste > 0 || flag {
		if err := s.sessionRepo.IncrementIntegrity(ctx, session.ID, tabSwitch, copyPaste, flag); err != nil {
			return nil, fmt.Errorf("failed to update integrity counters: %w", err)
		}
	}
	if flag && !session.IsIntegrityFlagged {
		log.Warn().Uint("sessionID", session.ID).Int64("events", count).Msg("Session flagged for integrity review")
	}

	resp := integrityEventDTO(event)
	return &resp, nil
}

func (s *integrityService) ListEvents(ctx context.Context, candidateID string, sessionID uint) ([]dto.IntegrityEventResponseDTO, error) {
	session, err := loadOwnedSession(ctx, s.sessionRepo, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	events, err := s.integrityRepo.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrity events: %w", err)
	}
	resp := make([]dto.IntegrityEventResponseDTO, 0, len(events))
	for _, e := range events {
		resp = append(resp, integrityEventDTO(e))
	}
	return resp, nil
}

func integrityEventDTO(e model.IntegrityEvent) dto.IntegrityEventResponseDTO {
	var resp dto.IntegrityEventResponseDTO
	copier.Copy(&resp, &e)
	resp.EventType = string(e.EventType)
	resp.Severity = string(e.Severity)
	resp.Metadata = map[string]interface{}(e.Metadata)
	return resp
}
