package dto

import (
	"time"

	"github.com/lshigami/intervue/internal/model"
)

type CreatePanelSessionDTO struct {
	CandidateEmail  string `json:"candidate_email" binding:"omitempty,email"`
	CandidateName   string `json:"candidate_name"`
	Track           string `json:"track" binding:"required"`
	ExperienceYears string `json:"experience_years" binding:"required"`
	TargetRole      string `json:"target_role" binding:"required"`
	Difficulty      string `json:"difficulty" binding:"omitempty,oneof=Normal Hard"`
}

type PanelAnswerDTO struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
	Language   string `json:"language"`
	IsFollowUp bool   `json:"is_follow_up"`
}

type PanelSessionDTO struct {
	ID              string            `json:"id"`
	Track           string            `json:"track"`
	ExperienceYears string            `json:"experience_years"`
	Role            string            `json:"role"`
	Difficulty      string            `json:"difficulty"`
	Phase           model.PanelPhase  `json:"phase"`
	QuestionIndex   int               `json:"question_index"`
	Status          model.PanelStatus `json:"status"`
}

type PanelistDTO struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type PanelQuestionDTO struct {
	ID                   string             `json:"id"`
	AskedBy              string             `json:"asked_by"`
	Type                 string             `json:"type"`
	QuestionText         string             `json:"question_text"`
	Constraints          string             `json:"constraints,omitempty"`
	ExpectedAnswerFormat string             `json:"expected_answer_format"`
	Editor               *model.PanelEditor `json:"editor,omitempty"`
	SchemaInfo           string             `json:"schema_info,omitempty"`
	PendingFollowUp      *string            `json:"pending_follow_up"`
}

type PanelEvaluationDTO struct {
	Score            float64 `json:"score"`
	Feedback         string  `json:"feedback"`
	FollowUpQuestion *string `json:"follow_up_question"`
}

// PanelResponseDTO is returned by every panel operation.
type PanelResponseDTO struct {
	Session         PanelSessionDTO     `json:"session"`
	Panel           []PanelistDTO       `json:"panel"`
	CurrentQuestion *PanelQuestionDTO   `json:"current_question"`
	Evaluation      *PanelEvaluationDTO `json:"evaluation"`
	FinalReport     *model.PanelReport  `json:"final_report"`
}

type PanelSessionSummaryDTO struct {
	ID           string            `json:"id"`
	Track        string            `json:"track"`
	TargetRole   string            `json:"target_role"`
	Difficulty   string            `json:"difficulty"`
	Phase        model.PanelPhase  `json:"phase"`
	Status       model.PanelStatus `json:"status"`
	OverallScore *float64          `json:"overall_score,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
