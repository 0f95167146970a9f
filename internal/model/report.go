package model

import (
	"time"

	"gorm.io/datatypes"
)

type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusReady      ReportStatus = "ready"
	ReportStatusFailed     ReportStatus = "failed"
)

type ReportSummary struct {
	Role            string  `json:"role"`
	Difficulty      string  `json:"difficulty"`
	TotalScore      float64 `json:"totalScore"`
	MaxScore        float64 `json:"maxScore"`
	PercentageScore float64 `json:"percentageScore"`
	Passed          bool    `json:"passed"`
	DurationMinutes int     `json:"durationMinutes"`
	CompletedAt     string  `json:"completedAt"`
}

type SectionBreakdown struct {
	SectionType   string  `json:"sectionType"`
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"maxScore"`
	Percentage    float64 `json:"percentage"`
	QuestionCount int     `json:"questionCount"`
	CorrectCount  int     `json:"correctCount"`
	Passed        bool    `json:"passed"`
}

type QuestionDetail struct {
	QuestionID       uint    `json:"questionId"`
	Type             string  `json:"type"`
	Content          string  `json:"content"`
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"maxScore"`
	TimeTakenSeconds int     `json:"timeTakenSeconds"`
	Feedback         string  `json:"feedback"`
}

type IntegrityEventCount struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

type IntegrityReport struct {
	Flagged     bool                  `json:"flagged"`
	FlagCount   int                   `json:"flagCount"`
	Events      []IntegrityEventCount `json:"events"`
	OverallRisk string                `json:"overallRisk"`
}

// Report is the recruiter-facing result of a completed linear session.
type Report struct {
	ID               uint                                   `gorm:"primarykey" json:"id"`
	SessionID        uint                                   `json:"session_id" gorm:"not null;uniqueIndex"`
	Status           ReportStatus                           `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	Summary          datatypes.JSONType[ReportSummary]      `json:"summary" gorm:"type:jsonb;not null"`
	SectionBreakdown datatypes.JSONType[[]SectionBreakdown] `json:"section_breakdown" gorm:"type:jsonb;not null"`
	QuestionDetails  datatypes.JSONType[[]QuestionDetail]   `json:"question_details" gorm:"type:jsonb;not null"`
	Integrity        datatypes.JSONType[IntegrityReport]    `json:"integrity_report" gorm:"type:jsonb;not null"`
	AINarrative      string                                 `json:"ai_narrative" gorm:"type:text"`
	CreatedAt        time.Time                              `json:"created_at"`
	GeneratedAt      *time.Time                             `json:"generated_at,omitempty"`
}
