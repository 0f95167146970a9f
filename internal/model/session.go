package model

import (
	"time"
)

type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusAbandoned  SessionStatus = "abandoned"
	SessionStatusFlagged    SessionStatus = "flagged"
)

// Session is a linear attempt at a fixed template.
type Session struct {
	ID                   uint          `gorm:"primarykey" json:"id"`
	CandidateID          string        `json:"candidate_id" gorm:"not null;index"`
	TemplateID           uint          `json:"template_id" gorm:"not null;index"`
	Template             Template      `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
	Status               SessionStatus `json:"status" gorm:"type:varchar(16);not null;default:'scheduled'"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	DurationSeconds      int           `json:"duration_seconds"`
	TimeLimitMinutes     int           `json:"time_limit_minutes" gorm:"not null;default:60"`
	TotalScore           *float64      `json:"total_score,omitempty"`
	MaxPossibleScore     *float64      `json:"max_possible_score,omitempty"`
	PercentageScore      *float64      `json:"percentage_score,omitempty"`
	CurrentQuestionIndex int           `json:"current_question_index" gorm:"not null;default:0"`
	TabSwitchCount       int           `json:"tab_switch_count" gorm:"not null;default:0"`
	CopyPasteCount       int           `json:"copy_paste_count" gorm:"not null;default:0"`
	IsIntegrityFlagged   bool          `json:"is_integrity_flagged" gorm:"not null;default:false"`
	ReportID             *uint         `json:"report_id,omitempty"`
	Answers              []Answer      `json:"answers,omitempty" gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// TimeRemaining reports how much of the time budget is left at now.
func (s *Session) TimeRemaining(now time.Time) time.Duration {
	limit := time.Duration(s.TimeLimitMinutes) * time.Minute
	if s.StartedAt == nil {
		return limit
	}
	remaining := limit - now.Sub(*s.StartedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusAbandoned
}
