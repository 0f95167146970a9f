package model

import (
	"time"

	"gorm.io/datatypes"
)

type IntegrityEventType string

const (
	IntegrityTabSwitch         IntegrityEventType = "tab_switch"
	IntegrityWindowBlur        IntegrityEventType = "window_blur"
	IntegrityCopyPaste         IntegrityEventType = "copy_paste"
	IntegrityDevtoolsOpen      IntegrityEventType = "devtools_open"
	IntegrityTimeAnomaly       IntegrityEventType = "time_anomaly"
	IntegrityRapidAnswer       IntegrityEventType = "rapid_answer"
	IntegrityInactivity        IntegrityEventType = "inactivity"
	IntegrityScreenshotAttempt IntegrityEventType = "screenshot_attempt"
)

type IntegritySeverity string

const (
	SeverityLow    IntegritySeverity = "low"
	SeverityMedium IntegritySeverity = "medium"
	SeverityHigh   IntegritySeverity = "high"
)

var integritySeverities = map[IntegrityEventType]IntegritySeverity{
	IntegrityTabSwitch:         SeverityMedium,
	IntegrityWindowBlur:        SeverityLow,
	IntegrityCopyPaste:         SeverityMedium,
	IntegrityDevtoolsOpen:      SeverityHigh,
	IntegrityTimeAnomaly:       SeverityHigh,
	IntegrityRapidAnswer:       SeverityMedium,
	IntegrityInactivity:        SeverityLow,
	IntegrityScreenshotAttempt: SeverityHigh,
}

func (t IntegrityEventType) Valid() bool {
	_, ok := integritySeverities[t]
	return ok
}

func (t IntegrityEventType) Severity() IntegritySeverity {
	if s, ok := integritySeverities[t]; ok {
		return s
	}
	return SeverityLow
}

type IntegrityEvent struct {
	ID         uint               `gorm:"primarykey" json:"id"`
	SessionID  uint               `json:"session_id" gorm:"not null;index"`
	EventType  IntegrityEventType `json:"event_type" gorm:"type:varchar(32);not null"`
	Severity   IntegritySeverity  `json:"severity" gorm:"type:varchar(16);not null;default:'low'"`
	QuestionID *uint              `json:"question_id,omitempty"`
	Metadata   datatypes.JSONMap  `json:"metadata" gorm:"type:jsonb"`
	OccurredAt time.Time          `json:"occurred_at" gorm:"autoCreateTime"`
}
