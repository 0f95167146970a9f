package model

import (
	"time"

	"gorm.io/datatypes"
)

type AnswerStatus string

const (
	AnswerStatusPending    AnswerStatus = "pending"
	AnswerStatusEvaluating AnswerStatus = "evaluating"
	AnswerStatusEvaluated  AnswerStatus = "evaluated"
	AnswerStatusSkipped    AnswerStatus = "skipped"
	AnswerStatusTimedOut   AnswerStatus = "timed_out"
)

type RubricScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxPoints float64 `json:"maxPoints"`
	Feedback  string  `json:"feedback"`
}

type EvaluationDetail struct {
	Passed          bool          `json:"passed"`
	TestCasesPassed int           `json:"testCasesPassed,omitempty"`
	TestCasesTotal  int           `json:"testCasesTotal,omitempty"`
	RubricScores    []RubricScore `json:"rubricScores,omitempty"`
	AIFeedback      string        `json:"aiFeedback,omitempty"`
	ExecutionTimeMs int           `json:"executionTimeMs,omitempty"`
	MemoryUsedMb    int           `json:"memoryUsedMb,omitempty"`
	CompileError    string        `json:"compileError,omitempty"`
	RuntimeError    string        `json:"runtimeError,omitempty"`
}

// Answer is written once on submission and once more by the grading step.
type Answer struct {
	ID                  uint                                 `gorm:"primarykey" json:"id"`
	SessionID           uint                                 `json:"session_id" gorm:"not null;uniqueIndex:idx_answers_session_question"`
	QuestionID          uint                                 `json:"question_id" gorm:"not null;uniqueIndex:idx_answers_session_question;index"`
	Question            Question                             `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	SubmittedText       string                               `json:"submitted_text" gorm:"type:text"`
	SelectedOptionIDs   datatypes.JSONType[[]string]         `json:"selected_option_ids" gorm:"type:jsonb;not null"`
	ProgrammingLanguage string                               `json:"programming_language,omitempty"`
	TimeTakenSeconds    int                                  `json:"time_taken_seconds"`
	Status              AnswerStatus                         `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	Score               *float64                             `json:"score,omitempty"`
	MaxScore            float64                              `json:"max_score" gorm:"not null;default:1"`
	Evaluation          datatypes.JSONType[EvaluationDetail] `json:"evaluation" gorm:"type:jsonb;not null"`
	EvaluatedAt         *time.Time                           `json:"evaluated_at,omitempty"`
	CreatedAt           time.Time                            `json:"created_at"`
	UpdatedAt           time.Time                            `json:"updated_at"`
}
