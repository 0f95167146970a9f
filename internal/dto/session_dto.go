package dto

import (
	"time"

	"github.com/lshigami/intervue/internal/model"
)

type StartSessionDTO struct {
	TemplateID uint `json:"template_id" binding:"required"`
}

type SubmitAnswerDTO struct {
	QuestionID          uint     `json:"question_id" binding:"required"`
	SubmittedText       string   `json:"submitted_text"`
	SelectedOptionIDs   []string `json:"selected_option_ids"`
	ProgrammingLanguage string   `json:"programming_language"`
	TimeTakenSeconds    int      `json:"time_taken_seconds" binding:"min=0"`
}

type SubmitAnswerResponseDTO struct {
	AnswerID      uint `json:"answer_id"`
	NextAvailable bool `json:"next_available"`
}

// CandidateQuestionDTO is a question with every answer key stripped.
type CandidateQuestionDTO struct {
	ID           uint                 `json:"id"`
	Type         string               `json:"type"`
	Difficulty   string               `json:"difficulty"`
	Content      string               `json:"content"`
	MaxScore     float64              `json:"max_score"`
	Options      []OptionResponseDTO  `json:"options,omitempty"`
	CodingConfig *CodingConfigDTO     `json:"coding_config,omitempty"`
	Rubric       []RubricCriterionDTO `json:"rubric,omitempty"`
}

type NextQuestionDTO struct {
	Question             CandidateQuestionDTO `json:"question"`
	Index                int                  `json:"index"`
	Total                int                  `json:"total"`
	TimeRemainingSeconds int                  `json:"time_remaining_seconds"`
}

type RubricScoreDTO struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxPoints float64 `json:"max_points"`
	Feedback  string  `json:"feedback"`
}

type EvaluationDTO struct {
	Passed          bool             `json:"passed"`
	TestCasesPassed int              `json:"test_cases_passed,omitempty"`
	TestCasesTotal  int              `json:"test_cases_total,omitempty"`
	RubricScores    []RubricScoreDTO `json:"rubric_scores,omitempty"`
	AIFeedback      string           `json:"ai_feedback,omitempty"`
	ExecutionTimeMs int              `json:"execution_time_ms,omitempty"`
	MemoryUsedMb    int              `json:"memory_used_mb,omitempty"`
	CompileError    string           `json:"compile_error,omitempty"`
	RuntimeError    string           `json:"runtime_error,omitempty"`
}

type AnswerResponseDTO struct {
	ID                  uint           `json:"id"`
	QuestionID          uint           `json:"question_id"`
	SubmittedText       string         `json:"submitted_text,omitempty"`
	ProgrammingLanguage string         `json:"programming_language,omitempty"`
	TimeTakenSeconds    int            `json:"time_taken_seconds"`
	Status              string         `json:"status"`
	Score               *float64       `json:"score,omitempty"`
	MaxScore            float64        `json:"max_score"`
	Result              *EvaluationDTO `json:"evaluation,omitempty"`
	EvaluatedAt         *time.Time     `json:"evaluated_at,omitempty"`
}

type SessionResponseDTO struct {
	ID                   uint                `json:"id"`
	CandidateID          string              `json:"candidate_id"`
	TemplateID           uint                `json:"template_id"`
	TemplateName         string              `json:"template_name,omitempty"`
	Status               string              `json:"status"`
	StartedAt            *time.Time          `json:"started_at,omitempty"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty"`
	DurationSeconds      int                 `json:"duration_seconds"`
	TimeLimitMinutes     int                 `json:"time_limit_minutes"`
	TotalScore           *float64            `json:"total_score,omitempty"`
	MaxPossibleScore     *float64            `json:"max_possible_score,omitempty"`
	PercentageScore      *float64            `json:"percentage_score,omitempty"`
	CurrentQuestionIndex int                 `json:"current_question_index"`
	TabSwitchCount       int                 `json:"tab_switch_count"`
	CopyPasteCount       int                 `json:"copy_paste_count"`
	IsIntegrityFlagged   bool                `json:"is_integrity_flagged"`
	ReportID             *uint               `json:"report_id,omitempty"`
	Answers              []AnswerResponseDTO `json:"answers,omitempty" copier:"-"`
	CreatedAt            time.Time           `json:"created_at"`
}

type IntegrityEventCreateDTO struct {
	EventType  string                 `json:"event_type" binding:"required"`
	QuestionID *uint                  `json:"question_id"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type IntegrityEventResponseDTO struct {
	ID         uint                   `json:"id"`
	SessionID  uint                   `json:"session_id"`
	EventType  string                 `json:"event_type"`
	Severity   string                 `json:"severity"`
	QuestionID *uint                  `json:"question_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" copier:"-"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type ReportResponseDTO struct {
	ID               uint                     `json:"id"`
	SessionID        uint                     `json:"session_id"`
	Status           string                   `json:"status"`
	Summary          model.ReportSummary      `json:"summary" copier:"-"`
	SectionBreakdown []model.SectionBreakdown `json:"section_breakdown" copier:"-"`
	QuestionDetails  []model.QuestionDetail   `json:"question_details" copier:"-"`
	IntegrityReport  model.IntegrityReport    `json:"integrity_report" copier:"-"`
	AINarrative      string                   `json:"ai_narrative,omitempty"`
	GeneratedAt      *time.Time               `json:"generated_at,omitempty"`
}
