package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionTypeMCQ          QuestionType = "mcq"
	QuestionTypeCoding       QuestionType = "coding"
	QuestionTypeBehavioral   QuestionType = "behavioral"
	QuestionTypeSystemDesign QuestionType = "system_design"
)

// GradingKind selects the grader family for a question.
type GradingKind string

const (
	GradingKindSelector GradingKind = "selector"
	GradingKindCode     GradingKind = "code"
	GradingKindRubric   GradingKind = "rubric"
)

func (t QuestionType) Kind() GradingKind {
	switch t {
	case QuestionTypeMCQ:
		return GradingKindSelector
	case QuestionTypeCoding:
		return GradingKindCode
	case QuestionTypeBehavioral, QuestionTypeSystemDesign:
		return GradingKindRubric
	}
	return ""
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type QuestionOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	IsPublic       bool   `json:"isPublic"`
}

type CodingConfig struct {
	AllowedLanguages []string          `json:"allowedLanguages"`
	StarterCode      map[string]string `json:"starterCode,omitempty"`
	TestCases        []TestCase        `json:"testCases"`
	TimeoutMs        int               `json:"timeoutMs,omitempty"`
	MemoryLimitMb    int               `json:"memoryLimitMb,omitempty"`
}

type RubricCriterion struct {
	Criterion   string   `json:"criterion"`
	MaxPoints   float64  `json:"maxPoints"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// QuestionPayload holds the type-specific part of a question. Only the block
// matching the question type is populated.
type QuestionPayload struct {
	Options          []QuestionOption  `json:"options,omitempty"`
	CorrectAnswerIDs []string          `json:"correctAnswerIds,omitempty"`
	Coding           *CodingConfig     `json:"codingConfig,omitempty"`
	Rubric           []RubricCriterion `json:"rubric,omitempty"`
}

type Question struct {
	ID         uint                                `gorm:"primarykey" json:"id"`
	TemplateID uint                                `json:"template_id" gorm:"not null;index"`
	Type       QuestionType                        `json:"type" gorm:"type:varchar(32);not null"`
	Difficulty Difficulty                          `json:"difficulty" gorm:"type:varchar(16);not null;default:'medium'"`
	Content    string                              `json:"content" gorm:"type:text;not null"`
	Payload    datatypes.JSONType[QuestionPayload] `json:"payload" gorm:"type:jsonb;not null"`
	MaxScore   float64                             `json:"max_score" gorm:"not null;default:1"`
	OrderIndex int                                 `json:"order_index" gorm:"not null;default:0"`
	IsActive   bool                                `json:"is_active" gorm:"not null;default:true"`
	Tags       datatypes.JSONType[[]string]        `json:"tags" gorm:"type:jsonb;not null"`
	CreatedAt  time.Time                           `json:"created_at"`
	UpdatedAt  time.Time                           `json:"updated_at"`
	DeletedAt  gorm.DeletedAt                      `gorm:"index" json:"-"`
}
