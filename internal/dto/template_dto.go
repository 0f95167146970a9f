package dto

import "time"

type OptionResponseDTO struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionResponseDTO is the admin view of a question, answer keys included.
type QuestionResponseDTO struct {
	ID               uint                 `json:"id"`
	TemplateID       uint                 `json:"template_id"`
	Type             string               `json:"type"`
	Difficulty       string               `json:"difficulty"`
	Content          string               `json:"content"`
	MaxScore         float64              `json:"max_score"`
	OrderIndex       int                  `json:"order_index"`
	Options          []OptionResponseDTO  `json:"options,omitempty"`
	CorrectAnswerIDs []string             `json:"correct_answer_ids,omitempty"`
	CodingConfig     *CodingConfigDTO     `json:"coding_config,omitempty"`
	Rubric           []RubricCriterionDTO `json:"rubric,omitempty"`
}

type TemplateResponseDTO struct {
	ID                  uint                  `json:"id"`
	Name                string                `json:"name"`
	Description         string                `json:"description,omitempty"`
	Role                string                `json:"role"`
	Difficulty          string                `json:"difficulty"`
	TimeLimitMinutes    int                   `json:"time_limit_minutes"`
	PassingScorePercent float64               `json:"passing_score_percent"`
	Questions           []QuestionResponseDTO `json:"questions,omitempty" copier:"-"`
	CreatedAt           time.Time             `json:"created_at"`
}

// TemplateSummaryDTO is used for listing templates available to candidates.
type TemplateSummaryDTO struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Role             string    `json:"role"`
	Difficulty       string    `json:"difficulty"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	QuestionCount    int       `json:"question_count"`
	CreatedAt        time.Time `json:"created_at"`
}
