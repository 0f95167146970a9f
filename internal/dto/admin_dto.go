package dto

type OptionCreateDTO struct {
	ID        string `json:"id" binding:"required"`
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type TestCaseDTO struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsPublic       bool   `json:"is_public"`
}

type CodingConfigDTO struct {
	AllowedLanguages []string          `json:"allowed_languages"`
	StarterCode      map[string]string `json:"starter_code,omitempty"`
	TestCases        []TestCaseDTO     `json:"test_cases"`
	TimeoutMs        int               `json:"timeout_ms,omitempty"`
	MemoryLimitMb    int               `json:"memory_limit_mb,omitempty"`
}

type RubricCriterionDTO struct {
	Criterion   string   `json:"criterion" binding:"required"`
	MaxPoints   float64  `json:"max_points" binding:"required,gt=0"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// QuestionCreateDTO carries the type-specific block matching Type.
type QuestionCreateDTO struct {
	Type             string               `json:"type" binding:"required,oneof=mcq coding behavioral system_design"`
	Difficulty       string               `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Content          string               `json:"content" binding:"required"`
	MaxScore         float64              `json:"max_score" binding:"omitempty,gt=0"`
	OrderIndex       int                  `json:"order_index"`
	Options          []OptionCreateDTO    `json:"options,omitempty" binding:"omitempty,dive"`
	CorrectAnswerIDs []string             `json:"correct_answer_ids,omitempty"`
	CodingConfig     *CodingConfigDTO     `json:"coding_config,omitempty"`
	Rubric           []RubricCriterionDTO `json:"rubric,omitempty" binding:"omitempty,dive"`
	Tags             []string             `json:"tags,omitempty"`
}

type SectionConfigDTO struct {
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

// TemplateCreateDTO is for admin to create an interview template with its questions.
type TemplateCreateDTO struct {
	Name                string                      `json:"name" binding:"required"`
	Description         string                      `json:"description,omitempty"`
	Role                string                      `json:"role" binding:"required"`
	Difficulty          string                      `json:"difficulty" binding:"omitempty,oneof=junior mid senior lead"`
	SectionConfig       map[string]SectionConfigDTO `json:"section_config,omitempty"`
	TimeLimitMinutes    int                         `json:"time_limit_minutes" binding:"omitempty,min=1"`
	PassingScorePercent float64                     `json:"passing_score_percent" binding:"omitempty,min=0,max=100"`
	Questions           []QuestionCreateDTO         `json:"questions" binding:"omitempty,dive"`
}
