package service

import (
	"github.com/jinzhu/copier"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/model"
	"gorm.io/datatypes"
)

const hiddenOutput = "[hidden]"

func questionFromDTO(templateID uint, req dto.QuestionCreateDTO) model.Question {
	payload := model.QuestionPayload{CorrectAnswerIDs: req.CorrectAnswerIDs}
	for _, o := range req.Options {
		payload.Options = append(payload.Options, model.QuestionOption{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect})
	}
	if req.CodingConfig != nil {
		cc := &model.CodingConfig{
			AllowedLanguages: req.CodingConfig.AllowedLanguages,
			StarterCode:      req.CodingConfig.StarterCode,
			TimeoutMs:        req.CodingConfig.TimeoutMs,
			MemoryLimitMb:    req.CodingConfig.MemoryLimitMb,
		}
		for _, tc := range req.CodingConfig.TestCases {
			cc.TestCases = append(cc.TestCases, model.TestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput, IsPublic: tc.IsPublic})
		}
		payload.Coding = cc
	}
	for _, r := range req.Rubric {
		payload.Rubric = append(payload.Rubric, model.RubricCriterion{
			Criterion:   r.Criterion,
			MaxPoints:   r.MaxPoints,
			Description: r.Description,
			Keywords:    r.Keywords,
		})
	}

	difficulty := model.Difficulty(req.Difficulty)
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}
	maxScore := req.MaxScore
	if maxScore <= 0 {
		maxScore = 1
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.Question{
		TemplateID: templateID,
		Type:       model.QuestionType(req.Type),
		Difficulty: difficulty,
		Content:    req.Content,
		Payload:    datatypes.NewJSONType(payload),
		MaxScore:   maxScore,
		OrderIndex: req.OrderIndex,
		IsActive:   true,
		Tags:       datatypes.NewJSONType(tags),
	}
}

func codingConfigDTO(cc *model.CodingConfig, sanitize bool) *dto.CodingConfigDTO {
	if cc == nil {
		return nil
	}
	out := &dto.CodingConfigDTO{
		AllowedLanguages: cc.AllowedLanguages,
		StarterCode:      cc.StarterCode,
		TimeoutMs:        cc.TimeoutMs,
		MemoryLimitMb:    cc.MemoryLimitMb,
	}
	for _, tc := range cc.TestCases {
		expected := tc.ExpectedOutput
		if sanitize && !tc.IsPublic {
			expected = hiddenOutput
		}
		out.TestCases = append(out.TestCases, dto.TestCaseDTO{Input: tc.Input, ExpectedOutput: expected, IsPublic: tc.IsPublic})
	}
	return out
}

func rubricDTO(rubric []model.RubricCriterion) []dto.RubricCriterionDTO {
	var out []dto.RubricCriterionDTO
	copier.Copy(&out, &rubric)
	return out
}

// adminQuestionDTO keeps answer keys; it is only served on admin routes.
func adminQuestionDTO(q model.Question) dto.QuestionResponseDTO {
	var resp dto.QuestionResponseDTO
	copier.Copy(&resp, &q)
	payload := q.Payload.Data()
	copier.Copy(&resp.Options, &payload.Options)
	resp.CorrectAnswerIDs = payload.CorrectAnswerIDs
	resp.CodingConfig = codingConfigDTO(payload.Coding, false)
	resp.Rubric = rubricDTO(payload.Rubric)
	return resp
}

// candidateQuestionDTO strips correct ids, option flags and hidden expected outputs.
func candidateQuestionDTO(q model.Question) dto.CandidateQuestionDTO {
	payload := q.Payload.Data()
	resp := dto.CandidateQuestionDTO{
		ID:           q.ID,
		Type:         string(q.Type),
		Difficulty:   string(q.Difficulty),
		Content:      q.Content,
		MaxScore:     q.MaxScore,
		CodingConfig: codingConfigDTO(payload.Coding, true),
		Rubric:       rubricDTO(payload.Rubric),
	}
	for _, o := range payload.Options {
		resp.Options = append(resp.Options, dto.OptionResponseDTO{ID: o.ID, Text: o.Text})
	}
	return resp
}

func evaluationDTO(detail model.EvaluationDetail) *dto.EvaluationDTO {
	var out dto.EvaluationDTO
	copier.Copy(&out, &detail)
	return &out
}

func answerDTO(a model.Answer) dto.AnswerResponseDTO {
	var resp dto.AnswerResponseDTO
	copier.Copy(&resp, &a)
	resp.Status = string(a.Status)
	if a.Status == model.AnswerStatusEvaluated {
		resp.Result = evaluationDTO(a.Evaluation.Data())
	}
	return resp
}

func sessionDTO(s model.Session, answers []model.Answer) dto.SessionResponseDTO {
	var resp dto.SessionResponseDTO
	copier.Copy(&resp, &s)
	resp.Status = string(s.Status)
	resp.TemplateName = s.Template.Name
	for _, a := range answers {
		resp.Answers = append(resp.Answers, answerDTO(a))
	}
	return resp
}
