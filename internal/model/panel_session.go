package model

import (
	"time"

	"gorm.io/datatypes"
)

type PanelPhase string

const (
	PhaseSetup  PanelPhase = "setup"
	PhaseWarmup PanelPhase = "warmup"
	PhaseCore   PanelPhase = "core"
	PhaseCoding PanelPhase = "coding"
	PhaseQuery  PanelPhase = "query"
	PhaseReport PanelPhase = "report"
)

var phaseOrder = []PanelPhase{PhaseSetup, PhaseWarmup, PhaseCore, PhaseCoding, PhaseQuery, PhaseReport}

// Rank orders phases; unknown phases rank below setup.
func (p PanelPhase) Rank() int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p. Report is absorbing.
func (p PanelPhase) Next() PanelPhase {
	r := p.Rank()
	if r < 0 || r+1 >= len(phaseOrder) {
		return PhaseReport
	}
	return phaseOrder[r+1]
}

type PanelStatus string

const (
	PanelStatusActive    PanelStatus = "active"
	PanelStatusCompleted PanelStatus = "completed"
	PanelStatusAbandoned PanelStatus = "abandoned"
)

const SkippedAnswerText = "[SKIPPED]"

type PanelEditorTestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type PanelEditor struct {
	Enabled         bool                  `json:"enabled"`
	LanguageOptions []string              `json:"languageOptions"`
	StarterCode     string                `json:"starterCode"`
	TestCases       []PanelEditorTestCase `json:"testCases"`
}

type PanelQuestion struct {
	ID                   string       `json:"id"`
	Phase                PanelPhase   `json:"phase"`
	AskedBy              string       `json:"askedBy"`
	Type                 string       `json:"type"`
	QuestionText         string       `json:"questionText"`
	Constraints          string       `json:"constraints,omitempty"`
	ExpectedAnswerFormat string       `json:"expectedAnswerFormat"`
	Editor               *PanelEditor `json:"editor,omitempty"`
	SchemaInfo           string       `json:"schemaInfo,omitempty"`
}

type PanelAnswer struct {
	QuestionID       string   `json:"questionId"`
	Answer           string   `json:"answer"`
	Language         string   `json:"language,omitempty"`
	Score            float64  `json:"score"`
	Feedback         string   `json:"feedback"`
	FollowUpQuestion string   `json:"followUpQuestion,omitempty"`
	FollowUpAnswer   string   `json:"followUpAnswer,omitempty"`
	FollowUpScore    *float64 `json:"followUpScore,omitempty"`
}

// EffectiveScore averages base and follow-up scores when a follow-up was asked.
// An unanswered follow-up counts as zero.
func (a PanelAnswer) EffectiveScore() float64 {
	if a.FollowUpQuestion == "" {
		return a.Score
	}
	var followUp float64
	if a.FollowUpScore != nil {
		followUp = *a.FollowUpScore
	}
	return (a.Score + followUp) / 2
}

func (a PanelAnswer) Skipped() bool {
	return a.Answer == SkippedAnswerText
}

type CandidateProfile struct {
	Track           string `json:"track"`
	ExperienceYears string `json:"experienceYears"`
	Role            string `json:"role"`
	Difficulty      string `json:"difficulty"`
}

type PanelSectionScore struct {
	Section    string  `json:"section"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"maxScore"`
	Percentage float64 `json:"percentage"`
}

type PanelQuestionBreakdown struct {
	QuestionText      string  `json:"questionText"`
	Phase             string  `json:"phase"`
	AskedBy           string  `json:"askedBy"`
	Score             float64 `json:"score"`
	MaxScore          float64 `json:"maxScore"`
	Feedback          string  `json:"feedback"`
	WhereYouWentWrong string  `json:"whereYouWentWrong,omitempty"`
}

type PanelReport struct {
	CandidateProfile  CandidateProfile         `json:"candidateProfile"`
	OverallScore      float64                  `json:"overallScore"`
	SectionScores     []PanelSectionScore      `json:"sectionScores"`
	QuestionBreakdown []PanelQuestionBreakdown `json:"questionBreakdown"`
	Strengths         []string                 `json:"strengths"`
	WeakAreas         []string                 `json:"weakAreas"`
	MistakesSummary   []string                 `json:"mistakesSummary"`
	InterviewTips     []string                 `json:"interviewTips"`
	FocusAreas        []string                 `json:"focusAreas"`
	ImprovementPlan   string                   `json:"improvementPlan"`
	Passed            bool                     `json:"passed"`
	Partial           bool                     `json:"partial"`
	QuestionsAsked    int                      `json:"questionsAsked"`
	QuestionsAnswered int                      `json:"questionsAnswered"`
	QuestionsSkipped  int                      `json:"questionsSkipped"`
}

// PanelSession is mutated only through PanelPatch values; Version guards
// every conditional write.
type PanelSession struct {
	ID                 string                              `gorm:"primaryKey;type:uuid" json:"id"`
	CandidateID        string                              `json:"candidate_id" gorm:"not null;index"`
	CandidateEmail     string                              `json:"candidate_email"`
	CandidateName      string                              `json:"candidate_name"`
	Track              string                              `json:"track" gorm:"not null;default:''"`
	ExperienceYears    string                              `json:"experience_years" gorm:"not null;default:''"`
	TargetRole         string                              `json:"target_role" gorm:"not null;default:''"`
	Difficulty         string                              `json:"difficulty" gorm:"not null;default:'Normal'"`
	Phase              PanelPhase                          `json:"phase" gorm:"type:varchar(16);not null;default:'setup'"`
	Status             PanelStatus                         `json:"status" gorm:"type:varchar(16);not null;default:'active'"`
	QuestionIndex      int                                 `json:"question_index" gorm:"not null;default:0"`
	Questions          datatypes.JSONType[[]PanelQuestion] `json:"questions" gorm:"type:jsonb;not null"`
	Answers            datatypes.JSONType[[]PanelAnswer]   `json:"answers" gorm:"type:jsonb;not null"`
	PendingFollowUpFor *string                             `json:"pending_follow_up_for,omitempty"`
	FinalReport        datatypes.JSONType[PanelReport]     `json:"final_report" gorm:"type:jsonb;not null"`
	Version            int                                 `json:"version" gorm:"not null;default:0"`
	StartedAt          *time.Time                          `json:"started_at,omitempty"`
	CompletedAt        *time.Time                          `json:"completed_at,omitempty"`
	CreatedAt          time.Time                           `json:"created_at"`
	UpdatedAt          time.Time                           `json:"updated_at"`
}

func (s *PanelSession) Profile() CandidateProfile {
	return CandidateProfile{
		Track:           s.Track,
		ExperienceYears: s.ExperienceYears,
		Role:            s.TargetRole,
		Difficulty:      s.Difficulty,
	}
}

func (s *PanelSession) QuestionByID(id string) (PanelQuestion, bool) {
	for _, q := range s.Questions.Data() {
		if q.ID == id {
			return q, true
		}
	}
	return PanelQuestion{}, false
}

func (s *PanelSession) AnswerFor(questionID string) (PanelAnswer, bool) {
	for _, a := range s.Answers.Data() {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return PanelAnswer{}, false
}

// PhaseQuestions returns the generated questions of one phase in generation order.
func (s *PanelSession) PhaseQuestions(phase PanelPhase) []PanelQuestion {
	var out []PanelQuestion
	for _, q := range s.Questions.Data() {
		if q.Phase == phase {
			out = append(out, q)
		}
	}
	return out
}

// CurrentQuestion is the already generated question at the current in-phase index, if any.
func (s *PanelSession) CurrentQuestion() (PanelQuestion, bool) {
	qs := s.PhaseQuestions(s.Phase)
	if s.QuestionIndex < len(qs) {
		return qs[s.QuestionIndex], true
	}
	return PanelQuestion{}, false
}

func (s *PanelSession) HasPendingFollowUp(questionID string) bool {
	return s.PendingFollowUpFor != nil && *s.PendingFollowUpFor == questionID
}
