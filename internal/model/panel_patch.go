package model

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/datatypes"
)

var ErrInvalidPatch = errors.New("invalid panel session patch")

// PanelPatch is one typed transition of a panel session. Apply mutates the
// in-memory session and Columns names the persisted columns it touched.
type PanelPatch interface {
	Apply(s *PanelSession) error
	Columns() []string
}

type QuestionAppend struct {
	Question PanelQuestion
}

func (p QuestionAppend) Apply(s *PanelSession) error {
	if _, exists := s.QuestionByID(p.Question.ID); exists {
		return fmt.Errorf("%w: question %s already generated", ErrInvalidPatch, p.Question.ID)
	}
	s.Questions = datatypes.NewJSONType(append(slices.Clone(s.Questions.Data()), p.Question))
	return nil
}

func (QuestionAppend) Columns() []string { return []string{"questions"} }

// AnswerRecord appends an answer, or replaces the one already recorded for the
// same question (the follow-up merge).
type AnswerRecord struct {
	Answer PanelAnswer
}

func (p AnswerRecord) Apply(s *PanelSession) error {
	if _, ok := s.QuestionByID(p.Answer.QuestionID); !ok {
		return fmt.Errorf("%w: answer for unknown question %s", ErrInvalidPatch, p.Answer.QuestionID)
	}
	answers := slices.Clone(s.Answers.Data())
	idx := slices.IndexFunc(answers, func(a PanelAnswer) bool { return a.QuestionID == p.Answer.QuestionID })
	if idx >= 0 {
		answers[idx] = p.Answer
	} else {
		answers = append(answers, p.Answer)
	}
	s.Answers = datatypes.NewJSONType(answers)
	return nil
}

func (AnswerRecord) Columns() []string { return []string{"answers"} }

type FollowUpSet struct {
	QuestionID string
}

func (p FollowUpSet) Apply(s *PanelSession) error {
	if s.PendingFollowUpFor != nil && *s.PendingFollowUpFor != p.QuestionID {
		return fmt.Errorf("%w: follow-up already pending for %s", ErrInvalidPatch, *s.PendingFollowUpFor)
	}
	id := p.QuestionID
	s.PendingFollowUpFor = &id
	return nil
}

func (FollowUpSet) Columns() []string { return []string{"pending_follow_up_for"} }

type FollowUpClear struct{}

func (FollowUpClear) Apply(s *PanelSession) error {
	s.PendingFollowUpFor = nil
	return nil
}

func (FollowUpClear) Columns() []string { return []string{"pending_follow_up_for"} }

// PhaseAdvance moves the phase/index cursor forward. Phases never regress and
// the index never decreases within a phase.
type PhaseAdvance struct {
	Phase PanelPhase
	Index int
}

func (p PhaseAdvance) Apply(s *PanelSession) error {
	switch {
	case p.Phase.Rank() < 0:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidPatch, p.Phase)
	case p.Phase.Rank() < s.Phase.Rank():
		return fmt.Errorf("%w: phase %s cannot follow %s", ErrInvalidPatch, p.Phase, s.Phase)
	case p.Phase == s.Phase && p.Index < s.QuestionIndex:
		return fmt.Errorf("%w: index %d behind %d in %s", ErrInvalidPatch, p.Index, s.QuestionIndex, s.Phase)
	case p.Phase != s.Phase && p.Index != 0:
		return fmt.Errorf("%w: new phase %s must start at index 0", ErrInvalidPatch, p.Phase)
	}
	s.Phase = p.Phase
	s.QuestionIndex = p.Index
	return nil
}

func (PhaseAdvance) Columns() []string { return []string{"phase", "question_index"} }

// Terminalize closes the session with its final report.
type Terminalize struct {
	Status      PanelStatus
	Report      PanelReport
	CompletedAt time.Time
}

func (p Terminalize) Apply(s *PanelSession) error {
	if p.Status != PanelStatusCompleted && p.Status != PanelStatusAbandoned {
		return fmt.Errorf("%w: %s is not a terminal status", ErrInvalidPatch, p.Status)
	}
	if s.Status != PanelStatusActive {
		return fmt.Errorf("%w: session already %s", ErrInvalidPatch, s.Status)
	}
	completed := p.CompletedAt
	s.Status = p.Status
	s.FinalReport = datatypes.NewJSONType(p.Report)
	s.CompletedAt = &completed
	return nil
}

func (Terminalize) Columns() []string { return []string{"status", "final_report", "completed_at"} }

// ApplyPatches applies patches in order and returns the union of touched columns.
func ApplyPatches(s *PanelSession, patches ...PanelPatch) ([]string, error) {
	var cols []string
	for _, p := range patches {
		if err := p.Apply(s); err != nil {
			return nil, err
		}
		for _, c := range p.Columns() {
			if !slices.Contains(cols, c) {
				cols = append(cols, c)
			}
		}
	}
	return cols, nil
}
