package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lshigami/intervue/internal/metrics"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type evaluationFixture struct {
	svc      EvaluationService
	answers  *memAnswerRepo
	sessions *memSessionRepo
	session  *model.Session
}

func newEvaluationFixture(t *testing.T) *evaluationFixture {
	t.Helper()
	answers := newMemAnswerRepo()
	sessions := newMemSessionRepo(nil)
	session := &model.Session{CandidateID: "cand-1", Status: model.SessionStatusInProgress}
	require.NoError(t, sessions.Create(context.Background(), session))

	answers.questions[1] = withID(*mcqQuestion("b"), 1)
	answers.questions[2] = withID(model.Question{Type: "essay", MaxScore: 3}, 2)

	graders := NewGraderRegistry(&fakeSandbox{}, &fakeLLM{}, metrics.NewNop())
	return &evaluationFixture{
		svc:      NewEvaluationService(answers, sessions, graders),
		answers:  answers,
		sessions: sessions,
		session:  session,
	}
}

func withID(q model.Question, id uint) model.Question {
	q.ID = id
	return q
}

func (f *evaluationFixture) submit(t *testing.T, questionID uint, maxScore float64, chosen ...string) uint {
	t.Helper()
	a := &model.Answer{
		SessionID:         f.session.ID,
		QuestionID:        questionID,
		SelectedOptionIDs: datatypes.NewJSONType(chosen),
		Status:            model.AnswerStatusPending,
		MaxScore:          maxScore,
	}
	require.NoError(t, f.answers.Create(context.Background(), a))
	return a.ID
}

func TestEvaluateScoresAnswerAndSession(t *testing.T) {
	f := newEvaluationFixture(t)
	id := f.submit(t, 1, 2, "b")

	require.NoError(t, f.svc.Evaluate(context.Background(), id))

	a := f.answers.find(id)
	assert.Equal(t, model.AnswerStatusEvaluated, a.Status)
	require.NotNil(t, a.Score)
	assert.Equal(t, 2.0, *a.Score)
	assert.True(t, a.Evaluation.Data().Passed)

	s := f.sessions.sessions[f.session.ID]
	require.NotNil(t, s.PercentageScore)
	assert.Equal(t, 2.0, *s.TotalScore)
	assert.Equal(t, 2.0, *s.MaxPossibleScore)
	assert.Equal(t, 100.0, *s.PercentageScore)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	f := newEvaluationFixture(t)
	right := f.submit(t, 1, 2, "b")
	wrong := f.submit(t, 1, 2, "a")

	for i := 0; i < 2; i++ {
		require.NoError(t, f.svc.Evaluate(context.Background(), right))
		require.NoError(t, f.svc.Evaluate(context.Background(), wrong))
	}

	s := f.sessions.sessions[f.session.ID]
	assert.Equal(t, 2.0, *s.TotalScore)
	assert.Equal(t, 4.0, *s.MaxPossibleScore)
	assert.Equal(t, 50.0, *s.PercentageScore)
}

func TestEvaluateGraderErrorForcesZero(t *testing.T) {
	f := newEvaluationFixture(t)
	id := f.submit(t, 2, 3)

	require.NoError(t, f.svc.Evaluate(context.Background(), id))

	a := f.answers.find(id)
	assert.Equal(t, model.AnswerStatusEvaluated, a.Status)
	assert.Zero(t, *a.Score)
	assert.Equal(t, forceFinalizeFeedback, a.Evaluation.Data().AIFeedback)
	assert.Equal(t, 3.0, *f.sessions.sessions[f.session.ID].MaxPossibleScore)
}

func TestEvaluateRetriesTransientSave(t *testing.T) {
	f := newEvaluationFixture(t)
	id := f.submit(t, 1, 2, "b")
	f.answers.saveFailures = 1

	require.NoError(t, f.svc.Evaluate(context.Background(), id))
	assert.Equal(t, model.AnswerStatusEvaluated, f.answers.find(id).Status)
}

func TestEvaluateMissingAnswerIsDropped(t *testing.T) {
	f := newEvaluationFixture(t)
	assert.NoError(t, f.svc.Evaluate(context.Background(), 404))
}

func evaluationJob(t *testing.T, p queue.EvaluationPayload, attempt int) queue.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return queue.Job{ID: "j1", Queue: queue.EvaluationQueue, Payload: raw, Attempt: attempt, MaxAttempts: 3}
}

func TestHandleJobDecodesPayload(t *testing.T) {
	f := newEvaluationFixture(t)
	id := f.submit(t, 1, 2, "b")

	require.NoError(t, f.svc.HandleJob(context.Background(), evaluationJob(t, queue.EvaluationPayload{AnswerID: id, SessionID: f.session.ID}, 1)))
	assert.Equal(t, model.AnswerStatusEvaluated, f.answers.find(id).Status)

	bad := queue.Job{ID: "bad", Payload: json.RawMessage(`"nope"`)}
	assert.NoError(t, f.svc.HandleJob(context.Background(), bad))
}

func TestOnExhaustedForceFinalizes(t *testing.T) {
	f := newEvaluationFixture(t)
	id := f.submit(t, 1, 2, "b")

	f.svc.OnExhausted(context.Background(), evaluationJob(t, queue.EvaluationPayload{AnswerID: id, SessionID: f.session.ID}, 3), errors.New("db down"))

	a := f.answers.find(id)
	assert.Equal(t, model.AnswerStatusEvaluated, a.Status)
	assert.Zero(t, *a.Score)
	assert.Equal(t, 0.0, *f.sessions.sessions[f.session.ID].PercentageScore)
}
