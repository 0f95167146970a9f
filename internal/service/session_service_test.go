package service

import (
	"context"
	"testing"
	"time"

	"github.com/lshigami/intervue/config"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/queue"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type sessionFixture struct {
	svc       *sessionService
	templates *memTemplateRepo
	sessions  *memSessionRepo
	answers   *memAnswerRepo
	questions *memQuestionRepo
	jobs      *fakeQueue
	clock     time.Time
}

func newSessionFixture(t *testing.T, questionCount int) *sessionFixture {
	t.Helper()
	ctx := context.Background()
	f := &sessionFixture{
		templates: newMemTemplateRepo(),
		answers:   newMemAnswerRepo(),
		questions: &memQuestionRepo{},
		jobs:      &fakeQueue{},
		clock:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.sessions = newMemSessionRepo(f.templates)
	f.sessions.answers = f.answers
	require.NoError(t, f.templates.Create(ctx, &model.Template{Name: "Go", Role: "backend", TimeLimitMinutes: 30, IsActive: true}))
	for i := 0; i < questionCount; i++ {
		q := withID(*mcqQuestion("a"), 0)
		q.TemplateID = 1
		q.IsActive = true
		q.OrderIndex = i
		require.NoError(t, f.questions.Create(ctx, &q))
	}

	qs, err := NewQuestionService(f.questions, 0)
	require.NoError(t, err)
	svc := NewSessionService(f.templates, f.sessions, f.answers, qs, f.jobs, &config.Config{}).(*sessionService)
	svc.now = func() time.Time { return f.clock }
	f.svc = svc
	return f
}

func (f *sessionFixture) start(t *testing.T) uint {
	t.Helper()
	resp, err := f.svc.StartSession(context.Background(), candidate, dto.StartSessionDTO{TemplateID: 1})
	require.NoError(t, err)
	return resp.ID
}

func TestStartSessionResumesInProgress(t *testing.T) {
	f := newSessionFixture(t, 2)
	first := f.start(t)

	f.clock = f.clock.Add(10 * time.Minute)
	resp, err := f.svc.StartSession(context.Background(), candidate, dto.StartSessionDTO{TemplateID: 1})
	require.NoError(t, err)
	assert.Equal(t, first, resp.ID)
	assert.Equal(t, "Go", resp.TemplateName)
	assert.Equal(t, "in_progress", resp.Status)
}

func TestStartSessionReplacesExpired(t *testing.T) {
	f := newSessionFixture(t, 2)
	first := f.start(t)

	f.clock = f.clock.Add(31 * time.Minute)
	second := f.start(t)
	assert.NotEqual(t, first, second)
	assert.Equal(t, model.SessionStatusCompleted, f.sessions.sessions[first].Status)
	assert.Equal(t, 1, f.jobs.count(queue.ReportQueue))
}

func TestStartSessionUnknownTemplate(t *testing.T) {
	f := newSessionFixture(t, 1)
	_, err := f.svc.StartSession(context.Background(), candidate, dto.StartSessionDTO{TemplateID: 9})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestNextQuestionAndSubmit(t *testing.T) {
	f := newSessionFixture(t, 2)
	id := f.start(t)
	ctx := context.Background()

	next, err := f.svc.NextQuestion(ctx, candidate, id)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Index)
	assert.Equal(t, 2, next.Total)
	assert.Equal(t, 1800, next.TimeRemainingSeconds)
	for _, o := range next.Question.Options {
		assert.False(t, o.IsCorrect)
	}

	resp, err := f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: next.Question.ID, SelectedOptionIDs: []string{"a"}})
	require.NoError(t, err)
	assert.True(t, resp.NextAvailable)
	assert.Equal(t, 1, f.sessions.sessions[id].CurrentQuestionIndex)

	require.Len(t, f.jobs.jobs, 1)
	job := f.jobs.jobs[0]
	assert.Equal(t, queue.EvaluationQueue, job.Queue)
	assert.Equal(t, 3, job.Opts.MaxAttempts)
	assert.Equal(t, 2*time.Second, job.Opts.Backoff)
	payload := job.Payload.(queue.EvaluationPayload)
	assert.Equal(t, resp.AnswerID, payload.AnswerID)
	assert.Equal(t, "mcq", payload.QuestionType)

	stored := f.answers.find(resp.AnswerID)
	assert.Equal(t, model.AnswerStatusPending, stored.Status)
	assert.Equal(t, 2.0, stored.MaxScore)

	_, err = f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: next.Question.ID})
	assert.ErrorIs(t, err, ErrAlreadyAnswered)

	_, err = f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: 77})
	assert.ErrorIs(t, err, ErrQuestionNotInSession)

	next, err = f.svc.NextQuestion(ctx, candidate, id)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Index)
	resp, err = f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: next.Question.ID})
	require.NoError(t, err)
	assert.False(t, resp.NextAvailable)

	_, err = f.svc.NextQuestion(ctx, candidate, id)
	assert.ErrorIs(t, err, ErrNoMoreQuestions)
}

// racingAnswers runs interleave once, between the duplicate check and the write.
type racingAnswers struct {
	*memAnswerRepo
	interleave func()
}

func (r *racingAnswers) FindBySession(ctx context.Context, sessionID uint) ([]model.Answer, error) {
	answers, err := r.memAnswerRepo.FindBySession(ctx, sessionID)
	if hook := r.interleave; hook != nil {
		r.interleave = nil
		hook()
	}
	return answers, err
}

func TestConcurrentSubmitsDifferentQuestions(t *testing.T) {
	f := newSessionFixture(t, 2)
	id := f.start(t)
	ctx := context.Background()

	racing := &racingAnswers{memAnswerRepo: f.answers}
	f.svc.answerRepo = racing
	racing.interleave = func() {
		_, err := f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: 2, SelectedOptionIDs: []string{"a"}})
		require.NoError(t, err)
	}

	_, err := f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: 1, SelectedOptionIDs: []string{"a"}})
	assert.ErrorIs(t, err, ErrSessionChanged)
	assert.Len(t, f.answers.answers, 1)
	assert.Equal(t, 1, f.sessions.sessions[id].CurrentQuestionIndex)
	assert.Equal(t, 1, f.jobs.count(queue.EvaluationQueue))

	next, err := f.svc.NextQuestion(ctx, candidate, id)
	require.NoError(t, err)
	assert.Equal(t, uint(1), next.Question.ID, "the unanswered question is served")

	resp, err := f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: next.Question.ID, SelectedOptionIDs: []string{"a"}})
	require.NoError(t, err)
	assert.False(t, resp.NextAvailable)
	assert.Equal(t, 2, f.sessions.sessions[id].CurrentQuestionIndex)
}

func TestConcurrentSubmitsSameQuestion(t *testing.T) {
	f := newSessionFixture(t, 2)
	id := f.start(t)
	ctx := context.Background()

	racing := &racingAnswers{memAnswerRepo: f.answers}
	f.svc.answerRepo = racing
	racing.interleave = func() {
		_, err := f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: 1, SelectedOptionIDs: []string{"b"}})
		require.NoError(t, err)
	}

	_, err := f.svc.SubmitAnswer(ctx, candidate, id, dto.SubmitAnswerDTO{QuestionID: 1, SelectedOptionIDs: []string{"a"}})
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
	require.Len(t, f.answers.answers, 1)
	assert.Equal(t, []string{"b"}, f.answers.answers[0].SelectedOptionIDs.Data())
	assert.Equal(t, 1, f.jobs.count(queue.EvaluationQueue))
	assert.Equal(t, 1, f.sessions.sessions[id].CurrentQuestionIndex)
}

func TestRecordAnswerRejectsDuplicateAtSameIndex(t *testing.T) {
	f := newSessionFixture(t, 2)
	id := f.start(t)
	ctx := context.Background()

	require.NoError(t, f.sessions.RecordAnswer(ctx, &model.Answer{SessionID: id, QuestionID: 1}, 0))
	f.sessions.sessions[id].CurrentQuestionIndex = 0
	err := f.sessions.RecordAnswer(ctx, &model.Answer{SessionID: id, QuestionID: 1}, 0)
	assert.ErrorIs(t, err, repository.ErrDuplicateAnswer)
	assert.Len(t, f.answers.answers, 1)
}

func TestSubmitAfterTimeLimitClosesSession(t *testing.T) {
	f := newSessionFixture(t, 1)
	id := f.start(t)

	f.clock = f.clock.Add(45 * time.Minute)
	_, err := f.svc.SubmitAnswer(context.Background(), candidate, id, dto.SubmitAnswerDTO{QuestionID: 1})
	assert.ErrorIs(t, err, ErrTimeLimitExceeded)
	assert.Equal(t, model.SessionStatusCompleted, f.sessions.sessions[id].Status)
	assert.Equal(t, 1, f.jobs.count(queue.ReportQueue))

	_, err = f.svc.NextQuestion(context.Background(), candidate, id)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestCompleteSessionIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, 1)
	id := f.start(t)
	f.clock = f.clock.Add(5 * time.Minute)

	resp, err := f.svc.CompleteSession(context.Background(), candidate, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 300, resp.DurationSeconds)

	_, err = f.svc.CompleteSession(context.Background(), candidate, id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.jobs.count(queue.ReportQueue), "one report job per completion")
	assert.Equal(t, 3, f.jobs.jobs[0].Opts.MaxAttempts)
	assert.Equal(t, 5*time.Second, f.jobs.jobs[0].Opts.Backoff)
}

func TestSessionOwnership(t *testing.T) {
	f := newSessionFixture(t, 1)
	id := f.start(t)

	_, err := f.svc.GetSession(context.Background(), "intruder", id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetSession(context.Background(), candidate, 404)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetSessionIncludesEvaluations(t *testing.T) {
	f := newSessionFixture(t, 1)
	id := f.start(t)
	require.NoError(t, f.answers.Create(context.Background(), &model.Answer{
		SessionID:  id,
		QuestionID: 1,
		Status:     model.AnswerStatusEvaluated,
		Score:      floatPtr(2),
		MaxScore:   2,
		Evaluation: datatypes.NewJSONType(model.EvaluationDetail{Passed: true, AIFeedback: "Correct answer selected."}),
	}))

	resp, err := f.svc.GetSession(context.Background(), candidate, id)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	require.NotNil(t, resp.Answers[0].Result)
	assert.True(t, resp.Answers[0].Result.Passed)

	list, err := f.svc.ListSessions(context.Background(), candidate)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIntegrityEvents(t *testing.T) {
	f := newSessionFixture(t, 1)
	id := f.start(t)
	integrity := &memIntegrityRepo{}
	svc := NewIntegrityService(f.sessions, integrity)
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, candidate, id, dto.IntegrityEventCreateDTO{EventType: "telepathy"})
	assert.ErrorIs(t, err, ErrUnknownIntegrityEvent)

	ev, err := svc.RecordEvent(ctx, candidate, id, dto.IntegrityEventCreateDTO{EventType: "tab_switch", Metadata: map[string]interface{}{"count": 1}})
	require.NoError(t, err)
	assert.Equal(t, "medium", ev.Severity)
	assert.Equal(t, 1, f.sessions.sessions[id].TabSwitchCount)

	for _, ty := range []string{"copy_paste", "window_blur", "inactivity"} {
		_, err := svc.RecordEvent(ctx, candidate, id, dto.IntegrityEventCreateDTO{EventType: ty})
		require.NoError(t, err)
	}
	s := f.sessions.sessions[id]
	assert.Equal(t, 1, s.CopyPasteCount)
	assert.False(t, s.IsIntegrityFlagged)

	_, err = svc.RecordEvent(ctx, candidate, id, dto.IntegrityEventCreateDTO{EventType: "devtools_open"})
	require.NoError(t, err)
	assert.True(t, f.sessions.sessions[id].IsIntegrityFlagged, "fifth event flags the session")

	list, err := svc.ListEvents(ctx, candidate, id)
	require.NoError(t, err)
	assert.Len(t, list, 5)

	_, err = svc.RecordEvent(ctx, "intruder", id, dto.IntegrityEventCreateDTO{EventType: "tab_switch"})
	assert.ErrorIs(t, err, ErrForbidden)
}
