package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/queue"
	"github.com/lshigami/intervue/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// fakeLLM replays canned bodies in order. With no bodies left, or err set, it fails.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []LLMRequest
}

func (f *fakeLLM) next(req LLMRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", ErrLLMUnavailable
	}
	body := f.responses[0]
	f.responses = f.responses[1:]
	return body, nil
}

func (f *fakeLLM) GenerateJSON(_ context.Context, req LLMRequest, out interface{}) error {
	body, err := f.next(req)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeLLM) GenerateText(_ context.Context, req LLMRequest) (string, error) {
	return f.next(req)
}

type fakeSandbox struct {
	results []SandboxResult
	calls   []SandboxRunOptions
}

func (f *fakeSandbox) RunCode(_ context.Context, opts SandboxRunOptions) SandboxResult {
	f.calls = append(f.calls, opts)
	i := len(f.calls) - 1
	if i < len(f.results) {
		return f.results[i]
	}
	return SandboxResult{}
}

type fakeLocker struct {
	err      error
	acquired int
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []ReportEmail
}

func (n *fakeNotifier) Notify(msg ReportEmail) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *fakeNotifier) Start() {}

func (n *fakeNotifier) Stop(context.Context) error { return nil }

type enqueued struct {
	Queue   string
	Payload interface{}
	Opts    queue.EnqueueOptions
}

type fakeQueue struct {
	jobs []enqueued
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, payload interface{}, opts queue.EnqueueOptions) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, enqueued{Queue: name, Payload: payload, Opts: opts})
	return "job", nil
}

func (q *fakeQueue) count(name string) int {
	n := 0
	for _, j := range q.jobs {
		if j.Queue == name {
			n++
		}
	}
	return n
}

// memPanelRepo mirrors the conditional write of the SQL repository: a patch
// only lands while the stored row is active at the caller's version.
type memPanelRepo struct {
	mu       sync.Mutex
	sessions map[string]model.PanelSession
	// beforeApply runs once against the stored row before the next Apply.
	beforeApply func(stored *model.PanelSession)
}

func newMemPanelRepo() *memPanelRepo {
	return &memPanelRepo{sessions: map[string]model.PanelSession{}}
}

func (r *memPanelRepo) Create(_ context.Context, s *model.PanelSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.CreatedAt = time.Now()
	r.sessions[s.ID] = *s
	return nil
}

func (r *memPanelRepo) FindByID(_ context.Context, id string) (*model.PanelSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *memPanelRepo) FindAllByCandidate(_ context.Context, candidateID string) ([]model.PanelSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PanelSession
	for _, s := range r.sessions {
		if s.CandidateID == candidateID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memPanelRepo) Apply(_ context.Context, s *model.PanelSession, patches ...model.PanelPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hook := r.beforeApply; hook != nil {
		r.beforeApply = nil
		stored := r.sessions[s.ID]
		hook(&stored)
		r.sessions[s.ID] = stored
	}

	next := *s
	cols, err := model.ApplyPatches(&next, patches...)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	stored, ok := r.sessions[s.ID]
	if !ok || stored.Status != model.PanelStatusActive || stored.Version != s.Version {
		return repository.ErrStaleSession
	}
	next.Version = s.Version + 1
	r.sessions[s.ID] = next
	*s = next
	return nil
}

func (r *memPanelRepo) stored(id string) model.PanelSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

type memTemplateRepo struct {
	templates map[uint]*model.Template
	nextID    uint
}

func newMemTemplateRepo() *memTemplateRepo {
	return &memTemplateRepo{templates: map[uint]*model.Template{}}
}

func (r *memTemplateRepo) Create(_ context.Context, t *model.Template) error {
	r.nextID++
	t.ID = r.nextID
	cp := *t
	r.templates[t.ID] = &cp
	return nil
}

func (r *memTemplateRepo) FindByID(_ context.Context, id uint) (*model.Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTemplateRepo) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Template, error) {
	return r.FindByID(ctx, id)
}

func (r *memTemplateRepo) FindAllActiveWithQuestionCount(context.Context) ([]repository.TemplateWithCount, error) {
	var out []repository.TemplateWithCount
	for _, t := range r.templates {
		if t.IsActive {
			out = append(out, repository.TemplateWithCount{Template: *t, QuestionCount: len(t.Questions)})
		}
	}
	return out, nil
}

type memQuestionRepo struct {
	questions []model.Question
	reads     int
}

func (r *memQuestionRepo) Create(_ context.Context, q *model.Question) error {
	q.ID = uint(len(r.questions) + 1)
	r.questions = append(r.questions, *q)
	return nil
}

func (r *memQuestionRepo) FindByID(_ context.Context, id uint) (*model.Question, error) {
	for _, q := range r.questions {
		if q.ID == id {
			cp := q
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memQuestionRepo) FindActiveByTemplateID(_ context.Context, templateID uint) ([]model.Question, error) {
	r.reads++
	var out []model.Question
	for _, q := range r.questions {
		if q.TemplateID == templateID && q.IsActive {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

type memSessionRepo struct {
	sessions  map[uint]*model.Session
	templates *memTemplateRepo
	answers   *memAnswerRepo
	nextID    uint
}

func newMemSessionRepo(templates *memTemplateRepo) *memSessionRepo {
	return &memSessionRepo{sessions: map[uint]*model.Session{}, templates: templates}
}

func (r *memSessionRepo) Create(_ context.Context, s *model.Session) error {
	r.nextID++
	s.ID = r.nextID
	cp := *s
	cp.Template = model.Template{}
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) FindByID(_ context.Context, id uint) (*model.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) FindByIDWithTemplate(ctx context.Context, id uint) (*model.Session, error) {
	s, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.templates != nil {
		if t, ok := r.templates.templates[s.TemplateID]; ok {
			s.Template = *t
		}
	}
	return s, nil
}

func (r *memSessionRepo) FindInProgress(_ context.Context, candidateID string, templateID uint) (*model.Session, error) {
	for _, s := range r.sessions {
		if s.CandidateID == candidateID && s.TemplateID == templateID && s.Status == model.SessionStatusInProgress {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSessionRepo) FindAllByCandidate(_ context.Context, candidateID string) ([]model.Session, error) {
	var out []model.Session
	for _, s := range r.sessions {
		if s.CandidateID == candidateID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) RecordAnswer(ctx context.Context, a *model.Answer, expected int) error {
	s := r.sessions[a.SessionID]
	if s == nil || s.Status != model.SessionStatusInProgress || s.CurrentQuestionIndex != expected {
		return repository.ErrIndexMoved
	}
	for _, existing := range r.answers.answers {
		if existing.SessionID == a.SessionID && existing.QuestionID == a.QuestionID {
			return repository.ErrDuplicateAnswer
		}
	}
	s.CurrentQuestionIndex++
	return r.answers.Create(ctx, a)
}

func (r *memSessionRepo) UpdateScores(_ context.Context, id uint, total, maxScore, pct float64) error {
	s := r.sessions[id]
	s.TotalScore, s.MaxPossibleScore, s.PercentageScore = &total, &maxScore, &pct
	return nil
}

func (r *memSessionRepo) MarkCompleted(_ context.Context, id uint, completedAt time.Time, duration int) (bool, error) {
	s := r.sessions[id]
	if s.Status != model.SessionStatusInProgress {
		return false, nil
	}
	s.Status = model.SessionStatusCompleted
	s.CompletedAt = &completedAt
	s.DurationSeconds = duration
	return true, nil
}

func (r *memSessionRepo) IncrementIntegrity(_ context.Context, id uint, tabSwitch, copyPaste int, flag bool) error {
	s := r.sessions[id]
	s.TabSwitchCount += tabSwitch
	s.CopyPasteCount += copyPaste
	s.IsIntegrityFlagged = s.IsIntegrityFlagged || flag
	return nil
}

func (r *memSessionRepo) SetReport(_ context.Context, id uint, reportID uint) error {
	r.sessions[id].ReportID = &reportID
	return nil
}

type memAnswerRepo struct {
	answers   []*model.Answer
	questions map[uint]model.Question
	// saveFailures makes the next SaveEvaluation calls fail.
	saveFailures int
}

func newMemAnswerRepo() *memAnswerRepo {
	return &memAnswerRepo{questions: map[uint]model.Question{}}
}

func (r *memAnswerRepo) Create(_ context.Context, a *model.Answer) error {
	a.ID = uint(len(r.answers) + 1)
	cp := *a
	r.answers = append(r.answers, &cp)
	return nil
}

func (r *memAnswerRepo) find(id uint) *model.Answer {
	for _, a := range r.answers {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (r *memAnswerRepo) FindByIDWithQuestion(_ context.Context, id uint) (*model.Answer, error) {
	a := r.find(id)
	if a == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	cp.Question = r.questions[a.QuestionID]
	return &cp, nil
}

func (r *memAnswerRepo) FindBySession(_ context.Context, sessionID uint) ([]model.Answer, error) {
	var out []model.Answer
	for _, a := range r.answers {
		if a.SessionID == sessionID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memAnswerRepo) FindEvaluatedBySession(_ context.Context, sessionID uint) ([]model.Answer, error) {
	var out []model.Answer
	for _, a := range r.answers {
		if a.SessionID == sessionID && a.Status == model.AnswerStatusEvaluated {
			cp := *a
			cp.Question = r.questions[a.QuestionID]
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *memAnswerRepo) FindRecentEvaluated(ctx context.Context, sessionID uint, limit int) ([]model.Answer, error) {
	evaluated, _ := r.FindEvaluatedBySession(ctx, sessionID)
	var out []model.Answer
	for i := len(evaluated) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, evaluated[i])
	}
	return out, nil
}

func (r *memAnswerRepo) MarkEvaluating(_ context.Context, id uint) error {
	if a := r.find(id); a != nil && a.Status == model.AnswerStatusPending {
		a.Status = model.AnswerStatusEvaluating
	}
	return nil
}

func (r *memAnswerRepo) SaveEvaluation(_ context.Context, id uint, score float64, detail model.EvaluationDetail, evaluatedAt time.Time) error {
	if r.saveFailures > 0 {
		r.saveFailures--
		return gorm.ErrInvalidTransaction
	}
	a := r.find(id)
	if a == nil {
		return gorm.ErrRecordNotFound
	}
	a.Status = model.AnswerStatusEvaluated
	a.Score = &score
	a.Evaluation = datatypes.NewJSONType(detail)
	a.EvaluatedAt = &evaluatedAt
	return nil
}

type memReportRepo struct {
	reports map[uint]*model.Report
	nextID  uint
}

func newMemReportRepo() *memReportRepo {
	return &memReportRepo{reports: map[uint]*model.Report{}}
}

func (r *memReportRepo) FindOrCreatePending(_ context.Context, sessionID uint) (*model.Report, error) {
	if rep, ok := r.reports[sessionID]; ok {
		cp := *rep
		return &cp, nil
	}
	r.nextID++
	rep := &model.Report{ID: r.nextID, SessionID: sessionID, Status: model.ReportStatusPending}
	r.reports[sessionID] = rep
	cp := *rep
	return &cp, nil
}

func (r *memReportRepo) FindBySessionID(_ context.Context, sessionID uint) (*model.Report, error) {
	rep, ok := r.reports[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rep
	return &cp, nil
}

func (r *memReportRepo) UpdateStatus(_ context.Context, id uint, status model.ReportStatus) error {
	for _, rep := range r.reports {
		if rep.ID == id {
			rep.Status = status
		}
	}
	return nil
}

func (r *memReportRepo) Save(_ context.Context, report *model.Report) error {
	cp := *report
	r.reports[report.SessionID] = &cp
	return nil
}

type memIntegrityRepo struct {
	events []model.IntegrityEvent
}

func (r *memIntegrityRepo) Create(_ context.Context, e *model.IntegrityEvent) error {
	e.ID = uint(len(r.events) + 1)
	r.events = append(r.events, *e)
	return nil
}

func (r *memIntegrityRepo) CountBySession(_ context.Context, sessionID uint) (int64, error) {
	var n int64
	for _, e := range r.events {
		if e.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (r *memIntegrityRepo) FindBySession(_ context.Context, sessionID uint) ([]model.IntegrityEvent, error) {
	var out []model.IntegrityEvent
	for _, e := range r.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func floatPtr(v float64) *float64 { return &v }
