package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lshigami/intervue/config"
	"github.com/lshigami/intervue/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func mailConfig() *config.Config {
	return &config.Config{Mail: config.Mail{Host: "smtp.example.com", Port: 587, User: "bot@example.com"}}
}

func sampleReport() model.PanelReport {
	return model.PanelReport{
		OverallScore:      72,
		Passed:            true,
		CandidateProfile:  goProfile,
		QuestionsAsked:    10,
		QuestionsAnswered: 8,
		QuestionsSkipped:  2,
		SectionScores:     []model.PanelSectionScore{{Section: "core", Score: 36, MaxScore: 50, Percentage: 72}},
		Strengths:         []string{"Concurrency"},
		ImprovementPlan:   "Review profiling.",
	}
}

func TestNotifierDeliversOnStop(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifierService(mailConfig(), mailer)
	n.Start()

	n.Notify(ReportEmail{To: "dev@example.com", CandidateName: "Sam", SessionID: "s1", Report: sampleReport()})
	n.Notify(ReportEmail{SessionID: "no-recipient", Report: sampleReport()})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, n.Stop(ctx))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "dev@example.com", mailer.sent[0].to)
	assert.Equal(t, "Your Panel Interview Report - 72% - PASSED", mailer.sent[0].subject)

	// closed notifier ignores late messages
	n.Notify(ReportEmail{To: "late@example.com", Report: sampleReport()})
	assert.Len(t, mailer.sent, 1)
}

func TestNotifierDisabledWithoutSMTP(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifierService(&config.Config{}, mailer)
	n.Start()
	n.Notify(ReportEmail{To: "dev@example.com", Report: sampleReport()})
	require.NoError(t, n.Stop(context.Background()))
	assert.Empty(t, mailer.sent)
}

func TestNotifierSendsThroughUnauthenticatedRelay(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifierService(&config.Config{Mail: config.Mail{Host: "relay.internal", Port: 25}}, mailer)
	n.Start()
	n.Notify(ReportEmail{To: "dev@example.com", SessionID: "s1", Report: sampleReport()})
	require.NoError(t, n.Stop(context.Background()))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "dev@example.com", mailer.sent[0].to)
}

func TestNotifierSurvivesMailerError(t *testing.T) {
	mailer := &fakeMailer{err: assert.AnError}
	n := NewNotifierService(mailConfig(), mailer)
	n.Start()
	n.Notify(ReportEmail{To: "dev@example.com", Report: sampleReport()})
	assert.NoError(t, n.Stop(context.Background()))
}

func TestRenderReportEmail(t *testing.T) {
	subject, body := renderReportEmail(ReportEmail{CandidateName: "Sam", SessionID: "s1", Report: sampleReport()})
	assert.Equal(t, "Your Panel Interview Report - 72% - PASSED", subject)
	assert.Contains(t, body, "Hi Sam,")
	assert.Contains(t, body, "core: 36/50 (72%)")
	assert.Contains(t, body, "Strengths:\n  - Concurrency")
	assert.NotContains(t, body, "Weak areas")
	assert.Contains(t, body, "Review profiling.")

	r := sampleReport()
	r.Passed = false
	r.OverallScore = 41
	subject, body = renderReportEmail(ReportEmail{Report: r, Abandoned: true})
	assert.Equal(t, "Your Panel Interview Report (Early Exit) - 41% - Go", subject)
	assert.Contains(t, body, "Hi Candidate,")
	assert.Contains(t, body, "8/10 questions answered (2 skipped)")
	assert.Contains(t, body, "NOT PASSED")
}

func TestRenderReportEmailKeepsSubjectOnOneLine(t *testing.T) {
	r := sampleReport()
	r.CandidateProfile.Track = "Go\r\nBcc: attacker@example.com\nX-Injected: 1"
	subject, _ := renderReportEmail(ReportEmail{Report: r, Abandoned: true})
	assert.NotContains(t, subject, "\r")
	assert.NotContains(t, subject, "\n")
	assert.Equal(t, "Your Panel Interview Report (Early Exit) - 72% - Go Bcc: attacker@example.com X-Injected: 1", subject)
	assert.Equal(t, "a b c", headerValue("a\r\nb\rc"))
}
