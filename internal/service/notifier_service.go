package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lshigami/intervue/config"
	"github.com/lshigami/intervue/internal/model"
	"github.com/rs/zerolog/log"
)

const (
	notifierBuffer  = 64
	smtpDialTimeout = 10 * time.Second
	smtpSendTimeout = 30 * time.Second
)

// Mailer delivers one plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpMailer struct {
	cfg config.Mail
}

func NewSMTPMailer(cfg *config.Config) Mailer {
	return &smtpMailer{cfg: cfg.Mail}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial smtp %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(smtpSendTimeout))

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open smtp session: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls failed: %w", err)
		}
	}
	if m.cfg.User != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	from := m.cfg.From
	if from == "" {
		from = m.cfg.User
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO failed: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	msg := "From: " + headerValue(from) + "\r\nTo: " + headerValue(to) + "\r\nSubject: " + headerValue(subject) +
		"\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n" +
		strings.ReplaceAll(body, "\n", "\r\n")
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write smtp body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp message rejected: %w", err)
	}
	return c.Quit()
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue keeps a header on one line.
func headerValue(v string) string {
	return headerBreaks.Replace(v)
}

// ReportEmail is the completion or early-exit summary sent to a panel candidate.
type ReportEmail struct {
	To            string
	CandidateName string
	SessionID     string
	Report        model.PanelReport
	Abandoned     bool
}

// NotifierService sends report emails from a background goroutine. Notify
// never blocks; a full buffer drops the message.
type NotifierService interface {
	Notify(msg ReportEmail)
	Start()
	Stop(ctx context.Context) error
}

type notifierService struct {
	mailer  Mailer
	enabled bool
	queue   chan ReportEmail
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

func NewNotifierService(cfg *config.Config, mailer Mailer) NotifierService {
	enabled := cfg.Mail.Host != ""
	if !enabled {
		log.Warn().Msg("SMTP is not configured. Report emails will be skipped.")
	}
	return &notifierService{mailer: mailer, enabled: enabled, queue: make(chan ReportEmail, notifierBuffer)}
}

func (n *notifierService) Notify(msg ReportEmail) {
	if !n.enabled {
		log.Warn().Str("sessionID", msg.SessionID).Msg("Mail not configured, skipping report email")
		return
	}
	if msg.To == "" {
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- msg:
	default:
		log.Warn().Str("sessionID", msg.SessionID).Msg("Notifier queue full, dropping report email")
	}
}

func (n *notifierService) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for msg := range n.queue {
			n.deliver(msg)
		}
	}()
}

// Stop drains queued messages until ctx expires.
func (n *notifierService) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *notifierService) deliver(msg ReportEmail) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("sessionID", msg.SessionID).Msg("Recovered panic while sending report email")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), smtpSendTimeout)
	defer cancel()
	subject, body := renderReportEmail(msg)
	if err := n.mailer.Send(ctx, msg.To, subject, body); err != nil {
		log.Error().Err(err).Str("sessionID", msg.SessionID).Msg("Failed to send report email")
		return
	}
	log.Info().Str("sessionID", msg.SessionID).Msg("Report email sent")
}

func renderReportEmail(msg ReportEmail) (string, string) {
	r := msg.Report
	passLabel := "NOT PASSED"
	if r.Passed {
		passLabel = "PASSED"
	}
	var subject string
	if msg.Abandoned {
		subject = fmt.Sprintf("Your Panel Interview Report (Early Exit) - %g%% - %s", r.OverallScore, r.CandidateProfile.Track)
	} else {
		subject = fmt.Sprintf("Your Panel Interview Report - %g%% - %s", r.OverallScore, passLabel)
	}
	subject = headerValue(subject)

	var b strings.Builder
	name := msg.CandidateName
	if name == "" {
		name = "Candidate"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	if msg.Abandoned {
		fmt.Fprintf(&b, "Interview was exited early: %d/%d questions answered (%d skipped).\n\n", r.QuestionsAnswered, r.QuestionsAsked, r.QuestionsSkipped)
	}
	fmt.Fprintf(&b, "Overall score: %g%% (%s)\n", r.OverallScore, passLabel)
	fmt.Fprintf(&b, "Track: %s | Role: %s | Difficulty: %s\n", r.CandidateProfile.Track, r.CandidateProfile.Role, r.CandidateProfile.Difficulty)
	if len(r.SectionScores) > 0 {
		b.WriteString("\nSection scores:\n")
		for _, s := range r.SectionScores {
			fmt.Fprintf(&b, "  - %s: %g/%g (%g%%)\n", s.Section, s.Score, s.MaxScore, s.Percentage)
		}
	}
	writeList(&b, "Strengths", r.Strengths)
	writeList(&b, "Weak areas", r.WeakAreas)
	writeList(&b, "Interview tips", r.InterviewTips)
	if r.ImprovementPlan != "" {
		fmt.Fprintf(&b, "\nImprovement plan:\n%s\n", r.ImprovementPlan)
	}
	fmt.Fprintf(&b, "\nSession: %s\n", msg.SessionID)
	return subject, b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}
