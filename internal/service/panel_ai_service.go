package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/lshigami/intervue/internal/metrics"
	"github.com/lshigami/intervue/internal/model"
	"github.com/rs/zerolog/log"
)

var (
	warmupSubtopics = []string{
		"your background and journey into this technology stack",
		"a challenging project you shipped recently and the technical decisions you made",
		"a time you had to learn a new tool or technology under time pressure",
		"your development workflow: tools, testing habits, and code review approach",
		"a production incident or bug you debugged and what you learned",
	}
	coreSubtopics = []string{
		"concurrency and thread-safety (locks, race conditions, atomic operations)",
		"memory management and garbage collection internals",
		"design patterns (which ones you apply and why, with a real example)",
		"performance profiling and optimization techniques",
		"security: common vulnerabilities and how you prevent them in your code",
		"distributed systems concepts: consistency, availability, partition tolerance",
		"testing strategy: unit vs integration vs e2e, mocking, test coverage",
		"system architecture and scalability: how you would design for 10x load",
		"database internals: indexing strategies, query optimization, transactions",
		"framework internals and how the technology works under the hood",
	}
	codingSubtopics = []string{
		"arrays or strings manipulation with optimal time complexity",
		"linked list or tree traversal",
		"dynamic programming or memoization",
		"graph traversal (BFS/DFS)",
		"hash maps and frequency counting",
		"sliding window or two-pointer technique",
		"binary search or sorted data structures",
		"stack or queue based problem",
	}
	querySubtopics = []string{
		"window functions (ROW_NUMBER, RANK, DENSE_RANK, LAG, LEAD)",
		"complex multi-table JOINs with aggregation",
		"CTEs and recursive queries",
		"subqueries vs JOINs performance considerations",
		"grouping, HAVING clauses and conditional aggregation",
		"NULL handling and COALESCE patterns",
		"self-joins and hierarchical data",
	}
)

const (
	panelMaxScore          = 10.0
	defaultPanelScore      = 5.0
	defaultPanelPass       = 60.0
	defaultAnswerFeedback  = "Answer received."
	evaluationFallbackText = "Evaluation could not be completed. Score estimated."
	followUpFallbackText   = "Follow-up evaluation unavailable."
)

// Panelist describes one interviewer seat and the answer format it expects.
type Panelist struct {
	Name         string
	Role         string
	QuestionType string
	AnswerFormat string
}

var (
	panelistA = Panelist{Name: "Panelist A", Role: "Technical Lead", QuestionType: "technical", AnswerFormat: "text"}
	panelistB = Panelist{Name: "Panelist B", Role: "Coding Evaluator", QuestionType: "coding", AnswerFormat: "code"}
	panelistC = Panelist{Name: "Panelist C", Role: "SQL/Query Evaluator", QuestionType: "query", AnswerFormat: "sql"}
)

// Panel is the fixed interviewer line-up shown to the candidate.
func Panel() []Panelist {
	return []Panelist{panelistA, panelistB, panelistC}
}

func panelistFor(phase model.PanelPhase) Panelist {
	switch phase {
	case model.PhaseCoding:
		return panelistB
	case model.PhaseQuery:
		return panelistC
	}
	return panelistA
}

func subtopicPool(phase model.PanelPhase) []string {
	switch phase {
	case model.PhaseWarmup:
		return warmupSubtopics
	case model.PhaseCoding:
		return codingSubtopics
	case model.PhaseQuery:
		return querySubtopics
	}
	return coreSubtopics
}

// PickSubtopic rotates through the phase pool by 1-based question number.
func PickSubtopic(phase model.PanelPhase, questionNumber int) string {
	pool := subtopicPool(phase)
	n := questionNumber - 1
	if n < 0 {
		n = 0
	}
	return pool[n%len(pool)]
}

type QARecord struct {
	Question string
	Answer   string
	Score    float64
}

type QuestionRequest struct {
	Phase          model.PanelPhase
	Profile        model.CandidateProfile
	QuestionNumber int
	PreviousQA     []QARecord
	AlreadyAsked   []string
}

type AnswerEvaluation struct {
	Score            float64
	Feedback         string
	FollowUpQuestion string
}

type FollowUpEvaluation struct {
	Score    float64
	Feedback string
}

type ReportRequest struct {
	Profile           model.CandidateProfile
	Questions         []model.PanelQuestion
	Answers           []model.PanelAnswer
	Partial           bool
	QuestionsAsked    int
	QuestionsAnswered int
	QuestionsSkipped  int
}

// PanelAIService wraps every panel oracle call. Methods never fail: a
// deterministic fallback replaces any unusable model response.
type PanelAIService interface {
	GenerateQuestion(ctx context.Context, req QuestionRequest) model.PanelQuestion
	EvaluateAnswer(ctx context.Context, q model.PanelQuestion, answer, language string, profile model.CandidateProfile) AnswerEvaluation
	EvaluateFollowUp(ctx context.Context, originalQuestion, followUpQuestion, followUpAnswer, track string) FollowUpEvaluation
	GenerateReport(ctx context.Context, req ReportRequest) model.PanelReport
}

type panelAIService struct {
	llm         GeminiLLMService
	metrics     *metrics.Metrics
	passPercent float64
}

func NewPanelAIService(llm GeminiLLMService, m *metrics.Metrics, passPercent float64) PanelAIService {
	if passPercent <= 0 {
		passPercent = defaultPanelPass
	}
	return &panelAIService{llm: llm, metrics: m, passPercent: passPercent}
}

func (s *panelAIService) fallback(operation string, err error) {
	log.Warn().Err(err).Str("operation", operation).Msg("Panel oracle failed, using fallback")
	s.metrics.OracleFallbacks.WithLabelValues(operation).Inc()
}

type generatedQuestion struct {
	QuestionText string             `json:"questionText"`
	Constraints  string             `json:"constraints"`
	Editor       *model.PanelEditor `json:"editor"`
	SchemaInfo   string             `json:"schemaInfo"`
}

func (s *panelAIService) GenerateQuestion(ctx context.Context, req QuestionRequest) model.PanelQuestion {
	asked := make(map[string]bool, len(req.AlreadyAsked))
	for _, q := range req.AlreadyAsked {
		asked[normalizeQuestion(q)] = true
	}

	prompt := questionPrompt(req)
	for attempt := 0; attempt < 2; attempt++ {
		var out generatedQuestion
		err := s.llm.GenerateJSON(ctx, LLMRequest{Prompt: prompt, Temperature: 0.9, MaxTokens: 1200}, &out)
		if err != nil {
			s.fallback("question", err)
			return fallbackQuestion(req.Phase, req.Profile.Track, req.QuestionNumber)
		}
		q := s.buildQuestion(req, out)
		if !asked[normalizeQuestion(q.QuestionText)] {
			return q
		}
		log.Warn().Int("questionNumber", req.QuestionNumber).Msg("Oracle repeated an asked question, regenerating")
	}
	s.fallback("question", fmt.Errorf("duplicate question returned twice"))
	return fallbackQuestion(req.Phase, req.Profile.Track, req.QuestionNumber)
}

func (s *panelAIService) buildQuestion(req QuestionRequest, out generatedQuestion) model.PanelQuestion {
	p := panelistFor(req.Phase)
	text := strings.TrimSpace(out.QuestionText)
	if text == "" {
		text = "Please describe your experience with " + req.Profile.Track
	}
	q := model.PanelQuestion{
		ID:                   uuid.NewString(),
		Phase:                req.Phase,
		AskedBy:              p.Name,
		Type:                 p.QuestionType,
		QuestionText:         text,
		Constraints:          out.Constraints,
		ExpectedAnswerFormat: p.AnswerFormat,
	}
	switch req.Phase {
	case model.PhaseCoding:
		q.Editor = out.Editor
	case model.PhaseQuery:
		q.SchemaInfo = out.SchemaInfo
	}
	return q
}

func normalizeQuestion(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func fallbackQuestion(phase model.PanelPhase, track string, questionNumber int) model.PanelQuestion {
	p := panelistFor(phase)
	subtopic := PickSubtopic(phase, questionNumber)
	var text string
	switch phase {
	case model.PhaseWarmup:
		text = fmt.Sprintf("Tell me about a time you worked with %s and specifically had to deal with %s. What was the situation and how did you handle it?", track, subtopic)
	case model.PhaseCoding:
		text = fmt.Sprintf("Write a solution that demonstrates your understanding of %s using %s. Describe your approach before coding.", subtopic, track)
	case model.PhaseQuery:
		text = fmt.Sprintf("Write a SQL query that demonstrates %s. Use a realistic business table structure of your choice.", subtopic)
	default:
		text = fmt.Sprintf("In your %s experience, how have you approached %s? Give me a concrete example from a real project.", track, subtopic)
	}
	return model.PanelQuestion{
		ID:                   uuid.NewString(),
		Phase:                phase,
		AskedBy:              p.Name,
		Type:                 p.QuestionType,
		QuestionText:         text,
		Constraints:          "Focus specifically on " + subtopic,
		ExpectedAnswerFormat: p.AnswerFormat,
	}
}

func questionPrompt(req QuestionRequest) string {
	p := panelistFor(req.Phase)
	prof := req.Profile

	avg := defaultPanelScore
	if len(req.PreviousQA) > 0 {
		var sum float64
		for _, qa := range req.PreviousQA {
			sum += qa.Score
		}
		avg = sum / float64(len(req.PreviousQA))
	}
	hint := "same difficulty"
	switch {
	case avg >= 7.5:
		hint = "harder"
	case avg < 4:
		hint = "easier"
	}
	subtopic := PickSubtopic(req.Phase, req.QuestionNumber)

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s (%s) on an AI interview panel. [session-nonce:%s]\n", p.Name, p.Role, uuid.NewString()[:8])
	fmt.Fprintf(&b, "Track: %s, Experience: %s years, Role: %s, Difficulty: %s.\n", prof.Track, prof.ExperienceYears, prof.Role, prof.Difficulty)
	fmt.Fprintf(&b, "You are generating question #%d for the %s phase.\n", req.QuestionNumber, req.Phase)
	fmt.Fprintf(&b, "Based on recent performance (avg %.1f/10), make the question %s.\n", avg, hint)

	recent := req.PreviousQA
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	if len(recent) > 0 {
		b.WriteString("\nPrevious Q&A context (for continuity only, do NOT repeat these topics):\n")
		for i, qa := range recent {
			fmt.Fprintf(&b, "Q%d: %s\nA: %s\nScore: %g/10\n\n", i+1, qa.Question, qa.Answer, qa.Score)
		}
	}
	if len(req.AlreadyAsked) > 0 {
		b.WriteString("\nSTRICT RULE: The following questions have ALREADY been asked. Do NOT repeat, rephrase, or overlap with ANY of them:\n")
		for i, q := range req.AlreadyAsked {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}
	fmt.Fprintf(&b, "\nMANDATORY: This question MUST specifically focus on the sub-topic: %q.\n", subtopic)
	b.WriteString("Generate a UNIQUE, SPECIFIC question on this sub-topic that has NOT been asked before in this session.\n\n")

	switch req.Phase {
	case model.PhaseCoding:
		fmt.Fprintf(&b, `Generate exactly 1 coding problem specifically about %q for a %s %s interview.
Candidate has %s years experience applying for %s.
Include: problem statement, constraints, 2 public test cases, 2 hidden test cases, and starter code.
Respond in STRICT JSON:
{"questionText": "full problem statement", "constraints": "time/space constraints, input limits",
 "editor": {"enabled": true, "languageOptions": ["javascript","python","java"], "starterCode": "...",
  "testCases": [{"input": "...", "output": "..."}, {"input": "[hidden]", "output": "[hidden]"}]}}`,
			subtopic, prof.Track, prof.Difficulty, prof.ExperienceYears, prof.Role)
	case model.PhaseQuery:
		fmt.Fprintf(&b, `Generate exactly 1 SQL query question specifically about %q for a %s %s interview.
Candidate has %s years experience.
Make it a realistic business scenario with concrete tables and data.
Respond in STRICT JSON:
{"questionText": "full question with table schema and sample data", "constraints": "edge cases to handle",
 "schemaInfo": "CREATE TABLE ... (1-3 tables)"}`,
			subtopic, prof.Track, prof.Difficulty, prof.ExperienceYears)
	default:
		kind := "core technical"
		if req.Phase == model.PhaseWarmup {
			kind = "warm-up"
		}
		fmt.Fprintf(&b, `Generate exactly 1 %s interview question specifically about %q for a %s candidate.
Candidate has %s years experience applying for %s (%s difficulty).
The question must be answerable in 2-4 minutes, probe hands-on knowledge and be a single clear question.
Respond in STRICT JSON:
{"questionText": "the specific question", "constraints": "any specific focus or scenario constraints"}`,
			kind, subtopic, prof.Track, prof.ExperienceYears, prof.Role, prof.Difficulty)
	}
	return b.String()
}

type evaluationResponse struct {
	Score            *float64 `json:"score"`
	Feedback         *string  `json:"feedback"`
	FollowUpQuestion *string  `json:"followUpQuestion"`
}

func (s *panelAIService) EvaluateAnswer(ctx context.Context, q model.PanelQuestion, answer, language string, profile model.CandidateProfile) AnswerEvaluation {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a strict technical interviewer evaluating a %s candidate with %s years experience (%s difficulty).\n\n", profile.Track, profile.ExperienceYears, profile.Difficulty)
	fmt.Fprintf(&b, "Question asked by %s:\n%q\n", q.AskedBy, q.QuestionText)
	if q.Constraints != "" {
		fmt.Fprintf(&b, "Constraints: %s\n", q.Constraints)
	}
	if q.SchemaInfo != "" {
		fmt.Fprintf(&b, "Schema: %s\n", q.SchemaInfo)
	}
	if language != "" {
		fmt.Fprintf(&b, "\nCandidate's answer (%s):\n", language)
	} else {
		b.WriteString("\nCandidate's answer:\n")
	}
	if strings.TrimSpace(answer) == "" {
		answer = "[No answer provided]"
	}
	fmt.Fprintf(&b, "\"\"\"\n%s\n\"\"\"\n\n", answer)
	b.WriteString(`Evaluate strictly on a 0-10 scale based on:
- Correctness and completeness (0-4 pts)
- Clarity and reasoning (0-2 pts)
- Depth and best practices (0-2 pts)
- Edge cases / error handling (0-2 pts)

Respond ONLY in valid JSON:
{"score": <0-10>, "feedback": "2-3 sentences of specific, constructive feedback",
 "followUpQuestion": "one targeted follow-up question if score < 7, else null"}`)

	var out evaluationResponse
	if err := s.llm.GenerateJSON(ctx, LLMRequest{Prompt: b.String(), Temperature: 0.3, MaxTokens: 400}, &out); err != nil {
		s.fallback("evaluation", err)
		return AnswerEvaluation{Score: defaultPanelScore, Feedback: evaluationFallbackText}
	}
	eval := AnswerEvaluation{Score: clampPanelScore(out.Score), Feedback: defaultAnswerFeedback}
	if out.Feedback != nil {
		eval.Feedback = *out.Feedback
	}
	if out.FollowUpQuestion != nil {
		eval.FollowUpQuestion = strings.TrimSpace(*out.FollowUpQuestion)
	}
	return eval
}

func (s *panelAIService) EvaluateFollowUp(ctx context.Context, originalQuestion, followUpQuestion, followUpAnswer, track string) FollowUpEvaluation {
	if strings.TrimSpace(followUpAnswer) == "" {
		followUpAnswer = "[No answer]"
	}
	prompt := fmt.Sprintf(`A candidate was asked a follow-up question during a %s interview.

Original question: %q
Follow-up question: %q
Follow-up answer: %q

Score 0-10 and provide brief feedback. JSON only:
{"score": <0-10>, "feedback": "1-2 sentences"}`, track, originalQuestion, followUpQuestion, followUpAnswer)

	var out evaluationResponse
	if err := s.llm.GenerateJSON(ctx, LLMRequest{Prompt: prompt, Temperature: 0.3, MaxTokens: 200}, &out); err != nil {
		s.fallback("followup", err)
		return FollowUpEvaluation{Score: defaultPanelScore, Feedback: followUpFallbackText}
	}
	eval := FollowUpEvaluation{Score: clampPanelScore(out.Score)}
	if out.Feedback != nil {
		eval.Feedback = *out.Feedback
	}
	return eval
}

func clampPanelScore(score *float64) float64 {
	if score == nil || math.IsNaN(*score) {
		return defaultPanelScore
	}
	return clamp(*score, 0, panelMaxScore)
}

type reportNarrative struct {
	Strengths         []string                       `json:"strengths"`
	WeakAreas         []string                       `json:"weakAreas"`
	MistakesSummary   []string                       `json:"mistakesSummary"`
	InterviewTips     []string                       `json:"interviewTips"`
	FocusAreas        []string                       `json:"focusAreas"`
	ImprovementPlan   string                         `json:"improvementPlan"`
	QuestionBreakdown []model.PanelQuestionBreakdown `json:"questionBreakdown"`
}

// GenerateReport asks the oracle for narrative only; every number in the
// report is computed here.
func (s *panelAIService) GenerateReport(ctx context.Context, req ReportRequest) model.PanelReport {
	overall, sections := PanelScores(req.Questions, req.Answers)
	report := model.PanelReport{
		CandidateProfile:  req.Profile,
		OverallScore:      overall,
		SectionScores:     sections,
		Passed:            overall >= s.passPercent,
		Partial:           req.Partial,
		QuestionsAsked:    req.QuestionsAsked,
		QuestionsAnswered: req.QuestionsAnswered,
		QuestionsSkipped:  req.QuestionsSkipped,
	}

	var out reportNarrative
	err := s.llm.GenerateJSON(ctx, LLMRequest{Prompt: reportPrompt(req, overall), Temperature: 0.4, MaxTokens: 2500}, &out)
	if err != nil {
		s.fallback("report", err)
		track := req.Profile.Track
		report.QuestionBreakdown = localBreakdown(req.Questions, req.Answers)
		report.Strengths = []string{"Attempted all questions"}
		report.WeakAreas = []string{"Report generation unavailable - please review individual scores"}
		report.MistakesSummary = []string{}
		report.InterviewTips = []string{"Practice more on " + track}
		report.FocusAreas = []string{track + " fundamentals"}
		report.ImprovementPlan = fmt.Sprintf("Focus on strengthening %s concepts for a %s role.", track, req.Profile.Role)
		return report
	}

	report.QuestionBreakdown = out.QuestionBreakdown
	if len(report.QuestionBreakdown) == 0 {
		report.QuestionBreakdown = localBreakdown(req.Questions, req.Answers)
	}
	report.Strengths = nonNil(out.Strengths)
	report.WeakAreas = nonNil(out.WeakAreas)
	report.MistakesSummary = nonNil(out.MistakesSummary)
	report.InterviewTips = nonNil(out.InterviewTips)
	report.FocusAreas = nonNil(out.FocusAreas)
	report.ImprovementPlan = out.ImprovementPlan
	return report
}

// PanelScores computes the overall percentage and per-phase sections from
// effective answer scores, phases in order of first appearance.
func PanelScores(questions []model.PanelQuestion, answers []model.PanelAnswer) (float64, []model.PanelSectionScore) {
	phaseOf := make(map[string]model.PanelPhase, len(questions))
	for _, q := range questions {
		phaseOf[q.ID] = q.Phase
	}
	items := make([]ScoreItem, 0, len(answers))
	for _, a := range answers {
		phase := string(phaseOf[a.QuestionID])
		if phase == "" {
			phase = "unknown"
		}
		items = append(items, ScoreItem{Section: phase, Score: a.EffectiveScore(), MaxScore: panelMaxScore})
	}
	agg := Aggregate(items, 0)
	sections := make([]model.PanelSectionScore, 0, len(agg.Sections))
	for _, sec := range agg.Sections {
		sections = append(sections, model.PanelSectionScore{
			Section:    sec.Section,
			Score:      round1(sec.Score),
			MaxScore:   sec.MaxScore,
			Percentage: math.Round(sec.Percentage),
		})
	}
	return math.Round(agg.Percentage), sections
}

func localBreakdown(questions []model.PanelQuestion, answers []model.PanelAnswer) []model.PanelQuestionBreakdown {
	byID := make(map[string]model.PanelQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]model.PanelQuestionBreakdown, 0, len(answers))
	for _, a := range answers {
		q := byID[a.QuestionID]
		out = append(out, model.PanelQuestionBreakdown{
			QuestionText: q.QuestionText,
			Phase:        string(q.Phase),
			AskedBy:      q.AskedBy,
			Score:        a.Score,
			MaxScore:     panelMaxScore,
			Feedback:     a.Feedback,
		})
	}
	return out
}

func reportPrompt(req ReportRequest, overall float64) string {
	byID := make(map[string]model.PanelQuestion, len(req.Questions))
	for _, q := range req.Questions {
		byID[q.ID] = q
	}
	var b strings.Builder
	b.WriteString("You are a senior hiring manager generating a structured final interview report.\n")
	if req.Partial {
		fmt.Fprintf(&b, "\nNOTE: This is a PARTIAL interview report. The candidate exited early.\nTotal questions asked: %d, Answered: %d, Skipped: %d.\nScore is calculated only from answered/skipped questions. Be explicit about the incomplete nature in the improvement plan.\n",
			req.QuestionsAsked, req.QuestionsAnswered, req.QuestionsSkipped)
	}
	p := req.Profile
	fmt.Fprintf(&b, "\nCandidate Profile:\n- Track: %s\n- Experience: %s years\n- Applied Role: %s\n- Difficulty: %s\n\nInterview Q&A:\n", p.Track, p.ExperienceYears, p.Role, p.Difficulty)
	for i, a := range req.Answers {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		q := byID[a.QuestionID]
		answer := a.Answer
		if answer == "" {
			answer = "[skipped]"
		}
		fmt.Fprintf(&b, "[Q%d] Phase: %s | Asked by: %s\nQuestion: %s\nAnswer: %s\nScore: %g/10\nFeedback: %s\n", i+1, q.Phase, q.AskedBy, q.QuestionText, answer, a.Score, a.Feedback)
		if a.FollowUpQuestion != "" {
			followUpAnswer := a.FollowUpAnswer
			if followUpAnswer == "" {
				followUpAnswer = "[not answered]"
			}
			var followUpScore float64
			if a.FollowUpScore != nil {
				followUpScore = *a.FollowUpScore
			}
			fmt.Fprintf(&b, "Follow-up: %s\nFollow-up Answer: %s\nFollow-up Score: %g/10\n", a.FollowUpQuestion, followUpAnswer, followUpScore)
		}
	}
	fmt.Fprintf(&b, "\nOverall score: %g/100\n\n", overall)
	b.WriteString(`Generate a comprehensive, actionable report. Be specific and reference actual questions and answers.
Respond ONLY in valid JSON matching this schema:
{"strengths": ["3-5 specific strengths"], "weakAreas": ["3-5 specific weak areas"],
 "mistakesSummary": ["specific mistakes"], "interviewTips": ["5 actionable tips"],
 "focusAreas": ["6-8 topics to study in the next 2 weeks"], "improvementPlan": "a 3-paragraph plan",
 "questionBreakdown": [{"questionText": "...", "phase": "warmup|core|coding|query", "askedBy": "Panelist A|B|C",
   "score": <0-10>, "maxScore": 10, "feedback": "...", "whereYouWentWrong": "explanation if score < 7"}]}`)
	return b.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
