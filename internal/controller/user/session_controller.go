package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/intervue/internal/controller"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/service"
	"github.com/rs/zerolog/log"
)

type SessionController struct {
	templateService  service.TemplateService
	sessionService   service.SessionService
	integrityService service.IntegrityService
	reportService    service.ReportService
}

func NewSessionController(
	templateService service.TemplateService,
	sessionService service.SessionService,
	integrityService service.IntegrityService,
	reportService service.ReportService,
) *SessionController {
	return &SessionController{
		templateService:  templateService,
		sessionService:   sessionService,
		integrityService: integrityService,
		reportService:    reportService,
	}
}

// ListTemplates godoc
// @Summary List active interview templates
// @Tags Templates
// @Produce json
// @Success 200 {array} dto.TemplateSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /templates [get]
func (c *SessionController) ListTemplates(ctx *gin.Context) {
	templates, err := c.templateService.ListActiveTemplates(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, "Failed to retrieve templates", err)
		return
	}
	ctx.JSON(http.StatusOK, templates)
}

// GetTemplate godoc
// @Summary Get a template summary
// @Tags Templates
// @Produce json
// @Param template_id path int true "Template ID"
// @Success 200 {object} dto.TemplateSummaryDTO
// @Failure 404 {object} dto.ErrorResponse "Template not found"
// @Router /templates/{template_id} [get]
func (c *SessionController) GetTemplate(ctx *gin.Context) {
	templateID, ok := controller.UintParam(ctx, "template_id")
	if !ok {
		return
	}
	resp, err := c.templateService.GetTemplateSummary(ctx.Request.Context(), templateID)
	if err != nil {
		controller.RespondError(ctx, "Failed to load template", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// StartSession godoc
// @Summary Start or resume a session
// @Description Returns the candidate's in-progress session for the template if it still has time left, otherwise starts a new one.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param request body dto.StartSessionDTO true "Template to start"
// @Success 201 {object} dto.SessionResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 404 {object} dto.ErrorResponse "Template not found"
// @Router /sessions [post]
func (c *SessionController) StartSession(ctx *gin.Context) {
	candidateID, ok := controller.CandidateID(ctx)
	if !ok {
		return
	}
	var req dto.StartSessionDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	resp, err := c.sessionService.StartSession(ctx.Request.Context(), candidateID, req)
	if err != nil {
		controller.RespondError(ctx, "Failed to start session", err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// ListSessions godoc
// @Summary List the caller's sessions
// @Tags Sessions
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Success 200 {array} dto.SessionResponseDTO
// @Router /sessions [get]
func (c *SessionController) ListSessions(ctx *gin.Context) {
	candidateID, ok := controller.CandidateID(ctx)
	if !ok {
		return
	}
	sessions, err := c.sessionService.ListSessions(ctx.Request.Context(), candidateID)
	if err != nil {
		controller.RespondError(ctx, "Failed to list sessions", err)
		return
	}
	ctx.JSON(http.StatusOK, sessions)
}

// GetSession godoc
// @Summary Get a session with its answers
// @Tags Sessions
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 403 {object} dto.ErrorResponse "Session belongs to another candidate"
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Router /sessions/{session_id} [get]
func (c *SessionController) GetSession(ctx *gin.Context) {
	candidateID, sessionID, ok := sessionParams(ctx)
	if !ok {
		return
	}
	resp, err := c.sessionService.GetSession(ctx.Request.Context(), candidateID, sessionID)
	if err != nil {
		controller.RespondError(ctx, "Failed to load session", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// NextQuestion godoc
// @Summary Get the next question
// @Description Answer keys and hidden test case outputs are stripped.
// @Tags Sessions
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.NextQuestionDTO
// @Failure 400 {object} dto.ErrorResponse "No more questions or time limit exceeded"
// @Failure 409 {object} dto.ErrorResponse "Session is not active"
// @Router /sessions/{session_id}/next [get]
func (c *SessionController) NextQuestion(ctx *gin.Context) {
	candidateID, sessionID, ok := sessionParams(ctx)
	if !ok {
		return
	}
	resp, err := c.sessionService.NextQuestion(ctx.Request.Context(), candidateID, sessionID)
	if err != nil {
		controller.RespondError(ctx, "Failed to get next question", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitAnswer godoc
// @Summary Submit an answer
// @Description Stores the answer and schedules grading in the background.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param session_id path int true "Session ID"
// @Param answer body dto.SubmitAnswerDTO true "Answer"
// @Success 202 {object} dto.SubmitAnswerResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Question not in session"
// @Failure 409 {object} dto.ErrorResponse "Already answered or session not active"
// @Router /sessions/{session_id}/answers [post]
func (c *SessionController) SubmitAnswer(ctx *gin.Context) {
	candidateID, sessionID, ok := sessionParams(ctx)
	if !ok {
		return
	}
	var req dto.SubmitAnswerDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	resp, err := c.sessionService.SubmitAnswer(ctx.Request.Context(), candidateID, sessionID, req)
	if err != nil {
		controller.RespondError(ctx, "Failed to submit answer", err)
		return
	}
	ctx.JSON(http.StatusAccepted, resp)
}

// CompleteSession godoc
// @Summary Complete a session
// @Description Closes the session and schedules report generation. Completing twice is a no-op.
// @Tags Sessions
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.SessionResponseDTO
// @Router /sessions/{session_id}/complete [post]
func (c *SessionController) CompleteSession(ctx *gin.Context) {
	candidateID, sessionID, ok := sessionParams(ctx)
	if !ok {
		return
	}
	resp, err := c.sessionService.CompleteSession(ctx.Request.Context(), candidateID, sessionID)
	if err != nil {
		controller.RespondError(ctx, "Failed to complete session", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// RecordIntegrityEvent godoc
// @Summary Record a proctoring event
// @Tags Sessions
// @Accept json
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param session_id path int true "Session ID"
// @Param event body dto.IntegrityEventCreateDTO true "Event"
// @Success 201 {object} dto.IntegrityEventResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Unknown event type"
// @Router /sessions/{session_id}/integrity [post]
func (c *SessionController) RecordIntegrityEvent(ctx *gin.Context) {
	candidateID, sessionID, ok := sessionParams(ctx)
	if !ok {
		return
	}
	var req dto.IntegrityEventCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	resp, err := c.integrityService.RecordEvent(ctx.Request.Context(), candidateID, sessionID, req)
	if err != nil {
		controller.RespondError(ctx, "Failed to record integrity event", err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// ListIntegrityEvents godoc
// @Summary List proctoring events for a session
// @Tags Sessions
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param session_id path int true "Session ID"
// @Success 200 {array} dto.IntegrityEventResponseDTO
// @Router /sessions/{session_id}/integrity [get]
func (c *SessionController) ListIntegrityEvents(ctx *gin.Context) {
	candidateID, sessionID, ok := sessionParams(ctx)
	if !ok {
		return
	}
	events, err := c.integrityService.ListEvents(ctx.Request.Context(), candidateID, sessionID)
	if err != nil {
		controller.RespondError(ctx, "Failed to list integrity events", err)
		return
	}
	ctx.JSON(http.StatusOK, events)
}

// GetReport godoc
// @Summary Get the session report
// @Tags Sessions
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.ReportResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Report not ready"
// @Router /sessions/{session_id}/report [get]
func (c *SessionController) GetReport(ctx *gin.Context) {
	candidateID, sessionID, ok := sessionParams(ctx)
	if !ok {
		return
	}
	resp, err := c.reportService.GetReport(ctx.Request.Context(), candidateID, sessionID)
	if err != nil {
		controller.RespondError(ctx, "Failed to load report", err)
		return
	}
	log.Debug().Uint("sessionID", sessionID).Str("status", resp.Status).Msg("Report served")
	ctx.JSON(http.StatusOK, resp)
}

func sessionParams(ctx *gin.Context) (string, uint, bool) {
	candidateID, ok := controller.CandidateID(ctx)
	if !ok {
		return "", 0, false
	}
	sessionID, ok := controller.UintParam(ctx, "session_id")
	if !ok {
		return "", 0, false
	}
	return candidateID, sessionID, true
}
