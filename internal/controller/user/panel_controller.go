package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/intervue/internal/controller"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/service"
)

type PanelController struct {
	panelService service.PanelService
}

func NewPanelController(panelService service.PanelService) *PanelController {
	return &PanelController{panelService: panelService}
}

// CreateSession godoc
// @Summary Start a panel interview
// @Description Creates an adaptive interview and returns the first warm-up question.
// @Tags Panel
// @Accept json
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param request body dto.CreatePanelSessionDTO true "Candidate profile"
// @Success 201 {object} dto.PanelResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Router /panel/sessions [post]
func (c *PanelController) CreateSession(ctx *gin.Context) {
	candidateID, ok := controller.CandidateID(ctx)
	if !ok {
		return
	}
	var req dto.CreatePanelSessionDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	resp, err := c.panelService.CreateSession(ctx.Request.Context(), candidateID, req)
	if err != nil {
		controller.RespondError(ctx, "Failed to start panel interview", err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// ListSessions godoc
// @Summary List the caller's panel interviews
// @Tags Panel
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Success 200 {array} dto.PanelSessionSummaryDTO
// @Router /panel/sessions [get]
func (c *PanelController) ListSessions(ctx *gin.Context) {
	candidateID, ok := controller.CandidateID(ctx)
	if !ok {
		return
	}
	sessions, err := c.panelService.ListSessions(ctx.Request.Context(), candidateID)
	if err != nil {
		controller.RespondError(ctx, "Failed to list panel interviews", err)
		return
	}
	ctx.JSON(http.StatusOK, sessions)
}

// CurrentQuestion godoc
// @Summary Get the current panel question
// @Description Generates the question on first read; later reads return the same question.
// @Tags Panel
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param id path string true "Panel session ID"
// @Success 200 {object} dto.PanelResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Interview complete"
// @Failure 409 {object} dto.ErrorResponse "Session busy or no longer active"
// @Router /panel/sessions/{id}/question [get]
func (c *PanelController) CurrentQuestion(ctx *gin.Context) {
	c.run(ctx, "Failed to load current question", c.panelService.CurrentQuestion)
}

// SubmitAnswer godoc
// @Summary Answer the current question or its follow-up
// @Tags Panel
// @Accept json
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param id path string true "Panel session ID"
// @Param answer body dto.PanelAnswerDTO true "Answer"
// @Success 200 {object} dto.PanelResponseDTO
// @Failure 400 {object} dto.ErrorResponse "No pending follow-up"
// @Failure 404 {object} dto.ErrorResponse "Question not in session"
// @Failure 409 {object} dto.ErrorResponse "Already answered, follow-up pending or session changed"
// @Router /panel/sessions/{id}/answers [post]
func (c *PanelController) SubmitAnswer(ctx *gin.Context) {
	candidateID, ok := controller.CandidateID(ctx)
	if !ok {
		return
	}
	var req dto.PanelAnswerDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	resp, err := c.panelService.SubmitAnswer(ctx.Request.Context(), candidateID, ctx.Param("id"), req)
	if err != nil {
		controller.RespondError(ctx, "Failed to submit answer", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Skip godoc
// @Summary Skip the current question
// @Tags Panel
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param id path string true "Panel session ID"
// @Success 200 {object} dto.PanelResponseDTO
// @Failure 400 {object} dto.ErrorResponse "No current question"
// @Router /panel/sessions/{id}/skip [post]
func (c *PanelController) Skip(ctx *gin.Context) {
	c.run(ctx, "Failed to skip question", c.panelService.Skip)
}

// Abandon godoc
// @Summary End the interview early
// @Description Produces a partial report from the answers so far.
// @Tags Panel
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param id path string true "Panel session ID"
// @Success 200 {object} dto.PanelResponseDTO
// @Failure 409 {object} dto.ErrorResponse "Session no longer active"
// @Router /panel/sessions/{id}/abandon [post]
func (c *PanelController) Abandon(ctx *gin.Context) {
	c.run(ctx, "Failed to end interview", c.panelService.Abandon)
}

// GetReport godoc
// @Summary Get the panel report
// @Tags Panel
// @Produce json
// @Param X-Candidate-ID header string true "Candidate ID"
// @Param id path string true "Panel session ID"
// @Success 200 {object} dto.PanelResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Interview not yet completed"
// @Router /panel/sessions/{id}/report [get]
func (c *PanelController) GetReport(ctx *gin.Context) {
	c.run(ctx, "Failed to load report", c.panelService.GetReport)
}

type panelOp func(ctx context.Context, candidateID, sessionID string) (*dto.PanelResponseDTO, error)

func (c *PanelController) run(ctx *gin.Context, failMsg string, op panelOp) {
	candidateID, ok := controller.CandidateID(ctx)
	if !ok {
		return
	}
	resp, err := op(ctx.Request.Context(), candidateID, ctx.Param("id"))
	if err != nil {
		controller.RespondError(ctx, failMsg, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
