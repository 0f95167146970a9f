package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/intervue/internal/controller"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/service"
	"github.com/rs/zerolog/log"
)

type TemplateController struct {
	templateService service.TemplateService
}

func NewTemplateController(templateService service.TemplateService) *TemplateController {
	return &TemplateController{templateService: templateService}
}

// CreateTemplate godoc
// @Summary (Admin) Create an interview template
// @Description Creates a template with its question bank. Each question is validated for the fields its grader needs.
// @Tags Admin - Templates
// @Accept json
// @Produce json
// @Param template body dto.TemplateCreateDTO true "Template with questions"
// @Success 201 {object} dto.TemplateResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid template or question"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/templates [post]
func (c *TemplateController) CreateTemplate(ctx *gin.Context) {
	var req dto.TemplateCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}

	resp, err := c.templateService.CreateTemplate(ctx.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Admin CreateTemplate: Service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to create template", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// AddQuestion godoc
// @Summary (Admin) Add a question to a template
// @Tags Admin - Templates
// @Accept json
// @Produce json
// @Param template_id path int true "Template ID"
// @Param question body dto.QuestionCreateDTO true "Question"
// @Success 201 {object} dto.QuestionResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid question"
// @Failure 404 {object} dto.ErrorResponse "Template not found"
// @Router /admin/templates/{template_id}/questions [post]
func (c *TemplateController) AddQuestion(ctx *gin.Context) {
	templateID, ok := controller.UintParam(ctx, "template_id")
	if !ok {
		return
	}
	var req dto.QuestionCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}

	resp, err := c.templateService.AddQuestion(ctx.Request.Context(), templateID, req)
	if err != nil {
		if controller.StatusFor(err) == http.StatusNotFound {
			controller.RespondError(ctx, "Template not found", err)
			return
		}
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to add question", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GetTemplate godoc
// @Summary (Admin) Get a template with answer keys
// @Tags Admin - Templates
// @Produce json
// @Param template_id path int true "Template ID"
// @Success 200 {object} dto.TemplateResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Template not found"
// @Router /admin/templates/{template_id} [get]
func (c *TemplateController) GetTemplate(ctx *gin.Context) {
	templateID, ok := controller.UintParam(ctx, "template_id")
	if !ok {
		return
	}
	resp, err := c.templateService.GetTemplate(ctx.Request.Context(), templateID)
	if err != nil {
		controller.RespondError(ctx, "Failed to load template", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
