package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/intervue/internal/dto"
	"github.com/lshigami/intervue/internal/lock"
	"github.com/lshigami/intervue/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CandidateHeader carries the caller's identity. Authentication happens upstream.
const CandidateHeader = "X-Candidate-ID"

// CandidateID reads the candidate header and writes a 401 when it is missing.
func CandidateID(ctx *gin.Context) (string, bool) {
	id := strings.TrimSpace(ctx.GetHeader(CandidateHeader))
	if id == "" {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing " + CandidateHeader + " header"})
		return "", false
	}
	return id, true
}

// UintParam parses a numeric path parameter and writes a 400 when it is malformed.
func UintParam(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format", Details: []string{raw}})
		return 0, false
	}
	return uint(v), true
}

// BindJSON binds the request body and writes a 400 on failure.
func BindJSON(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		log.Warn().Err(err).Str("path", ctx.FullPath()).Msg("Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return false
	}
	return true
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrTemplateNotFound),
		errors.Is(err, service.ErrQuestionNotInSession):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrSessionNotActive),
		errors.Is(err, service.ErrSessionChanged),
		errors.Is(err, service.ErrFollowUpPending),
		errors.Is(err, service.ErrAlreadyAnswered),
		errors.Is(err, lock.ErrLockTimeout):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoPendingFollowUp),
		errors.Is(err, service.ErrNoCurrentQuestion),
		errors.Is(err, service.ErrReportNotReady),
		errors.Is(err, service.ErrNoMoreQuestions),
		errors.Is(err, service.ErrTimeLimitExceeded),
		errors.Is(err, service.ErrInterviewComplete),
		errors.Is(err, service.ErrUnknownIntegrityEvent):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// RespondError writes err with the status StatusFor picks. Internal errors keep
// their detail out of the response body.
func RespondError(ctx *gin.Context, msg string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg(msg)
		ctx.JSON(status, dto.ErrorResponse{Message: msg})
		return
	}
	log.Warn().Err(err).Str("path", ctx.FullPath()).Int("status", status).Msg(msg)
	ctx.JSON(status, dto.ErrorResponse{Message: msg, Details: []string{err.Error()}})
}

type HealthController struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{db: db, redis: rdb}
}

// Health godoc
// @Summary Liveness and dependency check
// @Tags Ops
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /healthz [get]
func (c *HealthController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if sqlDB, err := c.db.DB(); err != nil || sqlDB.PingContext(pingCtx) != nil {
		ctx.JSON(http.StatusServiceUnavailable, dto.HealthResponse{Status: "database unavailable"})
		return
	}
	if err := c.redis.Ping(pingCtx).Err(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, dto.HealthResponse{Status: "redis unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}
