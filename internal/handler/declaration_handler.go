package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/validator"
)

// JobQueue accepts declaration runs for background processing.
type JobQueue interface {
	Enqueue(ctx context.Context, job model.DeclarationJob) error
}

// DeclarationHandler handles employer result endpoints.
type DeclarationHandler struct {
	declarations *service.DeclarationService
	queue        JobQueue
	log          zerolog.Logger
}

// NewDeclarationHandler creates a new DeclarationHandler. Without a queue,
// async requests are served synchronously.
func NewDeclarationHandler(declarations *service.DeclarationService, queue JobQueue, log zerolog.Logger) *DeclarationHandler {
	return &DeclarationHandler{
		declarations: declarations,
		queue:        queue,
		log:          log.With().Str("component", "declaration_handler").Logger(),
	}
}

// DeclareAll godoc
// POST /api/v1/employer/tests/:test_id/results/declare[?async=true]
// Declares every pending result of the test.
func (h *DeclarationHandler) DeclareAll(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	testID := c.Param("test_id")

	if async, _ := strconv.ParseBool(c.Query("async")); async && h.queue != nil {
		job := model.DeclarationJob{RunID: shortuuid.New(), TestID: testID, DeclaredBy: claims.UserID()}
		if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
			_ = c.Error(err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		response.SuccessWithMessage(c, http.StatusAccepted, "Declaration queued", gin.H{
			"runId":  job.RunID,
			"testId": testID,
		})
		return
	}

	summary, err := h.declarations.DeclareAll(c.Request.Context(), testID, claims.UserID())
	if err != nil {
		if errors.Is(err, service.ErrDeclarationStalled) {
			h.log.Warn().Err(err).Str("run_id", summary.RunID).Msg("Declaration incomplete")
			response.FailWithData(c, http.StatusInternalServerError, response.ErrDeclarationIncomplete, summary)
			return
		}
		failWith(c, err, response.ErrTestNotFound)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Results declared", summary)
}

// ListResults godoc
// GET /api/v1/employer/tests/:test_id/results?declared=&page=&per_page=
func (h *DeclarationHandler) ListResults(c *gin.Context) {
	var q model.ResultListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 20
	}

	results, total, err := h.declarations.ListResults(c.Request.Context(), c.Param("test_id"), q.Declared, q.Page, q.PerPage)
	if err != nil {
		failWith(c, err, response.ErrTestNotFound)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, response.NewPagination(q.Page, q.PerPage, total))
}

// DeclareOne godoc
// POST /api/v1/employer/results/:result_id/declare
func (h *DeclarationHandler) DeclareOne(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	out, err := h.declarations.DeclareOne(c.Request.Context(), resultID, claims.UserID(), claims.UserID())
	if err != nil {
		failWith(c, err, response.ErrResultNotFound)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Result declared", out)
}
