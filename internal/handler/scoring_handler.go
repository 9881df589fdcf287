package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/validator"
)

// ScoringHandler handles assessment submissions.
type ScoringHandler struct {
	scoring *service.ScoringService
}

// NewScoringHandler creates a new ScoringHandler.
func NewScoringHandler(scoring *service.ScoringService) *ScoringHandler {
	return &ScoringHandler{scoring: scoring}
}

// Submit godoc
// POST /api/v1/assessments/:test_id/submit
// Grades the submitted answers and stores an undeclared result.
func (h *ScoringHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	summary, err := h.scoring.Submit(c.Request.Context(), service.SubmitInput{
		TestID:         c.Param("test_id"),
		CandidateID:    claims.UserID(),
		CandidateEmail: claims.Email,
		CandidateName:  claims.Name,
		Request:        req,
	})
	if err != nil {
		failWith(c, err, response.ErrTestNotFound)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Assessment submitted", summary)
}
