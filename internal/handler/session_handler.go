package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/validator"
)

// SessionHandler handles exam session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// CreateSession godoc
// POST /api/v1/sessions
// Opens a session, or returns the existing one for the same token.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, created, err := h.sessions.Create(c.Request.Context(), service.CreateSessionInput{
		Token:           req.Token,
		TestID:          req.TestID,
		DurationSeconds: req.DurationSeconds,
		InvitationID:    req.InvitationID,
	})
	if err != nil {
		failWith(c, err, response.ErrSessionNotFound)
		return
	}

	if created {
		response.SuccessWithMessage(c, http.StatusCreated, "Session created", gin.H{"session": session})
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Session resumed", gin.H{"session": session})
}

// GetSession godoc
// GET /api/v1/sessions/:token
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		failWith(c, err, response.ErrSessionNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// PatchSession godoc
// PATCH /api/v1/sessions/:token
// Applies progress and telemetry. Terminal markers are write-once.
func (h *SessionHandler) PatchSession(c *gin.Context) {
	var patch model.SessionPatch
	if fields := validator.Bind(c, &patch); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessions.Patch(c.Request.Context(), c.Param("token"), patch)
	if err != nil {
		failWith(c, err, response.ErrSessionNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetRemaining godoc
// GET /api/v1/sessions/:token/remaining
func (h *SessionHandler) GetRemaining(c *gin.Context) {
	clock, err := h.sessions.Remaining(c.Request.Context(), c.Param("token"))
	if err != nil {
		failWith(c, err, response.ErrSessionNotFound)
		return
	}
	response.Success(c, http.StatusOK, clock)
}
