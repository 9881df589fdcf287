package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
)

// failWith maps a service error onto the response envelope. notFoundCode
// names the missing resource for 404s.
func failWith(c *gin.Context, err error, notFoundCode response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"detail": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, notFoundCode)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrNotTestOwner)
	case errors.Is(err, service.ErrResultAlreadyDeclared):
		response.Fail(c, http.StatusConflict, response.ErrResultAlreadyDeclared)
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
