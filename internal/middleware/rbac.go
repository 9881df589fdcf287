package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
)

// ContextKeyTest holds the *model.Test loaded by RequireTestOwner.
const ContextKeyTest = "test"

// TestAuthorizer checks test ownership.
type TestAuthorizer interface {
	AuthorizeTest(ctx context.Context, testID, employerID string) (*model.Test, error)
}

// RequireTestOwner checks that the employer in the JWT owns the test named
// by the given path parameter. Must run after RequireEmployer.
func RequireTestOwner(authz TestAuthorizer, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		test, err := authz.AuthorizeTest(c.Request.Context(), c.Param(param), claims.UserID())
		switch {
		case errors.Is(err, service.ErrForbidden):
			response.AbortFail(c, http.StatusForbidden, response.ErrNotTestOwner)
			return
		case errors.Is(err, service.ErrNotFound):
			response.AbortFail(c, http.StatusNotFound, response.ErrTestNotFound)
			return
		case err != nil:
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeyTest, test)
		c.Next()
	}
}

// GetTest returns the test stored by RequireTestOwner.
func GetTest(c *gin.Context) *model.Test {
	val, exists := c.Get(ContextKeyTest)
	if !exists {
		return nil
	}
	test, _ := val.(*model.Test)
	return test
}
