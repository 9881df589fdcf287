package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// Authenticator resolves the caller's identity token.
type Authenticator struct {
	auth       *service.AuthService
	cookieName string
}

// NewAuthenticator reads tokens from cookieName before the Authorization
// header.
func NewAuthenticator(auth *service.AuthService, cookieName string) *Authenticator {
	return &Authenticator{auth: auth, cookieName: cookieName}
}

// RequireCandidate validates a candidate JWT.
func (a *Authenticator) RequireCandidate() gin.HandlerFunc {
	return a.require(service.RoleCandidate, response.ErrCandidateOnly)
}

// RequireEmployer validates an employer JWT.
func (a *Authenticator) RequireEmployer() gin.HandlerFunc {
	return a.require(service.RoleEmployer, response.ErrEmployerOnly)
}

func (a *Authenticator) require(role service.Role, wrongRole response.ErrCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := a.extractToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := a.auth.ValidateToken(tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.Role != role {
			response.AbortFail(c, http.StatusForbidden, wrongRole)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func (a *Authenticator) extractToken(c *gin.Context) string {
	if a.cookieName != "" {
		if v, err := c.Cookie(a.cookieName); err == nil && v != "" {
			return v
		}
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Browsers cannot set headers on a WebSocket handshake.
	return c.Query("access_token")
}
