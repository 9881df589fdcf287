package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/metrics"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error, rec.Body.String())
	return body.Error.Code
}

func token(t *testing.T, role service.Role, ttl time.Duration) string {
	t.Helper()
	tok, err := service.NewAuthService(secret).IssueToken("user-1", role, "u@example.com", "U", ttl)
	require.NoError(t, err)
	return tok
}

func TestAuthenticator(t *testing.T) {
	a := NewAuthenticator(service.NewAuthService(secret), "token")
	r := gin.New()
	r.GET("/c", a.RequireCandidate(), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).UserID())
	})

	tests := []struct {
		name   string
		setup  func(req *http.Request)
		status int
		code   response.ErrCode
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, response.ErrTokenInvalid},
		{"expired", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token(t, service.RoleCandidate, -time.Minute))
		}, http.StatusUnauthorized, response.ErrTokenExpired},
		{"wrong role", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token(t, service.RoleEmployer, time.Hour))
		}, http.StatusForbidden, response.ErrCandidateOnly},
		{"bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "bearer "+token(t, service.RoleCandidate, time.Hour))
		}, http.StatusOK, ""},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "token", Value: token(t, service.RoleCandidate, time.Hour)})
		}, http.StatusOK, ""},
		{"cookie before header", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "token", Value: token(t, service.RoleCandidate, time.Hour)})
			r.Header.Set("Authorization", "Bearer nope")
		}, http.StatusOK, ""},
		{"query", func(r *http.Request) {
			r.URL.RawQuery = "access_token=" + token(t, service.RoleCandidate, time.Hour)
		}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/c", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, rec))
			} else {
				assert.Equal(t, "user-1", rec.Body.String())
			}
		})
	}
}

type stubAuthorizer struct {
	err error
}

func (s stubAuthorizer) AuthorizeTest(_ context.Context, testID, _ string) (*model.Test, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Test{ID: testID, Name: "Go Backend"}, nil
}

func TestRequireTestOwner(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"owner", nil, http.StatusOK},
		{"not owner", service.ErrForbidden, http.StatusForbidden},
		{"missing", service.ErrNotFound, http.StatusNotFound},
		{"store down", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthenticator(service.NewAuthService(secret), "")
			r := gin.New()
			r.GET("/t/:test_id", a.RequireEmployer(), RequireTestOwner(stubAuthorizer{err: tt.err}, "test_id"), func(c *gin.Context) {
				c.String(http.StatusOK, GetTest(c).Name)
			})

			req := httptest.NewRequest(http.MethodGet, "/t/test-go", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, service.RoleEmployer, time.Hour))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "Go Backend", rec.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, ByClientIP)
	defer rl.Stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func() int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, hit())
	assert.Equal(t, http.StatusNoContent, hit())
	assert.Equal(t, http.StatusTooManyRequests, hit())

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusNoContent, hit())

	now = now.Add(time.Hour)
	rl.cleanup()
	assert.Empty(t, rl.visitors)
}

func TestRateLimiter_ZeroRateDisables(t *testing.T) {
	for _, rate := range []int{0, -5} {
		rl := NewRateLimiter(rate, time.Minute, BySubjectOrIP)
		require.Nil(t, rl)
		rl.Stop()

		r := gin.New()
		r.Use(rl.Middleware())
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusNoContent, rec.Code, "rate %d request %d", rate, i)
		}
	}
}

func TestBrotli(t *testing.T) {
	big := strings.Repeat("exstem ", 400)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	t.Run("compresses large bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/big", nil)
		req.Header.Set("Accept-Encoding", "gzip, br")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
		plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(rec.Body.Bytes())))
		require.NoError(t, err)
		assert.Equal(t, big, string(plain))
	})

	t.Run("passes small bodies through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/small", nil)
		req.Header.Set("Accept-Encoding", "br")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("ignores clients without br", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/big", nil))

		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, big, rec.Body.String())
	})
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.Use(NoStore())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestMetricsAndRequestLogger(t *testing.T) {
	m := metrics.New()
	var buf bytes.Buffer

	r := gin.New()
	r.Use(response.RequestIDMiddleware(), RequestLogger(zerolog.New(&buf)), Metrics(m))
	r.GET("/sessions/:token", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
	req.Header.Set("X-Request-ID", "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	n, err := testutil.GatherAndCount(m.Registry(), "exstem_assess_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per route template")

	line, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(line, &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/sessions/abc", entry["path"])
	assert.Equal(t, "req-7", entry["request_id"])
}
