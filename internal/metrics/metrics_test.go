package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_DomainCounters(t *testing.T) {
	m := New()

	m.SubmissionGraded(model.ResultStatusPassed)
	m.SubmissionGraded(model.ResultStatusPassed)
	m.SubmissionGraded(model.ResultStatusFailed)
	m.ResultDeclared(true)
	m.ResultDeclared(false)
	m.DeclarationAttemptFailed()
	m.DeclarationRun(RunCompleted, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("Passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("Failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.declared))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emails.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emails.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failedAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(RunCompleted)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/health", "200", time.Millisecond)
		m.SubmissionGraded(model.ResultStatusPassed)
		m.ResultDeclared(true)
		m.DeclarationAttemptFailed()
		m.DeclarationRun(RunStalled, time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/v1/sessions", "201", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `exstem_assess_http_requests_total{method="POST",path="/api/v1/sessions",status_code="201"} 1`)
}
