package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/grading"
	"github.com/stemsi/exstem-assess/internal/metrics"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
)

// ScoringService grades submitted attempts and persists the result.
type ScoringService struct {
	tests    TestStore
	results  ResultStore
	sessions SessionStore
	grader   *grading.Grader
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// NewScoringService creates a new ScoringService. sessions and m may be nil.
func NewScoringService(
	tests TestStore,
	results ResultStore,
	sessions SessionStore,
	grader *grading.Grader,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		tests:    tests,
		results:  results,
		sessions: sessions,
		grader:   grader,
		metrics:  m,
		log:      log.With().Str("component", "scoring").Logger(),
		now:      time.Now,
	}
}

// SubmitInput identifies the submitter alongside the request body.
type SubmitInput struct {
	TestID         string
	CandidateID    string
	CandidateEmail string
	CandidateName  string
	Request        model.SubmitAssessmentRequest
}

// Submit scores an attempt and stores it as an undeclared result. Submitting
// again before declaration replaces the earlier result.
func (s *ScoringService) Submit(ctx context.Context, in SubmitInput) (*model.ScoreSummary, error) {
	if in.TestID == "" {
		return nil, invalidArgument("testId", "is required")
	}
	if in.CandidateID == "" {
		return nil, invalidArgument("candidateId", "is required")
	}

	test, err := s.tests.GetByID(ctx, in.TestID)
	if err != nil {
		return nil, notFound("load test", err)
	}

	start := time.Now()
	outcome := s.grader.ScoreTest(ctx, test, in.Request.Answers)
	took := time.Since(start)

	var session *model.ExamSession
	if in.Request.SessionToken != "" && s.sessions != nil {
		session = s.sessionFor(ctx, in.Request.SessionToken, test.ID)
	}

	tabSwitches := in.Request.TabSwitchCount
	if session != nil && session.TabSwitchCount > tabSwitches {
		tabSwitches = session.TabSwitchCount
	}

	now := s.now().UTC()
	result := &model.AssessmentResult{
		ID:             uuid.New(),
		TestID:         test.ID,
		TestName:       test.Name,
		CandidateID:    in.CandidateID,
		CandidateEmail: in.CandidateEmail,
		CandidateName:  in.CandidateName,
		Score:          outcome.Score,
		Status:         outcome.Status,
		Duration:       in.Request.Duration,
		TabSwitchCount: tabSwitches,
		Answers:        outcome.EvaluatedAnswers,
		TotalPoints:    outcome.TotalPoints,
		EarnedPoints:   outcome.EarnedPoints,
		CorrectAnswers: outcome.CorrectAnswers,
		UpdatedAt:      now,
	}

	if err := s.results.UpsertForSubmission(ctx, result); err != nil {
		if errors.Is(err, repository.ErrAlreadyDeclared) {
			return nil, ErrResultAlreadyDeclared
		}
		return nil, fmt.Errorf("save result: %w", err)
	}

	if session != nil && !session.Closed() {
		s.completeSession(ctx, session.Token, now)
	}

	s.metrics.SubmissionGraded(result.Status)
	s.log.Info().
		Str("test_id", test.ID).
		Str("result_id", result.ID.String()).
		Int("score", result.Score).
		Str("status", string(result.Status)).
		Dur("grading_took", took).
		Msg("Submission graded")

	return &model.ScoreSummary{
		ResultID:         result.ID,
		Score:            result.Score,
		Status:           result.Status,
		EvaluatedAnswers: result.Answers,
		TotalPoints:      result.TotalPoints,
		EarnedPoints:     result.EarnedPoints,
		CorrectAnswers:   result.CorrectAnswers,
	}, nil
}

// sessionFor returns the session only if it belongs to testID.
func (s *ScoringService) sessionFor(ctx context.Context, token, testID string) *model.ExamSession {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Msg("Load session for submission failed")
		}
		return nil
	}
	if session.TestID != testID {
		s.log.Warn().Str("test_id", testID).Str("session_test_id", session.TestID).Msg("Submission session belongs to another test")
		return nil
	}
	return session
}

func (s *ScoringService) completeSession(ctx context.Context, token string, now time.Time) {
	completed := now
	if _, err := s.sessions.Patch(ctx, token, model.SessionPatch{CompletedAt: &completed}, now); err != nil {
		s.log.Warn().Err(err).Msg("Mark session completed failed")
	}
}
