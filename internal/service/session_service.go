package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/model"
)

// SessionService handles exam session business logic.
type SessionService struct {
	store SessionStore
	cache ExpiryCache
	log   zerolog.Logger
	now   func() time.Time
}

// NewSessionService creates a new SessionService. cache may be nil.
func NewSessionService(store SessionStore, cache ExpiryCache, log zerolog.Logger) *SessionService {
	return &SessionService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "session").Logger(),
		now:   time.Now,
	}
}

// CreateSessionInput carries the fields needed to open a session.
type CreateSessionInput struct {
	Token           string
	TestID          string
	DurationSeconds int
	InvitationID    *string
}

// Create opens a session for in.Token, or returns the existing one unchanged.
// The clock of a resumed session is never reset.
func (s *SessionService) Create(ctx context.Context, in CreateSessionInput) (*model.ExamSession, bool, error) {
	in.Token = strings.TrimSpace(in.Token)
	in.TestID = strings.TrimSpace(in.TestID)
	switch {
	case in.Token == "":
		return nil, false, invalidArgument("token", "is required")
	case in.TestID == "":
		return nil, false, invalidArgument("testId", "is required")
	case in.DurationSeconds <= 0:
		return nil, false, invalidArgument("durationSeconds", "must be positive")
	}

	now := s.now().UTC()
	session, created, err := s.store.Create(ctx, model.NewExamSession(in.Token, in.TestID, in.DurationSeconds, in.InvitationID, now))
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}

	if created {
		s.log.Info().Str("test_id", session.TestID).Int("duration_seconds", session.DurationSeconds).Msg("Session created")
	} else {
		s.log.Debug().Str("test_id", session.TestID).Msg("Session resumed")
	}
	s.warmCache(ctx, session)

	return session, created, nil
}

// Get returns the session for token.
func (s *SessionService) Get(ctx context.Context, token string) (*model.ExamSession, error) {
	session, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, notFound("get session", err)
	}
	return session, nil
}

// Patch applies the allow-listed fields of p. Terminal markers are dropped
// once the session is closed, and only one of them is ever written.
func (s *SessionService) Patch(ctx context.Context, token string, p model.SessionPatch) (*model.ExamSession, error) {
	current, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, notFound("patch session", err)
	}

	if current.Closed() {
		p.StripTerminal()
	} else if p.TerminatedAt != nil && p.CompletedAt != nil {
		p.CompletedAt = nil
	}
	// lastActivityAt always comes from the server clock.
	p.LastActivityAt = nil

	updated, err := s.store.Patch(ctx, token, p, s.now().UTC())
	if err != nil {
		return nil, notFound("patch session", err)
	}

	if !current.Closed() && updated.Closed() {
		s.log.Info().
			Str("test_id", updated.TestID).
			Bool("terminated", updated.TerminatedAt != nil).
			Int("tab_switches", updated.TabSwitchCount).
			Msg("Session closed")
	}
	return updated, nil
}

// Remaining reports the time left on a session. The deadline is read through
// the expiry cache and the cache is refilled from the store on a miss.
func (s *SessionService) Remaining(ctx context.Context, token string) (model.SessionClock, error) {
	expiresAt, ok := s.cachedExpiry(ctx, token)
	if !ok {
		session, err := s.store.Get(ctx, token)
		if err != nil {
			return model.SessionClock{}, notFound("session remaining", err)
		}
		expiresAt = session.ExpiresAt
		s.warmCache(ctx, session)
	}

	remaining := expiresAt.Sub(s.now())
	secs := int(remaining / time.Second)
	if secs < 0 {
		secs = 0
	}
	return model.SessionClock{
		Token:            token,
		ExpiresAt:        expiresAt,
		RemainingSeconds: secs,
		Expired:          remaining <= 0,
	}, nil
}

func (s *SessionService) cachedExpiry(ctx context.Context, token string) (time.Time, bool) {
	if s.cache == nil {
		return time.Time{}, false
	}
	t, ok, err := s.cache.GetExpiresAt(ctx, token)
	if err != nil {
		s.log.Warn().Err(err).Msg("Expiry cache read failed")
		return time.Time{}, false
	}
	return t, ok
}

func (s *SessionService) warmCache(ctx context.Context, session *model.ExamSession) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetExpiresAt(ctx, session.Token, session.ExpiresAt); err != nil {
		s.log.Warn().Err(err).Msg("Expiry cache write failed")
	}
}
