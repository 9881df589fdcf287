package model

import (
	"encoding/json"
	"time"
)

// ExamSession represents a candidate's in-progress attempt, keyed by an
// externally issued token.
type ExamSession struct {
	Token           string                     `json:"token"`
	TestID          string                     `json:"testId"`
	InvitationID    *string                    `json:"invitationId,omitempty"`
	StartedAt       time.Time                  `json:"startedAt"`
	ExpiresAt       time.Time                  `json:"expiresAt"`
	DurationSeconds int                        `json:"durationSeconds"`
	LastActivityAt  time.Time                  `json:"lastActivityAt"`
	TabSwitchCount  int                        `json:"tabSwitchCount"`
	CurrentSection  int                        `json:"currentSection"`
	CurrentQuestion int                        `json:"currentQuestion"`
	Answers         map[string]AnswerValue     `json:"answers"`
	Codes           map[string]string          `json:"codes"`
	CodeSubmissions map[string]json.RawMessage `json:"codeSubmissions"`
	Notes           string                     `json:"notes"`
	CompletedAt     *time.Time                 `json:"completedAt,omitempty"`
	TerminatedAt    *time.Time                 `json:"terminatedAt,omitempty"`
}

// NewExamSession builds a fresh session starting at now.
func NewExamSession(token, testID string, durationSeconds int, invitationID *string, now time.Time) *ExamSession {
	return &ExamSession{
		Token:           token,
		TestID:          testID,
		InvitationID:    invitationID,
		StartedAt:       now,
		ExpiresAt:       now.Add(time.Duration(durationSeconds) * time.Second),
		DurationSeconds: durationSeconds,
		LastActivityAt:  now,
		Answers:         map[string]AnswerValue{},
		Codes:           map[string]string{},
		CodeSubmissions: map[string]json.RawMessage{},
	}
}

// Closed reports whether a terminal marker has been written.
func (s *ExamSession) Closed() bool {
	return s.CompletedAt != nil || s.TerminatedAt != nil
}

// Expired reports whether now is past the session deadline.
func (s *ExamSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionPatch carries the mutable subset of a session. Nil means "leave as is".
type SessionPatch struct {
	Answers         map[string]AnswerValue     `json:"answers"`
	Codes           map[string]string          `json:"codes"`
	CodeSubmissions map[string]json.RawMessage `json:"codeSubmissions"`
	TabSwitchCount  *int                       `json:"tabSwitchCount" binding:"omitempty,min=0"`
	CurrentSection  *int                       `json:"currentSection" binding:"omitempty,min=0"`
	CurrentQuestion *int                       `json:"currentQuestion" binding:"omitempty,min=0"`
	Notes           *string                    `json:"notes" binding:"omitempty,max=20000"`
	CompletedAt     *time.Time                 `json:"completedAt"`
	TerminatedAt    *time.Time                 `json:"terminatedAt"`
	// Accepted for compatibility; the server always stamps its own clock.
	LastActivityAt *time.Time `json:"lastActivityAt"`
}

// StripTerminal drops both terminal markers from the patch.
func (p *SessionPatch) StripTerminal() {
	p.CompletedAt = nil
	p.TerminatedAt = nil
}

// Apply merges the patch into s using the same rules the SQL store enforces:
// terminal markers are write-once, tabSwitchCount never decreases.
func (p SessionPatch) Apply(s *ExamSession, now time.Time) {
	if p.Answers != nil {
		s.Answers = p.Answers
	}
	if p.Codes != nil {
		s.Codes = p.Codes
	}
	if p.CodeSubmissions != nil {
		s.CodeSubmissions = p.CodeSubmissions
	}
	if p.TabSwitchCount != nil && *p.TabSwitchCount > s.TabSwitchCount {
		s.TabSwitchCount = *p.TabSwitchCount
	}
	if p.CurrentSection != nil {
		s.CurrentSection = *p.CurrentSection
	}
	if p.CurrentQuestion != nil {
		s.CurrentQuestion = *p.CurrentQuestion
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	if !s.Closed() {
		switch {
		case p.TerminatedAt != nil:
			s.TerminatedAt = p.TerminatedAt
		case p.CompletedAt != nil:
			s.CompletedAt = p.CompletedAt
		}
	}
	s.LastActivityAt = now
}

// CreateSessionRequest is the payload for creating or resuming a session.
type CreateSessionRequest struct {
	Token           string  `json:"token" binding:"required,max=256"`
	TestID          string  `json:"testId" binding:"required,max=128"`
	DurationSeconds int     `json:"durationSeconds" binding:"required,min=1"`
	InvitationID    *string `json:"invitationId" binding:"omitempty,max=128"`
}

// SessionClock reports the remaining time of a session.
type SessionClock struct {
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int       `json:"remainingSeconds"`
	Expired          bool      `json:"expired"`
}
