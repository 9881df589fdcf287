package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assess/internal/model"
)

// SessionStore persists exam sessions. Implemented by
// repository.ExamSessionRepository and memstore.Store.
type SessionStore interface {
	// Create inserts s unless the token exists; created reports which.
	Create(ctx context.Context, s *model.ExamSession) (*model.ExamSession, bool, error)
	Get(ctx context.Context, token string) (*model.ExamSession, error)
	// Patch must never overwrite an existing terminal marker.
	Patch(ctx context.Context, token string, p model.SessionPatch, now time.Time) (*model.ExamSession, error)
}

// ExpiryCache caches session deadlines.
type ExpiryCache interface {
	GetExpiresAt(ctx context.Context, token string) (time.Time, bool, error)
	SetExpiresAt(ctx context.Context, token string, expiresAt time.Time) error
}

// TestStore reads test definitions.
type TestStore interface {
	GetByID(ctx context.Context, id string) (*model.Test, error)
}

// ResultStore persists assessment results.
type ResultStore interface {
	// UpsertForSubmission returns repository.ErrAlreadyDeclared when the
	// candidate's existing result is frozen.
	UpsertForSubmission(ctx context.Context, res *model.AssessmentResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AssessmentResult, error)
	ListUndeclared(ctx context.Context, testID string, limit int) ([]*model.AssessmentResult, error)
	// MarkDeclared is a conditional update; claimed is false when the result
	// was declared already.
	MarkDeclared(ctx context.Context, id uuid.UUID, status model.ResultStatus, at time.Time, by string) (claimed bool, err error)
	ListByTest(ctx context.Context, testID string, declared *bool, page, perPage int) ([]*model.AssessmentResult, int64, error)
}

// ProfileStore looks up display names. Every method returns
// repository.ErrNotFound on a miss.
type ProfileStore interface {
	CandidateFullName(ctx context.Context, userID string) (string, error)
	StudentName(ctx context.Context, email string) (string, error)
	UserName(ctx context.Context, email string) (string, error)
}
