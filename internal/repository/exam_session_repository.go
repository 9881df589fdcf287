package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

const sessionColumns = `token, test_id, invitation_id, started_at, expires_at, duration_seconds,
	last_activity_at, tab_switch_count, current_section, current_question,
	answers, codes, code_submissions, notes, completed_at, terminated_at`

// ExamSessionRepository handles assessment session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(
		&s.Token, &s.TestID, &s.InvitationID, &s.StartedAt, &s.ExpiresAt, &s.DurationSeconds,
		&s.LastActivityAt, &s.TabSwitchCount, &s.CurrentSection, &s.CurrentQuestion,
		&s.Answers, &s.Codes, &s.CodeSubmissions, &s.Notes, &s.CompletedAt, &s.TerminatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// Get retrieves a session by token.
func (r *ExamSessionRepository) Get(ctx context.Context, token string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE token = $1`, token))
}

// Create inserts s unless the token already exists. When another request won
// the race the stored row is returned with created=false.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) (*model.ExamSession, bool, error) {
	answers, err := jsonArg(s.Answers, false)
	if err != nil {
		return nil, false, err
	}
	codes, err := jsonArg(s.Codes, false)
	if err != nil {
		return nil, false, err
	}
	submissions, err := jsonArg(s.CodeSubmissions, false)
	if err != nil {
		return nil, false, err
	}

	created, err := scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO assessment_sessions (
			token, test_id, invitation_id, started_at, expires_at, duration_seconds,
			last_activity_at, answers, codes, code_submissions
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $4, $7, $8, $9)
		 ON CONFLICT (token) DO NOTHING
		 RETURNING `+sessionColumns,
		s.Token, s.TestID, s.InvitationID, s.StartedAt, s.ExpiresAt, s.DurationSeconds,
		answers, codes, submissions,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("insert session: %w", err)
	}

	existing, err := r.Get(ctx, s.Token)
	if err != nil {
		return nil, false, fmt.Errorf("load existing session: %w", err)
	}
	return existing, false, nil
}

// Patch applies p in a single statement. Terminal markers are only written
// while both are still NULL, and tab_switch_count only moves upward, so a
// late or racing patch cannot reopen or rewrite a closed session.
func (r *ExamSessionRepository) Patch(ctx context.Context, token string, p model.SessionPatch, now time.Time) (*model.ExamSession, error) {
	answers, err := jsonArg(p.Answers, p.Answers == nil)
	if err != nil {
		return nil, err
	}
	codes, err := jsonArg(p.Codes, p.Codes == nil)
	if err != nil {
		return nil, err
	}
	submissions, err := jsonArg(p.CodeSubmissions, p.CodeSubmissions == nil)
	if err != nil {
		return nil, err
	}

	return scanSession(r.pool.QueryRow(ctx,
		`UPDATE assessment_sessions SET
			answers          = COALESCE($2::jsonb, answers),
			codes            = COALESCE($3::jsonb, codes),
			code_submissions = COALESCE($4::jsonb, code_submissions),
			tab_switch_count = GREATEST(tab_switch_count, COALESCE($5::int, tab_switch_count)),
			current_section  = COALESCE($6::int, current_section),
			current_question = COALESCE($7::int, current_question),
			notes            = COALESCE($8::text, notes),
			completed_at = CASE
				WHEN completed_at IS NULL AND terminated_at IS NULL AND $10::timestamptz IS NULL
				THEN $9::timestamptz ELSE completed_at END,
			terminated_at = CASE
				WHEN completed_at IS NULL AND terminated_at IS NULL
				THEN $10::timestamptz ELSE terminated_at END,
			last_activity_at = $11
		 WHERE token = $1
		 RETURNING `+sessionColumns,
		token, answers, codes, submissions,
		p.TabSwitchCount, p.CurrentSection, p.CurrentQuestion, p.Notes,
		p.CompletedAt, p.TerminatedAt, now,
	))
}
