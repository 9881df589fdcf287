package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository answers read-only display-name lookups across the
// profile tables owned by other parts of the platform.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) queryName(ctx context.Context, query string, arg string) (string, error) {
	var name string
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return strings.TrimSpace(name), nil
}

// CandidateFullName looks up the candidate profile of a user.
func (r *ProfileRepository) CandidateFullName(ctx context.Context, userID string) (string, error) {
	return r.queryName(ctx,
		`SELECT COALESCE(full_name, '') FROM candidate_profiles WHERE user_id = $1`, userID)
}

// StudentName looks up a student profile by email.
func (r *ProfileRepository) StudentName(ctx context.Context, email string) (string, error) {
	return r.queryName(ctx,
		`SELECT CONCAT_WS(' ', NULLIF(first_name, ''), NULLIF(last_name, ''))
		 FROM student_profiles WHERE LOWER(email) = LOWER($1)`, email)
}

// UserName looks up the account name by email.
func (r *ProfileRepository) UserName(ctx context.Context, email string) (string, error) {
	return r.queryName(ctx,
		`SELECT COALESCE(name, '') FROM users WHERE LOWER(email) = LOWER($1)`, email)
}
