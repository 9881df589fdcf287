package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

const resultColumns = `id, test_id, test_name, candidate_id, candidate_email, candidate_name,
	score, status, duration_seconds, tab_switch_count, answers,
	total_points, earned_points, correct_answers,
	results_declared, declared_at, declared_by, created_at, updated_at`

// undeclaredPredicate must match the WHERE clause of the partial index
// idx_assessment_results_undeclared, or drains fall back to a scan.
const undeclaredPredicate = `results_declared = FALSE`

var listUndeclaredQuery = `SELECT ` + resultColumns + `
	 FROM assessment_results
	 WHERE test_id = $1 AND ` + undeclaredPredicate + `
	 ORDER BY created_at ASC, id ASC
	 LIMIT $2`

// ResultRepository handles assessment result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func scanResult(row pgx.Row) (*model.AssessmentResult, error) {
	res := &model.AssessmentResult{}
	err := row.Scan(
		&res.ID, &res.TestID, &res.TestName, &res.CandidateID, &res.CandidateEmail, &res.CandidateName,
		&res.Score, &res.Status, &res.Duration, &res.TabSwitchCount, &res.Answers,
		&res.TotalPoints, &res.EarnedPoints, &res.CorrectAnswers,
		&res.ResultsDeclared, &res.DeclaredAt, &res.DeclaredBy, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func collectResults(rows pgx.Rows) ([]*model.AssessmentResult, error) {
	defer rows.Close()

	var out []*model.AssessmentResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpsertForSubmission stores the graded submission. A previous undeclared
// result for the same (test, candidate) is overwritten; a declared one is
// left untouched and ErrAlreadyDeclared is returned.
func (r *ResultRepository) UpsertForSubmission(ctx context.Context, res *model.AssessmentResult) error {
	answers, err := jsonArg(res.Answers, false)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO assessment_results (
			id, test_id, test_name, candidate_id, candidate_email, candidate_name,
			score, status, duration_seconds, tab_switch_count, answers,
			total_points, earned_points, correct_answers, results_declared, created_at, updated_at
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, FALSE, $15, $15)
		 ON CONFLICT (test_id, candidate_id) DO UPDATE SET
			test_name        = EXCLUDED.test_name,
			candidate_email  = EXCLUDED.candidate_email,
			candidate_name   = EXCLUDED.candidate_name,
			score            = EXCLUDED.score,
			status           = EXCLUDED.status,
			duration_seconds = EXCLUDED.duration_seconds,
			tab_switch_count = EXCLUDED.tab_switch_count,
			answers          = EXCLUDED.answers,
			total_points     = EXCLUDED.total_points,
			earned_points    = EXCLUDED.earned_points,
			correct_answers  = EXCLUDED.correct_answers,
			updated_at       = EXCLUDED.updated_at
		 WHERE assessment_results.results_declared = FALSE
		 RETURNING id, created_at, updated_at`,
		res.ID, res.TestID, res.TestName, res.CandidateID, res.CandidateEmail, res.CandidateName,
		res.Score, res.Status, res.Duration, res.TabSwitchCount, answers,
		res.TotalPoints, res.EarnedPoints, res.CorrectAnswers, res.UpdatedAt,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyDeclared
		}
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// GetByID retrieves a single result.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AssessmentResult, error) {
	return scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM assessment_results WHERE id = $1`, id))
}

// ListUndeclared returns up to limit results of testID that have not been
// declared yet, oldest first.
func (r *ResultRepository) ListUndeclared(ctx context.Context, testID string, limit int) ([]*model.AssessmentResult, error) {
	rows, err := r.pool.Query(ctx, listUndeclaredQuery, testID, limit)
	if err != nil {
		return nil, err
	}
	return collectResults(rows)
}

// MarkDeclared flips a result to declared if nobody else has. claimed is
// false when the row was already declared or does not exist.
func (r *ResultRepository) MarkDeclared(ctx context.Context, id uuid.UUID, status model.ResultStatus, at time.Time, by string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_results
		 SET results_declared = TRUE, status = $2, declared_at = $3, declared_by = $4, updated_at = $3
		 WHERE id = $1 AND results_declared = FALSE`,
		id, status, at, by)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByTest returns a page of results for testID, optionally filtered by
// declaration state, together with the total match count.
func (r *ResultRepository) ListByTest(ctx context.Context, testID string, declared *bool, page, perPage int) ([]*model.AssessmentResult, int64, error) {
	where := `WHERE test_id = $1`
	args := []any{testID}
	if declared != nil {
		args = append(args, *declared)
		where += fmt.Sprintf(" AND results_declared = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM assessment_results "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM assessment_results `+where+
			fmt.Sprintf(` ORDER BY score DESC, created_at ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}

	results, err := collectResults(rows)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
