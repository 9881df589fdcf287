package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

// TestRepository reads assessment definitions. Tests are authored elsewhere;
// Save exists for seeding and tooling.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test with its sections.
func (r *TestRepository) GetByID(ctx context.Context, id string) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, employer_id, passing_score, duration_seconds, sections
		 FROM assessment_tests
		 WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.EmployerID, &t.PassingScore, &t.DurationSeconds, &t.Sections)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Save inserts or replaces a test definition.
func (r *TestRepository) Save(ctx context.Context, t *model.Test) error {
	sections, err := jsonArg(t.Sections, false)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO assessment_tests (id, name, employer_id, passing_score, duration_seconds, sections)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			employer_id = EXCLUDED.employer_id,
			passing_score = EXCLUDED.passing_score,
			duration_seconds = EXCLUDED.duration_seconds,
			sections = EXCLUDED.sections,
			updated_at = NOW()`,
		t.ID, t.Name, t.EmployerID, t.PassingScore, t.DurationSeconds, sections,
	)
	if err != nil {
		return fmt.Errorf("save test: %w", err)
	}
	return nil
}
