package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStore_DeclaredResultsAreExcluded(t *testing.T) {
	ctx := context.Background()
	results := New().Results()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		results.PutResult(&model.AssessmentResult{
			TestID:      "t1",
			CandidateID: uuid.NewString(),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}

	first, err := results.ListUndeclared(ctx, "t1", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	claimed, err := results.MarkDeclared(ctx, first[0].ID, model.ResultStatusPassed, base, "emp-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	again, err := results.MarkDeclared(ctx, first[0].ID, model.ResultStatusFailed, base, "emp-2")
	require.NoError(t, err)
	assert.False(t, again)

	rest, err := results.ListUndeclared(ctx, "t1", 20)
	require.NoError(t, err)
	assert.Len(t, rest, 4)
	for _, r := range rest {
		assert.NotEqual(t, first[0].ID, r.ID)
	}

	got, err := results.GetByID(ctx, first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResultStatusPassed, got.Status)
	assert.Equal(t, "emp-1", *got.DeclaredBy)
}

func TestResultStore_UpsertRespectsDeclaration(t *testing.T) {
	ctx := context.Background()
	results := New().Results()
	now := time.Now()

	first := &model.AssessmentResult{TestID: "t1", CandidateID: "c1", Score: 40, UpdatedAt: now}
	require.NoError(t, results.UpsertForSubmission(ctx, first))

	second := &model.AssessmentResult{TestID: "t1", CandidateID: "c1", Score: 90, UpdatedAt: now}
	require.NoError(t, results.UpsertForSubmission(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	claimed, err := results.MarkDeclared(ctx, first.ID, model.ResultStatusPassed, now, "emp")
	require.NoError(t, err)
	require.True(t, claimed)

	third := &model.AssessmentResult{TestID: "t1", CandidateID: "c1", Score: 10, UpdatedAt: now}
	assert.ErrorIs(t, results.UpsertForSubmission(ctx, third), repository.ErrAlreadyDeclared)

	stored, err := results.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, stored.Score)
}

func TestStore_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now()

	s1, created, err := store.Create(ctx, model.NewExamSession("tok", "t1", 60, nil, now))
	require.NoError(t, err)
	assert.True(t, created)

	s2, created, err := store.Create(ctx, model.NewExamSession("tok", "t1", 600, nil, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s1.StartedAt, s2.StartedAt)
	assert.Equal(t, s1.ExpiresAt, s2.ExpiresAt)
}
