package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assess/internal/events"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/notifier"
	"github.com/stemsi/exstem-assess/internal/repository/memstore"
	"github.com/stretchr/testify/mock"
)

func codingRuns(passed, total int) []model.CodingTestResult {
	out := make([]model.CodingTestResult, total)
	for i := range out {
		out[i].Passed = i < passed
	}
	return out
}

// backendTest is the two-question test used across service tests:
// an MCQ worth 50 and a coding question worth 50 with four cases.
func backendTest(passing int) *model.Test {
	return &model.Test{
		ID:           "test-go",
		Name:         "Go Backend",
		EmployerID:   "emp-1",
		PassingScore: intPtr(passing),
		Sections: []model.Section{{
			Title: "Main",
			Questions: []model.Question{
				{ID: "q1", Type: model.QuestionTypeMultipleChoice, Text: "Pick B", Points: 50, Options: []string{"A", "B", "C", "D"}, CorrectAnswer: model.Scalar("B")},
				{ID: "q2", Type: model.QuestionTypeCoding, Text: "FizzBuzz", Points: 50},
			},
		}},
	}
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg notifier.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishResultDeclared(ctx context.Context, ev events.ResultDeclared) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

var errStoreDown = errors.New("store unavailable")

// flakyResults fails MarkDeclared for selected ids, or for all when failAll.
type flakyResults struct {
	*memstore.ResultStore

	mu      sync.Mutex
	failIDs map[uuid.UUID]bool
	failAll bool
	calls   map[uuid.UUID]int
}

func newFlakyResults(inner *memstore.ResultStore) *flakyResults {
	return &flakyResults{
		ResultStore: inner,
		failIDs:     make(map[uuid.UUID]bool),
		calls:       make(map[uuid.UUID]int),
	}
}

func (f *flakyResults) MarkDeclared(ctx context.Context, id uuid.UUID, status model.ResultStatus, at time.Time, by string) (bool, error) {
	f.mu.Lock()
	f.calls[id]++
	fail := f.failAll || f.failIDs[id]
	f.mu.Unlock()

	if fail {
		return false, errStoreDown
	}
	return f.ResultStore.MarkDeclared(ctx, id, status, at, by)
}

func (f *flakyResults) callsFor(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}
