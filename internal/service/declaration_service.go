package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/events"
	"github.com/stemsi/exstem-assess/internal/metrics"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/notifier"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// DeclarationService finalizes results and notifies candidates.
type DeclarationService struct {
	tests   TestStore
	results ResultStore
	names   *NameResolver
	sender  notifier.Sender
	events  events.Publisher
	metrics *metrics.Metrics
	cfg     config.DeclarationConfig
	log     zerolog.Logger
	now     func() time.Time
}

// NewDeclarationService creates a new DeclarationService. pub and m may be nil.
func NewDeclarationService(
	tests TestStore,
	results ResultStore,
	names *NameResolver,
	sender notifier.Sender,
	pub events.Publisher,
	m *metrics.Metrics,
	cfg config.DeclarationConfig,
	log zerolog.Logger,
) *DeclarationService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 500
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = 5 * time.Minute
	}
	if cfg.MaxIdleBatches <= 0 {
		cfg.MaxIdleBatches = 3
	}
	if cfg.MaxItemAttempts <= 0 {
		cfg.MaxItemAttempts = 3
	}
	return &DeclarationService{
		tests:   tests,
		results: results,
		names:   names,
		sender:  sender,
		events:  pub,
		metrics: m,
		cfg:     cfg,
		log:     log.With().Str("component", "declaration").Logger(),
		now:     time.Now,
	}
}

// AuthorizeTest loads testID and checks that employerID owns it.
func (s *DeclarationService) AuthorizeTest(ctx context.Context, testID, employerID string) (*model.Test, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, notFound("load test", err)
	}
	if test.EmployerID != employerID {
		return nil, ErrForbidden
	}
	return test, nil
}

// ListResults pages through the results of testID, best score first.
func (s *DeclarationService) ListResults(ctx context.Context, testID string, declared *bool, page, perPage int) ([]*model.AssessmentResult, int64, error) {
	if page <= 0 {
		page = defaultPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	results, total, err := s.results.ListByTest(ctx, testID, declared, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	return results, total, nil
}

// run holds the state of one DeclareAll call.
type run struct {
	id         string
	test       *model.Test
	declaredBy string
	at         time.Time

	mu       sync.Mutex
	failures map[uuid.UUID]int
}

func (r *run) fail(id uuid.UUID) {
	r.mu.Lock()
	r.failures[id]++
	r.mu.Unlock()
}

// exhausted returns the results that failed too often to try again.
func (r *run) exhausted(maxAttempts int) map[uuid.UUID]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uuid.UUID]struct{})
	for id, n := range r.failures {
		if n >= maxAttempts {
			out[id] = struct{}{}
		}
	}
	return out
}

// DeclareAll drains every undeclared result of testID in sequential batches.
// Items inside a batch are processed concurrently and a failing item never
// affects the others. The summary is returned even when err is non-nil.
func (s *DeclarationService) DeclareAll(ctx context.Context, testID, declaredBy string) (*model.DeclarationSummary, error) {
	return s.DeclareRun(ctx, shortuuid.New(), testID, declaredBy)
}

// DeclareRun is DeclareAll under a caller-chosen run id, used when the run
// was queued and the id has already been handed to the client.
func (s *DeclarationService) DeclareRun(ctx context.Context, runID, testID, declaredBy string) (*model.DeclarationSummary, error) {
	if runID == "" {
		runID = shortuuid.New()
	}
	summary := &model.DeclarationSummary{RunID: runID, TestID: testID}

	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return summary, notFound("load test", err)
	}

	r := &run{
		id:         summary.RunID,
		test:       test,
		declaredBy: declaredBy,
		failures:   make(map[uuid.UUID]int),
	}
	log := s.log.With().Str("run_id", r.id).Str("test_id", testID).Logger()
	log.Info().Int("passing_score", test.EffectivePassingScore()).Msg("Declaration started")

	start := s.now()
	idle := 0
	for {
		if err := ctx.Err(); err != nil {
			s.metrics.DeclarationRun(metrics.RunFailed, s.now().Sub(start))
			return summary, fmt.Errorf("declare results: %w", err)
		}
		if summary.Batches >= s.cfg.MaxBatches {
			return summary, s.stalled(log, summary, start, "batch limit reached")
		}
		if s.now().Sub(start) > s.cfg.TimeBudget {
			return summary, s.stalled(log, summary, start, "time budget exhausted")
		}

		skip := r.exhausted(s.cfg.MaxItemAttempts)
		fetched, err := s.results.ListUndeclared(ctx, testID, s.cfg.BatchSize+len(skip))
		if err != nil {
			s.metrics.DeclarationRun(metrics.RunFailed, s.now().Sub(start))
			return summary, fmt.Errorf("list undeclared results: %w", err)
		}

		batch := make([]*model.AssessmentResult, 0, s.cfg.BatchSize)
		for _, res := range fetched {
			if _, ok := skip[res.ID]; ok {
				continue
			}
			if len(batch) == s.cfg.BatchSize {
				break
			}
			batch = append(batch, res)
		}
		if len(batch) == 0 {
			break
		}

		summary.Batches++
		r.at = s.now().UTC()
		claimed := s.declareBatch(ctx, r, batch, summary)

		log.Debug().Int("batch", summary.Batches).Int("size", len(batch)).Int("claimed", claimed).Msg("Batch settled")

		if claimed == 0 {
			idle++
			if idle >= s.cfg.MaxIdleBatches {
				return summary, s.stalled(log, summary, start, "no progress")
			}
		} else {
			idle = 0
		}
	}

	if gaveUp := len(r.exhausted(s.cfg.MaxItemAttempts)); gaveUp > 0 && summary.DeclaredCount == 0 {
		return summary, s.stalled(log, summary, start, "every remaining result failed")
	}

	s.metrics.DeclarationRun(metrics.RunCompleted, s.now().Sub(start))
	log.Info().
		Int("declared", summary.DeclaredCount).
		Int("emails_sent", summary.EmailsSent).
		Int("emails_failed", summary.EmailsFailed).
		Int("failed_attempts", summary.FailedAttempts).
		Int("batches", summary.Batches).
		Msg("Declaration finished")
	return summary, nil
}

func (s *DeclarationService) stalled(log zerolog.Logger, summary *model.DeclarationSummary, start time.Time, reason string) error {
	s.metrics.DeclarationRun(metrics.RunStalled, s.now().Sub(start))
	log.Error().
		Str("reason", reason).
		Int("declared", summary.DeclaredCount).
		Int("failed_attempts", summary.FailedAttempts).
		Int("batches", summary.Batches).
		Msg("Declaration stalled")
	return fmt.Errorf("%w: %s", ErrDeclarationStalled, reason)
}

// declareBatch fans out over batch and returns how many results it claimed.
func (s *DeclarationService) declareBatch(ctx context.Context, r *run, batch []*model.AssessmentResult, summary *model.DeclarationSummary) int {
	var (
		eg                            errgroup.Group
		claimed, sent, unsent, failed atomic.Int64
	)
	eg.SetLimit(len(batch))

	for _, res := range batch {
		eg.Go(func() error {
			ok, emailSent, err := s.declareItem(ctx, r.id, r.test, res, r.declaredBy, r.at)
			switch {
			case err != nil:
				failed.Add(1)
				r.fail(res.ID)
				s.metrics.DeclarationAttemptFailed()
				s.log.Warn().Err(err).Str("run_id", r.id).Str("result_id", res.ID.String()).Msg("Declare result failed")
			case !ok:
				// Claimed by a concurrent run.
			case emailSent:
				claimed.Add(1)
				sent.Add(1)
			default:
				claimed.Add(1)
				unsent.Add(1)
			}
			return nil
		})
	}
	_ = eg.Wait()

	summary.DeclaredCount += int(claimed.Load())
	summary.EmailsSent += int(sent.Load())
	summary.EmailsFailed += int(unsent.Load())
	summary.FailedAttempts += int(failed.Load())
	return int(claimed.Load())
}

// declareItem commits the declaration first and only then notifies. A
// failed notification is logged and never undoes the commit.
func (s *DeclarationService) declareItem(ctx context.Context, runID string, test *model.Test, res *model.AssessmentResult, declaredBy string, at time.Time) (claimed, emailSent bool, err error) {
	status := model.StatusFor(res.Score, test.EffectivePassingScore())

	claimed, err = s.results.MarkDeclared(ctx, res.ID, status, at, declaredBy)
	if err != nil {
		return false, false, fmt.Errorf("mark declared: %w", err)
	}
	if !claimed {
		return false, false, nil
	}

	res.Status = status
	res.ResultsDeclared = true
	res.DeclaredAt = &at
	res.DeclaredBy = &declaredBy
	res.UpdatedAt = at

	name := s.names.Resolve(ctx, res.CandidateID, res.CandidateEmail, res.CandidateName)
	emailSent = s.notify(ctx, test, res, name)

	s.metrics.ResultDeclared(emailSent)
	s.publish(ctx, runID, res, name, emailSent)
	return true, emailSent, nil
}

func (s *DeclarationService) notify(ctx context.Context, test *model.Test, res *model.AssessmentResult, name string) bool {
	log := s.log.With().Str("result_id", res.ID.String()).Logger()

	if res.CandidateEmail == "" {
		log.Warn().Msg("Result has no candidate email, notification skipped")
		return false
	}

	testName := res.TestName
	if testName == "" {
		testName = test.Name
	}
	msg, err := notifier.ResultMessage(res.CandidateEmail, notifier.ResultData{
		CandidateName: name,
		TestName:      testName,
		Score:         res.Score,
		PassingScore:  test.EffectivePassingScore(),
		Status:        res.Status,
	})
	if err != nil {
		log.Error().Err(err).Msg("Render result email failed")
		return false
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Msg("Send result email failed")
		return false
	}
	return true
}

func (s *DeclarationService) publish(ctx context.Context, runID string, res *model.AssessmentResult, name string, emailSent bool) {
	if s.events == nil {
		return
	}
	err := s.events.PublishResultDeclared(ctx, events.ResultDeclared{
		ResultID:      res.ID,
		RunID:         runID,
		TestID:        res.TestID,
		CandidateID:   res.CandidateID,
		CandidateName: name,
		Score:         res.Score,
		Status:        res.Status,
		DeclaredBy:    *res.DeclaredBy,
		DeclaredAt:    *res.DeclaredAt,
		EmailSent:     emailSent,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("result_id", res.ID.String()).Msg("Publish result declared event failed")
	}
}

// DeclareOne declares a single result on behalf of the owning employer.
func (s *DeclarationService) DeclareOne(ctx context.Context, resultID uuid.UUID, employerID, declaredBy string) (*model.DeclareOneResponse, error) {
	res, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, notFound("load result", err)
	}

	test, err := s.AuthorizeTest(ctx, res.TestID, employerID)
	if err != nil {
		return nil, err
	}
	if res.ResultsDeclared {
		return nil, ErrResultAlreadyDeclared
	}

	claimed, emailSent, err := s.declareItem(ctx, "", test, res, declaredBy, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrResultAlreadyDeclared
	}

	s.log.Info().Str("result_id", res.ID.String()).Bool("email_sent", emailSent).Msg("Result declared")
	return &model.DeclareOneResponse{Result: res, EmailSent: emailSent}, nil
}
