// Package memstore is an in-process implementation of the repository
// contracts. It backs STORE_DRIVER=memory and the service and handler tests.
package memstore

import (
	"context"
	"encoding/json"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
)

// Store holds every collection behind one mutex.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*model.ExamSession
	tests      map[string]*model.Test
	results    map[uuid.UUID]*model.AssessmentResult
	candidates map[string]string
	students   map[string]string
	users      map[string]string
	expiry     map[string]time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sessions:   make(map[string]*model.ExamSession),
		tests:      make(map[string]*model.Test),
		results:    make(map[uuid.UUID]*model.AssessmentResult),
		candidates: make(map[string]string),
		students:   make(map[string]string),
		users:      make(map[string]string),
		expiry:     make(map[string]time.Time),
	}
}

// ─── Sessions ──────────────────────────────────────────────────────────

func copySession(s *model.ExamSession) *model.ExamSession {
	cp := *s
	cp.Answers = maps.Clone(s.Answers)
	cp.Codes = maps.Clone(s.Codes)
	if s.CodeSubmissions != nil {
		cp.CodeSubmissions = make(map[string]json.RawMessage, len(s.CodeSubmissions))
		for k, v := range s.CodeSubmissions {
			cp.CodeSubmissions[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &cp
}

// Create stores s unless its token exists already.
func (m *Store) Create(_ context.Context, s *model.ExamSession) (*model.ExamSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[s.Token]; ok {
		return copySession(existing), false, nil
	}
	m.sessions[s.Token] = copySession(s)
	return copySession(s), true, nil
}

// Get returns the session for token.
func (m *Store) Get(_ context.Context, token string) (*model.ExamSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(s), nil
}

// Patch applies p with the same guards as the SQL store.
func (m *Store) Patch(_ context.Context, token string, p model.SessionPatch, now time.Time) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Answers = maps.Clone(p.Answers)
	p.Codes = maps.Clone(p.Codes)
	p.CodeSubmissions = maps.Clone(p.CodeSubmissions)
	p.Apply(s, now)
	return copySession(s), nil
}

// GetExpiresAt reads the deadline cache.
func (m *Store) GetExpiresAt(_ context.Context, token string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.expiry[token]
	return t, ok, nil
}

// SetExpiresAt writes the deadline cache.
func (m *Store) SetExpiresAt(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expiry[token] = expiresAt
	return nil
}

// ─── Tests ─────────────────────────────────────────────────────────────

// PutTest stores or replaces a test definition.
func (m *Store) PutTest(t *model.Test) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	m.tests[t.ID] = &cp
}

// GetByID returns a test definition.
func (m *Store) GetByID(_ context.Context, id string) (*model.Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// ─── Results ───────────────────────────────────────────────────────────

func copyResult(r *model.AssessmentResult) *model.AssessmentResult {
	cp := *r
	cp.Answers = append([]model.EvaluatedAnswer(nil), r.Answers...)
	return &cp
}

// Results exposes the result collection under the ResultStore contract.
func (m *Store) Results() *ResultStore {
	return &ResultStore{m: m}
}

// ResultStore is a view of Store whose method names match the result
// repository. It exists because tests and results both have GetByID.
type ResultStore struct {
	m *Store
}

// PutResult inserts a result as-is, bypassing submission rules.
func (r *ResultStore) PutResult(res *model.AssessmentResult) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	r.m.results[res.ID] = copyResult(res)
}

// UpsertForSubmission stores a graded submission unless the existing result
// for the same candidate is declared.
func (r *ResultStore) UpsertForSubmission(_ context.Context, res *model.AssessmentResult) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for id, existing := range r.m.results {
		if existing.TestID != res.TestID || existing.CandidateID != res.CandidateID {
			continue
		}
		if existing.ResultsDeclared {
			return repository.ErrAlreadyDeclared
		}
		res.ID = id
		res.CreatedAt = existing.CreatedAt
		res.ResultsDeclared = false
		r.m.results[id] = copyResult(res)
		return nil
	}

	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	res.CreatedAt = res.UpdatedAt
	res.ResultsDeclared = false
	r.m.results[res.ID] = copyResult(res)
	return nil
}

// GetByID returns a single result.
func (r *ResultStore) GetByID(_ context.Context, id uuid.UUID) (*model.AssessmentResult, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	res, ok := r.m.results[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyResult(res), nil
}

func (r *ResultStore) sorted(match func(*model.AssessmentResult) bool) []*model.AssessmentResult {
	var out []*model.AssessmentResult
	for _, res := range r.m.results {
		if match(res) {
			out = append(out, copyResult(res))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// ListUndeclared returns up to limit undeclared results for testID.
func (r *ResultStore) ListUndeclared(_ context.Context, testID string, limit int) ([]*model.AssessmentResult, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := r.sorted(func(res *model.AssessmentResult) bool {
		return res.TestID == testID && !res.ResultsDeclared
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkDeclared claims an undeclared result.
func (r *ResultStore) MarkDeclared(_ context.Context, id uuid.UUID, status model.ResultStatus, at time.Time, by string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	res, ok := r.m.results[id]
	if !ok || res.ResultsDeclared {
		return false, nil
	}
	res.ResultsDeclared = true
	res.Status = status
	res.DeclaredAt = &at
	res.DeclaredBy = &by
	res.UpdatedAt = at
	return true, nil
}

// ListByTest pages through results of testID.
func (r *ResultStore) ListByTest(_ context.Context, testID string, declared *bool, page, perPage int) ([]*model.AssessmentResult, int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	all := r.sorted(func(res *model.AssessmentResult) bool {
		return res.TestID == testID && (declared == nil || res.ResultsDeclared == *declared)
	})
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	total := int64(len(all))
	start := (page - 1) * perPage
	if start >= len(all) {
		return []*model.AssessmentResult{}, total, nil
	}
	end := min(start+perPage, len(all))
	return all[start:end], total, nil
}

// ─── Profiles ──────────────────────────────────────────────────────────

// PutCandidate registers a candidate profile name.
func (m *Store) PutCandidate(userID, fullName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[userID] = fullName
}

// PutStudent registers a student profile name.
func (m *Store) PutStudent(email, firstName, lastName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[strings.ToLower(email)] = strings.TrimSpace(firstName + " " + lastName)
}

// PutUser registers an account name.
func (m *Store) PutUser(email, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[strings.ToLower(email)] = name
}

func lookup(mu *sync.RWMutex, table map[string]string, key string) (string, error) {
	mu.RLock()
	defer mu.RUnlock()

	name, ok := table[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return name, nil
}

// CandidateFullName implements the profile lookup.
func (m *Store) CandidateFullName(_ context.Context, userID string) (string, error) {
	return lookup(&m.mu, m.candidates, userID)
}

// StudentName implements the profile lookup.
func (m *Store) StudentName(_ context.Context, email string) (string, error) {
	return lookup(&m.mu, m.students, strings.ToLower(email))
}

// UserName implements the profile lookup.
func (m *Store) UserName(_ context.Context, email string) (string, error) {
	return lookup(&m.mu, m.users, strings.ToLower(email))
}
