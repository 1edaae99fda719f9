// Package memory provides in-memory repositories used by tests and by
// single-node deployments that do not need Postgres.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
)

type Repository struct {
	attempt   *AttemptMemory
	candidate *CandidateMemory
	exam      *ExamMemory
	archive   *ArchiveMemory
}

func NewRepository() *Repository {
	return &Repository{
		attempt:   NewAttemptMemory(),
		candidate: NewCandidateMemory(),
		exam:      NewExamMemory(),
		archive:   NewArchiveMemory(),
	}
}

func (r *Repository) Attempt() repositories.AttemptRepository     { return r.attempt }
func (r *Repository) Candidate() repositories.CandidateRepository { return r.candidate }
func (r *Repository) Exam() repositories.ExamRepository           { return r.exam }
func (r *Repository) Archive() repositories.ArchiveRepository     { return r.archive }

// cloneAttempt isolates stored records from caller mutation; the maps inside
// an Attempt would otherwise be shared across Get calls.
func cloneAttempt(a *models.Attempt) *models.Attempt {
	raw, _ := json.Marshal(a)
	var out models.Attempt
	_ = json.Unmarshal(raw, &out)
	return &out
}

type AttemptMemory struct {
	mu       sync.RWMutex
	attempts map[string]*models.Attempt
}

func NewAttemptMemory() *AttemptMemory {
	return &AttemptMemory{attempts: make(map[string]*models.Attempt)}
}

func (m *AttemptMemory) Get(_ context.Context, token string) (*models.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[token]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *AttemptMemory) Create(_ context.Context, attempt *models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.attempts[attempt.Token]; exists {
		return repositories.ErrAlreadyExists
	}
	m.attempts[attempt.Token] = cloneAttempt(attempt)
	return nil
}

func (m *AttemptMemory) Save(_ context.Context, attempt *models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[attempt.Token] = cloneAttempt(attempt)
	return nil
}

func (m *AttemptMemory) ListUnfinished(_ context.Context) ([]*models.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Attempt
	for _, a := range m.attempts {
		if a.Status != models.AttemptStatusFinished {
			out = append(out, cloneAttempt(a))
		}
	}
	return out, nil
}

func (m *AttemptMemory) ListFinished(_ context.Context) ([]*models.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Attempt
	for _, a := range m.attempts {
		if a.Status == models.AttemptStatusFinished {
			out = append(out, cloneAttempt(a))
		}
	}
	return out, nil
}

type CandidateMemory struct {
	mu         sync.RWMutex
	nextID     uint
	candidates map[uint]*models.Candidate
}

func NewCandidateMemory() *CandidateMemory {
	return &CandidateMemory{nextID: 1, candidates: make(map[uint]*models.Candidate)}
}

func (m *CandidateMemory) Get(_ context.Context, id uint) (*models.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *CandidateMemory) Create(_ context.Context, candidate *models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if candidate.ID == 0 {
		candidate.ID = m.nextID
		m.nextID++
	} else if candidate.ID >= m.nextID {
		m.nextID = candidate.ID + 1
	}
	cp := *candidate
	m.candidates[candidate.ID] = &cp
	return nil
}

func (m *CandidateMemory) SetStatus(_ context.Context, id uint, status models.CandidateStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *CandidateMemory) UpdateResult(_ context.Context, id uint, result models.CandidateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Status = result.Status
	score := result.Score
	c.LatestScore = &score
	if result.ExamStartedAt != nil {
		c.ExamStartedAt = result.ExamStartedAt
	}
	if result.ExamSubmittedAt != nil {
		c.ExamSubmittedAt = result.ExamSubmittedAt
	}
	if result.DurationSeconds != nil {
		c.DurationSeconds = result.DurationSeconds
	}
	return nil
}

type ExamMemory struct {
	mu         sync.RWMutex
	specs      map[string]*models.ExamSpec
	tombstoned map[string]bool
}

func NewExamMemory() *ExamMemory {
	return &ExamMemory{specs: make(map[string]*models.ExamSpec), tombstoned: make(map[string]bool)}
}

func (m *ExamMemory) GetSpec(_ context.Context, examKey string) (*models.ExamSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	spec, ok := m.specs[examKey]
	if !ok || m.tombstoned[examKey] {
		return nil, repositories.ErrNotFound
	}
	return spec, nil
}

func (m *ExamMemory) GetPublicSpec(ctx context.Context, examKey string) (*models.ExamSpec, error) {
	spec, err := m.GetSpec(ctx, examKey)
	if err != nil {
		return nil, err
	}
	return spec.Redacted(), nil
}

func (m *ExamMemory) Put(_ context.Context, spec *models.ExamSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.specs[spec.ExamKey] = spec
	return nil
}

func (m *ExamMemory) MarkDeleted(_ context.Context, examKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.specs[examKey]; !ok {
		return repositories.ErrNotFound
	}
	m.tombstoned[examKey] = true
	return nil
}

type ArchiveMemory struct {
	mu      sync.RWMutex
	records map[string][]*models.ArchiveRecord
}

func NewArchiveMemory() *ArchiveMemory {
	return &ArchiveMemory{records: make(map[string][]*models.ArchiveRecord)}
}

func (m *ArchiveMemory) Write(_ context.Context, token string, record *models.ArchiveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[token] = append(m.records[token], record)
	return nil
}

func (m *ArchiveMemory) ListByToken(_ context.Context, token string) ([]*models.ArchiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*models.ArchiveRecord(nil), m.records[token]...), nil
}
