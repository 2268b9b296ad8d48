package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/storage"
)

var (
	testNow      = time.Date(2024, 1, 20, 15, 0, 0, 0, time.UTC)
	trainingDay  = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	competitorC  = "11111111-1111-1111-1111-111111111111"
	competitorD  = "22222222-2222-2222-2222-222222222222"
	modalityM    = "33333333-3333-3333-3333-333333333333"
	evaluatorE   = "44444444-4444-4444-4444-444444444444"
	evaluatorF   = "55555555-5555-5555-5555-555555555555"
	adminA       = "66666666-6666-6666-6666-666666666666"
	superAdminS  = "77777777-7777-7777-7777-777777777777"
	enrollmentCM = "88888888-8888-8888-8888-888888888888"
)

func strPtr(v string) *string { return &v }

type enrollmentRepoStub struct {
	mu        sync.Mutex
	items     map[string]*models.Enrollment
	trainings map[string]int
	createErr error
	updateErr error
	deleteErr error
	seq       int
}

func newEnrollmentRepoStub(items ...models.Enrollment) *enrollmentRepoStub {
	repo := &enrollmentRepoStub{items: map[string]*models.Enrollment{}, trainings: map[string]int{}}
	for i := range items {
		item := items[i]
		repo.items[item.ID] = &item
	}
	return repo
}

func (r *enrollmentRepoStub) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, e := range r.items {
		if filter.CompetitorID != "" && e.CompetitorID != filter.CompetitorID {
			continue
		}
		if filter.EvaluatorID != "" && !e.HasEvaluator(filter.EvaluatorID) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *enrollmentRepoStub) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.items[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (r *enrollmentRepoStub) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentDetail{Enrollment: *e, ModalityCode: "WELD"}, nil
}

func (r *enrollmentRepoStub) GetActiveEnrollment(_ context.Context, competitorID, modalityID string) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.items {
		if e.CompetitorID == competitorID && e.ModalityID == modalityID && e.IsActive() {
			clone := *e
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *enrollmentRepoStub) IsEvaluatorAssigned(_ context.Context, evaluatorID, modalityID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.items {
		if e.ModalityID == modalityID && e.IsActive() && e.HasEvaluator(evaluatorID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *enrollmentRepoStub) Create(_ context.Context, enrollment *models.Enrollment) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if enrollment.ID == "" {
		r.seq++
		enrollment.ID = fmt.Sprintf("enrollment-%d", r.seq)
	}
	clone := *enrollment
	r.items[enrollment.ID] = &clone
	return nil
}

func (r *enrollmentRepoStub) Update(_ context.Context, enrollment *models.Enrollment) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[enrollment.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *enrollment
	r.items[enrollment.ID] = &clone
	return nil
}

func (r *enrollmentRepoStub) CountTrainings(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trainings[id], nil
}

func (r *enrollmentRepoStub) Delete(_ context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, id)
	return nil
}

type userReaderStub map[string]*models.User

func (u userReaderStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func defaultUsers() userReaderStub {
	return userReaderStub{
		competitorC: {ID: competitorC, Role: models.RoleCompetitor, Active: true},
		competitorD: {ID: competitorD, Role: models.RoleCompetitor, Active: false},
		evaluatorE:  {ID: evaluatorE, Role: models.RoleEvaluator, Active: true},
		evaluatorF:  {ID: evaluatorF, Role: models.RoleEvaluator, Active: true},
		adminA:      {ID: adminA, Role: models.RoleAdmin, Active: true},
	}
}

type modalityRepoStub struct {
	items     map[string]*models.Modality
	createErr error
	created   []*models.Modality
}

func newModalityRepoStub(items ...models.Modality) *modalityRepoStub {
	repo := &modalityRepoStub{items: map[string]*models.Modality{}}
	for i := range items {
		item := items[i]
		repo.items[item.ID] = &item
	}
	return repo
}

func (r *modalityRepoStub) List(_ context.Context, _ models.ModalityFilter) ([]models.Modality, int, error) {
	var out []models.Modality
	for _, m := range r.items {
		out = append(out, *m)
	}
	return out, len(out), nil
}

func (r *modalityRepoStub) FindByID(_ context.Context, id string) (*models.Modality, error) {
	if m, ok := r.items[id]; ok {
		return m, nil
	}
	return nil, sql.ErrNoRows
}

func (r *modalityRepoStub) Create(_ context.Context, modality *models.Modality) error {
	if r.createErr != nil {
		return r.createErr
	}
	if modality.ID == "" {
		modality.ID = fmt.Sprintf("modality-%d", len(r.items)+1)
	}
	r.items[modality.ID] = modality
	r.created = append(r.created, modality)
	return nil
}

type auditLogStub struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	err     error
}

func (a *auditLogStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return a.err
}

func (a *auditLogStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type sessionRepoStub struct {
	mu        sync.Mutex
	items     map[string]*models.TrainingSession
	locks     []string
	seq       int
	createErr error
	updateErr error
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{items: map[string]*models.TrainingSession{}}
}

func (r *sessionRepoStub) put(session models.TrainingSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[session.ID] = &session
}

func (r *sessionRepoStub) GetByID(_ context.Context, id string) (*models.TrainingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.items[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (r *sessionRepoStub) List(_ context.Context, filter models.TrainingSessionFilter) ([]models.TrainingSession, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TrainingSession
	for _, s := range r.items {
		if filter.CompetitorID != "" && s.CompetitorID != filter.CompetitorID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *sessionRepoStub) Create(_ context.Context, session *models.TrainingSession) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	session.ID = fmt.Sprintf("session-%d", r.seq)
	clone := *session
	r.items[session.ID] = &clone
	return nil
}

func (r *sessionRepoStub) Update(_ context.Context, session *models.TrainingSession, expected time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[session.ID]
	if !ok || !stored.UpdatedAt.Equal(expected) {
		return sql.ErrNoRows
	}
	clone := *session
	r.items[session.ID] = &clone
	return nil
}

func (r *sessionRepoStub) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, id)
	return nil
}

func (r *sessionRepoStub) LockCompetitorDay(_ context.Context, competitorID string, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = append(r.locks, competitorID+":"+date.Format(models.TrainingDateLayout))
	return nil
}

func (r *sessionRepoStub) GetDailyHours(_ context.Context, competitorID string, date time.Time, excludeSessionID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total float64
	for _, s := range r.items {
		if s.CompetitorID != competitorID || !s.TrainingDate.Equal(models.TruncateToDate(date)) || s.ID == excludeSessionID {
			continue
		}
		if s.CountsTowardDailyLimit() {
			total += s.Hours.Hours()
		}
	}
	return total, nil
}

func (r *sessionRepoStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type evidenceRepoStub struct {
	mu        sync.Mutex
	items     map[string]*models.Evidence
	createErr error
}

func newEvidenceRepoStub(items ...models.Evidence) *evidenceRepoStub {
	repo := &evidenceRepoStub{items: map[string]*models.Evidence{}}
	for i := range items {
		item := items[i]
		repo.items[item.ID] = &item
	}
	return repo
}

func (r *evidenceRepoStub) Create(_ context.Context, evidence *models.Evidence) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *evidence
	r.items[evidence.ID] = &clone
	return nil
}

func (r *evidenceRepoStub) GetByID(_ context.Context, id string) (*models.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.items[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (r *evidenceRepoStub) ListByTraining(_ context.Context, trainingID string) ([]models.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Evidence
	for _, e := range r.items {
		if e.TrainingID == trainingID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *evidenceRepoStub) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, id)
	return nil
}

// txStub serialises callbacks the way the advisory lock does in postgres.
type txStub struct {
	mu    sync.Mutex
	calls int
}

func (t *txStub) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return fn(ctx)
}

type invalidatorStub struct {
	mu          sync.Mutex
	competitors []string
}

func (i *invalidatorStub) InvalidateCompetitor(_ context.Context, competitorID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.competitors = append(i.competitors, competitorID)
}

type cleanerStub struct {
	keys []string
}

func (c *cleanerStub) Schedule(keys ...string) {
	c.keys = append(c.keys, keys...)
}

type objectStoreStub struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	deleted []string
}

func newObjectStoreStub() *objectStoreStub {
	return &objectStoreStub{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *objectStoreStub) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return key, nil
}

func (s *objectStoreStub) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *objectStoreStub) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}
