package service

import (
	"context"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/mock"

	"github.com/clinicrecords/securelink-server/internal/model"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memTokenRepo is an in-memory SecureLinkTokenRepository with the same
// uniqueness and expiry semantics as the Postgres one.
type memTokenRepo struct {
	mu     sync.Mutex
	nextID int64
	byVal  map[string]*model.SecureLinkToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{byVal: map[string]*model.SecureLinkToken{}}
}

func (r *memTokenRepo) Create(_ context.Context, p model.CreateSecureLinkTokenParams) (*model.SecureLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byVal[p.TokenValue]; ok {
		return nil, &pq.Error{Code: "23505"}
	}
	r.nextID++
	t := &model.SecureLinkToken{
		ID:               r.nextID,
		PatientID:        p.PatientID,
		TokenValue:       p.TokenValue,
		TargetPathHint:   p.TargetPathHint,
		CreatedAt:        p.CreatedAt,
		ExpiresAt:        p.ExpiresAt,
		CreatedByStaffID: p.CreatedByStaffID,
	}
	r.byVal[p.TokenValue] = t
	cp := *t
	return &cp, nil
}

func (r *memTokenRepo) FindByValue(_ context.Context, v string) (*model.SecureLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byVal[v]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTokenRepo) ListByPatient(_ context.Context, patientID int64) ([]model.SecureLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.SecureLinkToken{}
	for _, t := range r.byVal {
		if t.PatientID == patientID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memTokenRepo) MarkUsed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byVal {
		if t.ID == id {
			t.Used = true
		}
	}
	return nil
}

func (r *memTokenRepo) DeleteByValue(_ context.Context, v string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byVal[v]; !ok {
		return 0, nil
	}
	delete(r.byVal, v)
	return 1, nil
}

func (r *memTokenRepo) DeleteByID(_ context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for v, t := range r.byVal {
		if t.ID == id {
			delete(r.byVal, v)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *memTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for v, t := range r.byVal {
		if !t.ExpiresAt.After(now) {
			delete(r.byVal, v)
			n++
		}
	}
	return n, nil
}

func (r *memTokenRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byVal)
}

// Mock repositories

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) Create(ctx context.Context, params model.CreateSecureLinkTokenParams) (*model.SecureLinkToken, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SecureLinkToken), args.Error(1)
}

func (m *mockTokenRepo) FindByValue(ctx context.Context, tokenValue string) (*model.SecureLinkToken, error) {
	args := m.Called(ctx, tokenValue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SecureLinkToken), args.Error(1)
}

func (m *mockTokenRepo) ListByPatient(ctx context.Context, patientID int64) ([]model.SecureLinkToken, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SecureLinkToken), args.Error(1)
}

func (m *mockTokenRepo) MarkUsed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTokenRepo) DeleteByValue(ctx context.Context, tokenValue string) (int64, error) {
	args := m.Called(ctx, tokenValue)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepo) DeleteByID(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockPatientRepo struct {
	mock.Mock
}

func (m *mockPatientRepo) FindByID(ctx context.Context, id int64) (*model.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Patient), args.Error(1)
}

type mockDocumentRepo struct {
	mock.Mock
}

func (m *mockDocumentRepo) FindForPatient(ctx context.Context, kind model.DocumentKind, id, patientID int64) (*model.Document, error) {
	args := m.Called(ctx, kind, id, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, kind model.DocumentKind, id int64) (*model.Document, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *mockDocumentRepo) ListByPatient(ctx context.Context, kind model.DocumentKind, patientID int64) ([]model.Document, error) {
	args := m.Called(ctx, kind, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

type mockAccessLogRepo struct {
	mock.Mock
}

func (m *mockAccessLogRepo) Create(ctx context.Context, params model.CreateAccessLogEntryParams) (*model.AccessLogEntry, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessLogEntry), args.Error(1)
}

func (m *mockAccessLogRepo) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]model.AccessLogEntry, int, error) {
	args := m.Called(ctx, patientID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.AccessLogEntry), args.Int(1), args.Error(2)
}

func (m *mockAccessLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockStaffUserRepo struct {
	mock.Mock
}

func (m *mockStaffUserRepo) FindByUsername(ctx context.Context, username string) (*model.StaffUser, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StaffUser), args.Error(1)
}

type mockStaffSessionRepo struct {
	mock.Mock
}

func (m *mockStaffSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.StaffSession, error) {
	args := m.Called(ctx, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StaffSession), args.Error(1)
}

func (m *mockStaffSessionRepo) Create(ctx context.Context, params model.CreateStaffSessionParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *mockStaffSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockStaffSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// stubLimiter answers every CheckLimit with its allow field and records keys.
type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) CheckLimit(_ context.Context, key string, _ int, window time.Duration) (bool, time.Time, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return false, time.Time{}, l.err
	}
	return l.allow, time.Now().Add(window), nil
}
