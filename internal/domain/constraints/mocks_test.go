package constraints_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/okian/otv/internal/domain/model"
)

var errWrite = errors.New("write refused")

// chainMock is a testify mock of constraints.Chain.
type chainMock struct{ mock.Mock }

func (m *chainMock) GetCommission(ctx context.Context, stash string) (float64, error) {
	args := m.Called(ctx, stash)
	return args.Get(0).(float64), args.Error(1)
}

func (m *chainMock) GetBondedAmount(ctx context.Context, stash string) (float64, error) {
	args := m.Called(ctx, stash)
	return args.Get(0).(float64), args.Error(1)
}

func (m *chainMock) GetBlocked(ctx context.Context, stash string) (bool, error) {
	args := m.Called(ctx, stash)
	return args.Bool(0), args.Error(1)
}

func (m *chainMock) HasIdentity(ctx context.Context, stash string) (bool, bool, error) {
	args := m.Called(ctx, stash)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func (m *chainMock) GetValidators(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *chainMock) GetActiveEraIndex(ctx context.Context) (uint32, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *chainMock) GetDenom(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func (m *chainMock) DestinationIsStaked(ctx context.Context, stash string) (bool, error) {
	args := m.Called(ctx, stash)
	return args.Bool(0), args.Error(1)
}

func (m *chainMock) GetNextKeys(ctx context.Context, stash string) (model.SessionKeys, error) {
	args := m.Called(ctx, stash)
	return args.Get(0).(model.SessionKeys), args.Error(1)
}

// newChain registers overrides first so they take precedence over the
// passing defaults registered afterwards.
func newChain(overrides func(m *chainMock)) *chainMock {
	m := &chainMock{}
	if overrides != nil {
		overrides(m)
	}
	x := mock.Anything
	m.On("GetCommission", x, x).Return(5.0, nil).Maybe()
	m.On("GetBondedAmount", x, x).Return(2e14, nil).Maybe()
	m.On("GetDenom", x).Return(1e10, nil).Maybe()
	m.On("GetBlocked", x, x).Return(false, nil).Maybe()
	m.On("HasIdentity", x, x).Return(true, true, nil).Maybe()
	m.On("GetValidators", x).Return([]string{"S1", "S2", "S3"}, nil).Maybe()
	m.On("GetActiveEraIndex", x).Return(uint32(100), nil).Maybe()
	m.On("DestinationIsStaked", x, x).Return(true, nil).Maybe()
	m.On("GetNextKeys", x, x).Return(model.SessionKeys{Beefy: "0x1234"}, nil).Maybe()
	return m
}

// reputationMock is a testify mock of constraints.Reputation.
type reputationMock struct{ mock.Mock }

func (m *reputationMock) Rank(ctx context.Context, stash string) (int, error) {
	args := m.Called(ctx, stash)
	return args.Int(0), args.Error(1)
}

// fakeStore keeps checker writes in memory.
type fakeStore struct {
	mu         sync.Mutex
	candidates []model.Candidate
	invalidity map[string]*model.InvalidityList
	valid      map[string]bool
	lastValid  map[string]time.Time
	release    *model.Release
	locations  map[string]model.Location
	failWrites bool
}

func newFakeStore(candidates ...model.Candidate) *fakeStore {
	return &fakeStore{
		candidates: candidates,
		invalidity: map[string]*model.InvalidityList{},
		valid:      map[string]bool{},
		lastValid:  map[string]time.Time{},
		locations:  map[string]model.Location{},
	}
}

func (s *fakeStore) AllCandidates(context.Context) ([]model.Candidate, error) {
	return append([]model.Candidate(nil), s.candidates...), nil
}

func (s *fakeStore) SetInvalidity(_ context.Context, stash string, r model.InvalidityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errWrite
	}
	l, ok := s.invalidity[stash]
	if !ok {
		l = &model.InvalidityList{}
		s.invalidity[stash] = l
	}
	l.Set(r)
	return nil
}

func (s *fakeStore) SetValid(_ context.Context, stash string, valid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errWrite
	}
	s.valid[stash] = valid
	return nil
}

func (s *fakeStore) SetLastValid(_ context.Context, stash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errWrite
	}
	s.lastValid[stash] = at
	return nil
}

func (s *fakeStore) GetLatestRelease(context.Context) (model.Release, error) {
	if s.release == nil {
		return model.Release{}, model.ErrNotFound
	}
	return *s.release, nil
}

func (s *fakeStore) GetCandidateLocation(_ context.Context, stash string) (model.Location, error) {
	loc, ok := s.locations[stash]
	if !ok {
		return model.Location{}, model.ErrNotFound
	}
	return loc, nil
}

func (s *fakeStore) records(stash string) *model.InvalidityList {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.invalidity[stash]; ok {
		return l
	}
	return &model.InvalidityList{}
}
