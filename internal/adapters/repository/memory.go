package repository

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/okian/otv/internal/domain/model"
)

type scoreKey struct {
	stash   string
	session uint32
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	candidates *xsync.Map[string, model.Candidate]
	locations  *xsync.Map[string, model.Location]
	stakes     *xsync.Map[string, model.NominatorStake]
	nominators *xsync.Map[string, model.Nominator]
	scores     *xsync.Map[scoreKey, model.ScoreRecord]
	metadata   *xsync.Map[uint32, model.ScoreMetadata]

	release       atomic.Pointer[model.Release]
	latestSession atomic.Pointer[uint32]
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: xsync.NewMap[string, model.Candidate](),
		locations:  xsync.NewMap[string, model.Location](),
		stakes:     xsync.NewMap[string, model.NominatorStake](),
		nominators: xsync.NewMap[string, model.Nominator](),
		scores:     xsync.NewMap[scoreKey, model.ScoreRecord](),
		metadata:   xsync.NewMap[uint32, model.ScoreMetadata](),
	}
}

// UpsertCandidate implements Store.
func (s *MemoryStore) UpsertCandidate(_ context.Context, c model.Candidate) error {
	if c.Stash == "" {
		return ErrEmptyStash
	}
	c = cloneCandidate(c)
	s.candidates.Compute(c.Stash, func(old model.Candidate, loaded bool) (model.Candidate, xsync.ComputeOp) {
		if loaded {
			return mergeVerdicts(c, old), xsync.UpdateOp
		}
		return c, xsync.UpdateOp
	})
	return nil
}

// Candidate implements Store.
func (s *MemoryStore) Candidate(_ context.Context, stash string) (model.Candidate, error) {
	c, ok := s.candidates.Load(stash)
	if !ok {
		return model.Candidate{}, notFound("candidate", stash)
	}
	return cloneCandidate(c), nil
}

// AllCandidates implements Store. Candidates are ordered by stash.
func (s *MemoryStore) AllCandidates(_ context.Context) ([]model.Candidate, error) {
	return s.collect(func(model.Candidate) bool { return true }), nil
}

// ValidCandidates implements Store.
func (s *MemoryStore) ValidCandidates(_ context.Context) ([]model.Candidate, error) {
	return s.collect(func(c model.Candidate) bool { return c.Valid }), nil
}

func (s *MemoryStore) collect(keep func(model.Candidate) bool) []model.Candidate {
	out := make([]model.Candidate, 0, s.candidates.Size())
	s.candidates.Range(func(_ string, c model.Candidate) bool {
		if keep(c) {
			out = append(out, cloneCandidate(c))
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Stash < out[j].Stash })
	return out
}

// update applies fn to an existing candidate.
func (s *MemoryStore) update(stash string, fn func(*model.Candidate)) error {
	_, ok := s.candidates.Compute(stash, func(old model.Candidate, loaded bool) (model.Candidate, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		c := cloneCandidate(old)
		fn(&c)
		return c, xsync.UpdateOp
	})
	if !ok {
		return notFound("candidate", stash)
	}
	return nil
}

// SetInvalidity implements Store.
func (s *MemoryStore) SetInvalidity(_ context.Context, stash string, r model.InvalidityRecord) error {
	return s.update(stash, func(c *model.Candidate) { c.Invalidity.Set(r) })
}

// SetValid implements Store.
func (s *MemoryStore) SetValid(_ context.Context, stash string, valid bool) error {
	return s.update(stash, func(c *model.Candidate) { c.Valid = valid })
}

// SetLastValid implements Store.
func (s *MemoryStore) SetLastValid(_ context.Context, stash string, at time.Time) error {
	return s.update(stash, func(c *model.Candidate) { c.LastValid = at })
}

// SetCandidateLocation implements Store.
func (s *MemoryStore) SetCandidateLocation(_ context.Context, stash string, loc model.Location) error {
	if stash == "" {
		return ErrEmptyStash
	}
	s.locations.Store(stash, loc)
	return nil
}

// GetCandidateLocation implements Store.
func (s *MemoryStore) GetCandidateLocation(_ context.Context, stash string) (model.Location, error) {
	loc, ok := s.locations.Load(stash)
	if !ok {
		return model.Location{}, notFound("location", stash)
	}
	return loc, nil
}

// SetLatestRelease implements Store.
func (s *MemoryStore) SetLatestRelease(_ context.Context, r model.Release) error {
	s.release.Store(&r)
	return nil
}

// GetLatestRelease implements Store.
func (s *MemoryStore) GetLatestRelease(_ context.Context) (model.Release, error) {
	r := s.release.Load()
	if r == nil {
		return model.Release{}, notFound("release", "latest")
	}
	return *r, nil
}

// SetNominatorStake implements Store. An older era never replaces a newer one.
func (s *MemoryStore) SetNominatorStake(_ context.Context, ns model.NominatorStake) error {
	if ns.Stash == "" {
		return ErrEmptyStash
	}
	s.stakes.Compute(ns.Stash, func(old model.NominatorStake, loaded bool) (model.NominatorStake, xsync.ComputeOp) {
		if loaded && old.Era > ns.Era {
			return old, xsync.CancelOp
		}
		return ns, xsync.UpdateOp
	})
	return nil
}

// GetLatestNominatorStake implements Store.
func (s *MemoryStore) GetLatestNominatorStake(_ context.Context, stash string) (*model.NominatorStake, error) {
	ns, ok := s.stakes.Load(stash)
	if !ok {
		return nil, notFound("nominator stake", stash)
	}
	return &ns, nil
}

// UpsertNominator implements Store.
func (s *MemoryStore) UpsertNominator(_ context.Context, n model.Nominator) error {
	if n.Address == "" {
		return fmt.Errorf("nominator: %w", ErrEmptyStash)
	}
	s.nominators.Store(n.Address, n)
	return nil
}

// AllNominators implements Store.
func (s *MemoryStore) AllNominators(_ context.Context) ([]model.Nominator, error) {
	out := make([]model.Nominator, 0, s.nominators.Size())
	s.nominators.Range(func(_ string, n model.Nominator) bool {
		out = append(out, n)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// SetValidatorScore implements Store.
func (s *MemoryStore) SetValidatorScore(_ context.Context, r model.ScoreRecord) error {
	if r.Address == "" {
		return ErrEmptyStash
	}
	s.scores.Store(scoreKey{r.Address, r.Session}, r)
	return nil
}

// GetValidatorScore implements Store.
func (s *MemoryStore) GetValidatorScore(_ context.Context, stash string, session uint32) (model.ScoreRecord, error) {
	r, ok := s.scores.Load(scoreKey{stash, session})
	if !ok {
		return model.ScoreRecord{}, notFound("score", fmt.Sprintf("%s/%d", stash, session))
	}
	return r, nil
}

// SetValidatorScoreMetadata implements Store.
func (s *MemoryStore) SetValidatorScoreMetadata(_ context.Context, m model.ScoreMetadata) error {
	s.metadata.Store(m.Session, m)
	for {
		cur := s.latestSession.Load()
		if cur != nil && *cur >= m.Session {
			return nil
		}
		session := m.Session
		if s.latestSession.CompareAndSwap(cur, &session) {
			return nil
		}
	}
}

// GetValidatorScoreMetadata implements Store.
func (s *MemoryStore) GetValidatorScoreMetadata(_ context.Context, session uint32) (model.ScoreMetadata, error) {
	m, ok := s.metadata.Load(session)
	if !ok {
		return model.ScoreMetadata{}, notFound("score metadata", fmt.Sprint(session))
	}
	return m, nil
}

// LatestValidatorScoreMetadata implements Store.
func (s *MemoryStore) LatestValidatorScoreMetadata(ctx context.Context) (model.ScoreMetadata, error) {
	cur := s.latestSession.Load()
	if cur == nil {
		return model.ScoreMetadata{}, notFound("score metadata", "latest")
	}
	return s.GetValidatorScoreMetadata(ctx, *cur)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
