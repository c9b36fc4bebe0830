// Package service wires the validity checker, scorer and classifier to their
// collaborators, runs the periodic passes and serves the read operations the
// HTTP API depends on.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/otv/internal/adapters/chain"
	repository "github.com/okian/otv/internal/adapters/repository"
	"github.com/okian/otv/internal/adapters/reputation"
	"github.com/okian/otv/internal/config"
	"github.com/okian/otv/internal/domain/constraints"
	"github.com/okian/otv/internal/domain/model"
	"github.com/okian/otv/internal/domain/scoring"
	"github.com/okian/otv/pkg/logger"
)

// ErrNotStarted is returned by passes run before Open.
var ErrNotStarted = errors.New("service not started")

// Chain is everything the passes ask of the chain.
type Chain interface {
	constraints.Chain
	scoring.Chain
}

// Service runs the validator-selection passes.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config
	log logger.Logger
	now func() time.Time

	// Collaborators; injected ones win over those built from cfg.
	store repository.Store
	chain Chain
	rep   constraints.Reputation

	checker    *constraints.Checker
	classifier *constraints.Classifier
	scorer     *scoring.Scorer

	sched  *cron.Cron
	cancel context.CancelFunc

	opened  bool
	started bool

	lastValidity   time.Time
	lastValidCount int
	lastTotal      int
	lastScoring    time.Time
	lastScored     int
	lastSession    uint32
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStore replaces the store selected by store_backend.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithChain replaces the HTTP chain provider.
func WithChain(c Chain) Option {
	return func(s *Service) {
		s.chain = c
	}
}

// WithReputation replaces the reputation client built from reputation_url.
func WithReputation(r constraints.Reputation) Option {
	return func(s *Service) {
		s.rep = r
	}
}

// WithClock overrides the time source of every pass.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service from cfg.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg: cfg,
		log: logger.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds the store, the chain client and the domain components. It is
// idempotent and enough for running passes by hand.
func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	weights, err := scoring.WeightsFromConfig(s.cfg.Weights)
	if err != nil {
		return fmt.Errorf("weights: %w", err)
	}

	if s.store == nil {
		st, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = st
	}
	if s.chain == nil {
		s.chain = chain.New(chain.Opts{
			Endpoints:       s.cfg.ChainEndpoints,
			Timeout:         s.cfg.ChainTimeout,
			RPS:             s.cfg.ChainRPS,
			Burst:           s.cfg.ChainBurst,
			BreakerFailures: s.cfg.ChainBreakerFailures,
			BreakerCooldown: s.cfg.ChainBreakerCooldown,
			CacheTTL:        s.cfg.ChainCacheTTL,
			Logger:          s.log,
		})
	}
	if s.rep == nil && s.cfg.ReputationURL != "" {
		s.rep = reputation.New(s.cfg.ReputationURL, s.cfg.ReputationTimeout)
	}

	copts := []constraints.Option{
		constraints.WithSettings(settingsFrom(s.cfg)),
		constraints.WithLogger(s.log.Named("validity")),
		constraints.WithClock(s.now),
		constraints.WithParallelism(s.cfg.Parallelism),
	}
	if s.rep != nil {
		copts = append(copts, constraints.WithReputation(s.rep))
	}
	s.checker = constraints.New(s.chain, s.store, copts...)
	s.classifier = constraints.NewClassifier(s.chain, copts...)
	s.scorer = scoring.New(s.chain, s.store,
		scoring.WithWeights(weights),
		scoring.WithBlacklist(s.cfg.ProviderBlacklist),
		scoring.WithLogger(s.log.Named("scoring")),
		scoring.WithClock(s.now),
		scoring.WithParallelism(s.cfg.Parallelism),
	)

	s.opened = true
	s.log.Info(ctx, "service opened",
		logger.String("store", s.cfg.StoreBackend),
		logger.Int("endpoints", len(s.cfg.ChainEndpoints)),
		logger.Int("parallelism", s.cfg.Parallelism),
		logger.Bool("secondary_rank", s.rep != nil),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	switch s.cfg.StoreBackend {
	case "redis":
		st, err := repository.Dial(ctx, s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB,
			repository.WithLogger(s.log.Named("store")))
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return st, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

func settingsFrom(cfg *config.Config) constraints.Settings {
	return constraints.Settings{
		SkipConnectionTime:     cfg.SkipConnectionTime,
		SkipIdentity:           cfg.SkipIdentity,
		SkipClientUpgrade:      cfg.SkipClientUpgrade,
		SkipUnclaimed:          cfg.SkipUnclaimed,
		SkipStakedDestination:  cfg.SkipStakedDestination,
		MinSelfStake:           cfg.MinSelfStake,
		Commission:             cfg.Commission,
		UnclaimedEraThreshold:  cfg.UnclaimedEraThreshold,
		MinConnectionTime:      cfg.MinConnectionTime,
		ClientUpgradeGrace:     cfg.ClientUpgradeGrace,
		ForcedClientVersion:    cfg.ForcedClientVersion,
		ProviderBlacklist:      cfg.ProviderBlacklist,
		SecondaryRankThreshold: cfg.SecondaryRankThreshold,
	}
}

// Start opens the service and schedules the validity and scoring passes.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Open(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cl := cronLogger{ctx: runCtx, log: s.log.Named("cron")}
	sched := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"validity", s.cfg.ValiditySchedule, func(ctx context.Context) error { _, err := s.RunValidity(ctx); return err }},
		{"scoring", s.cfg.ScoringSchedule, func(ctx context.Context) error { _, err := s.RunScoring(ctx); return err }},
	}
	for _, j := range jobs {
		if j.spec == "" {
			s.log.Info(ctx, "pass not scheduled", logger.String("pass", j.name))
			continue
		}
		if _, err := sched.AddFunc(j.spec, func() {
			if err := j.run(runCtx); err != nil {
				s.log.Error(runCtx, "scheduled pass failed", logger.String("pass", j.name), logger.Error(err))
			}
		}); err != nil {
			cancel()
			return fmt.Errorf("schedule %s pass %q: %w", j.name, j.spec, err)
		}
	}

	sched.Start()
	s.sched = sched
	s.cancel = cancel
	s.started = true
	s.log.Info(ctx, "service started",
		logger.String("validity_schedule", s.cfg.ValiditySchedule),
		logger.String("scoring_schedule", s.cfg.ScoringSchedule),
	)
	return nil
}

// Stop cancels running passes, waits for them and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	sched, cancel := s.sched, s.cancel
	s.sched, s.cancel = nil, nil
	s.started = false
	s.mu.Unlock()

	// Running jobs take s.mu when they finish, so wait unlocked.
	if sched != nil {
		cancel()
		<-sched.Stop().Done()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn(context.Background(), "store close failed", logger.Error(err))
		}
	}
	s.opened = false
	s.log.Info(context.Background(), "service stopped")
}

func (s *Service) components() (*constraints.Checker, *scoring.Scorer, *constraints.Classifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.opened {
		return nil, nil, nil, ErrNotStarted
	}
	return s.checker, s.scorer, s.classifier, nil
}

// RunValidity runs one validity pass over every candidate and returns the
// number found valid.
func (s *Service) RunValidity(ctx context.Context) (int, error) {
	checker, _, _, err := s.components()
	if err != nil {
		return 0, err
	}
	valid, err := checker.CheckAllCandidates(ctx)
	if err != nil {
		return valid, fmt.Errorf("validity pass: %w", err)
	}
	total := 0
	if st, err := s.readStore(); err == nil {
		if all, err := st.AllCandidates(ctx); err == nil {
			total = len(all)
		}
	}

	s.mu.Lock()
	s.lastValidity = s.now()
	s.lastValidCount = valid
	s.lastTotal = total
	s.mu.Unlock()
	return valid, nil
}

// RunScoring scores every valid candidate for the current session.
func (s *Service) RunScoring(ctx context.Context) ([]model.ScoreRecord, error) {
	_, scorer, _, err := s.components()
	if err != nil {
		return nil, err
	}
	records, err := scorer.ScoreCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("scoring pass: %w", err)
	}

	s.mu.Lock()
	s.lastScoring = s.now()
	s.lastScored = len(records)
	if len(records) > 0 {
		s.lastSession = records[0].Session
	}
	s.mu.Unlock()
	return records, nil
}

// Classify splits candidates into those fit for the current nomination round
// and rejections with a reason.
func (s *Service) Classify(ctx context.Context, candidates []model.Candidate) ([]model.Candidate, []constraints.Rejection, error) {
	_, _, classifier, err := s.components()
	if err != nil {
		return nil, nil, err
	}
	good, bad := classifier.ProcessCandidates(ctx, candidates)
	return good, bad, nil
}

func (s *Service) readStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.opened {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Candidates lists the roster.
func (s *Service) Candidates(ctx context.Context, validOnly bool) ([]model.Candidate, error) {
	st, err := s.readStore()
	if err != nil {
		return nil, err
	}
	if validOnly {
		return st.ValidCandidates(ctx)
	}
	return st.AllCandidates(ctx)
}

// Candidate returns one roster entry.
func (s *Service) Candidate(ctx context.Context, stash string) (model.Candidate, error) {
	st, err := s.readStore()
	if err != nil {
		return model.Candidate{}, err
	}
	return st.Candidate(ctx, stash)
}

// Score returns the score of stash in session; 0 selects the latest round.
func (s *Service) Score(ctx context.Context, stash string, session uint32) (model.ScoreRecord, error) {
	st, err := s.readStore()
	if err != nil {
		return model.ScoreRecord{}, err
	}
	if session == 0 {
		meta, err := st.LatestValidatorScoreMetadata(ctx)
		if err != nil {
			return model.ScoreRecord{}, err
		}
		session = meta.Session
	}
	return st.GetValidatorScore(ctx, stash, session)
}

// ScoreMetadata returns the snapshot of session; 0 selects the latest round.
func (s *Service) ScoreMetadata(ctx context.Context, session uint32) (model.ScoreMetadata, error) {
	st, err := s.readStore()
	if err != nil {
		return model.ScoreMetadata{}, err
	}
	if session == 0 {
		return st.LatestValidatorScoreMetadata(ctx)
	}
	return st.GetValidatorScoreMetadata(ctx, session)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(_ context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"storeBackend": s.cfg.StoreBackend,
		"parallelism":  s.cfg.Parallelism,
		"candidates":   s.lastTotal,
		"valid":        s.lastValidCount,
		"scored":       s.lastScored,
		"session":      s.lastSession,
	}
	if !s.lastValidity.IsZero() {
		stats["lastValidityPass"] = s.lastValidity
	}
	if !s.lastScoring.IsZero() {
		stats["lastScoringPass"] = s.lastScoring
	}
	return stats
}
