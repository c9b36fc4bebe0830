// Package constraints decides whether candidates are eligible for nomination.
//
// The Checker runs every eligibility rule for a candidate and records one
// invalidity record per rule. A rule that cannot be evaluated because the
// chain or a collaborator failed counts as not satisfied. The Classifier is
// the lighter pass run right before a nomination round; it stops at the first
// disqualifying reason.
package constraints

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/okian/otv/internal/domain/model"
	"github.com/okian/otv/internal/domain/pass"
	"github.com/okian/otv/pkg/logger"
	"github.com/okian/otv/pkg/metrics"
)

// checkFunc evaluates one rule. A failing rule returns valid=false with a
// human readable detail; err marks a rule that could not be evaluated.
type checkFunc func(ctx context.Context, c *model.Candidate) (valid bool, detail string, err error)

type namedCheck struct {
	kind model.InvalidityKind
	fn   checkFunc
}

// Checker runs the full battery of eligibility rules.
type Checker struct {
	chain Chain
	store Store
	options
	checks []namedCheck
}

// New creates a Checker over the given chain and store.
func New(chain Chain, store Store, opts ...Option) *Checker {
	c := &Checker{
		chain:   chain,
		store:   store,
		options: buildOptions(opts),
	}
	c.log = c.log.Named("checker")
	c.checks = []namedCheck{
		{model.KindOnline, c.checkOnline},
		{model.KindValidateIntention, c.checkValidateIntention},
		{model.KindClientUpgrade, c.checkClientUpgrade},
		{model.KindConnectionTime, c.checkConnectionTime},
		{model.KindIdentity, c.checkIdentity},
		{model.KindAccumulatedOffline, c.checkOffline},
		{model.KindCommission, c.checkCommission},
		{model.KindSelfStake, c.checkSelfStake},
		{model.KindUnclaimedRewards, c.checkUnclaimed},
		{model.KindBlocked, c.checkBlocked},
		{model.KindSecondaryRank, c.checkSecondaryRank},
		{model.KindProvider, c.checkProvider},
		{model.KindBeefy, c.checkBeefy},
	}
	return c
}

// CheckCandidate runs every rule for c, records each verdict on c and in the
// store, and returns whether all rules passed. It never stops early: a failed
// or erroring rule does not prevent the remaining ones from running.
func (k *Checker) CheckCandidate(ctx context.Context, c *model.Candidate) bool {
	valid := true
	for _, chk := range k.checks {
		if !k.run(ctx, c, chk) {
			valid = false
		}
	}

	c.Valid = valid
	if err := k.store.SetValid(ctx, c.Stash, valid); err != nil {
		k.storeFailed(ctx, c, "set_valid", err)
	}
	if valid {
		now := k.now()
		c.LastValid = now
		if err := k.store.SetLastValid(ctx, c.Stash, now); err != nil {
			k.storeFailed(ctx, c, "set_last_valid", err)
		}
	}
	return valid
}

// CheckAllCandidates checks the whole roster and returns how many candidates
// are valid. An error means the roster could not be read or ctx ended.
func (k *Checker) CheckAllCandidates(ctx context.Context) (int, error) {
	candidates, err := k.store.AllCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("load candidates: %w", err)
	}

	var valid atomic.Int64
	runner := pass.New("validity", pass.WithLogger(k.log), pass.WithParallelism(k.parallelism), pass.WithClock(k.now))
	err = pass.Each(ctx, runner, candidates, candidateLabel, func(ctx context.Context, c model.Candidate) {
		if k.CheckCandidate(ctx, &c) {
			valid.Add(1)
		}
	})

	n := int(valid.Load())
	metrics.UpdateCandidates(n, len(candidates))
	return n, err
}

// run evaluates one rule under a recover guard and persists its record.
func (k *Checker) run(ctx context.Context, c *model.Candidate, chk namedCheck) (valid bool) {
	check := string(chk.kind)
	log := k.log.With(logger.String("stash", c.Stash), logger.String("name", c.Name), logger.String("check", check))

	defer func() {
		if r := recover(); r != nil {
			valid = false
			metrics.RecordCheckError(check, "panic")
			metrics.RecordCheck(check, false)
			log.Error(ctx, "check panicked", logger.Any("panic", r))
			k.record(ctx, c, model.InvalidityRecord{
				Kind:      chk.kind,
				Valid:     false,
				Detail:    fmt.Sprintf("%s: %s check could not be evaluated", c.Name, check),
				UpdatedAt: k.now(),
			})
		}
	}()

	ok, detail, err := chk.fn(ctx, c)
	if err != nil {
		ok = false
		reason := "provider_error"
		if isRateLimited(err) {
			reason = "rate_limited"
		}
		metrics.RecordCheckError(check, reason)
		log.Warn(ctx, "check failed closed", logger.String("reason", reason), logger.Error(err))
		if detail == "" {
			detail = fmt.Sprintf("%s: %s check could not be evaluated: %v", c.Name, check, err)
		}
	}
	if ok {
		detail = ""
	} else if err == nil {
		log.Debug(ctx, "check not satisfied", logger.String("detail", detail))
	}

	metrics.RecordCheck(check, ok)
	k.record(ctx, c, model.InvalidityRecord{Kind: chk.kind, Valid: ok, Detail: detail, UpdatedAt: k.now()})
	return ok
}

func (k *Checker) record(ctx context.Context, c *model.Candidate, r model.InvalidityRecord) {
	c.Invalidity.Set(r)
	if err := k.store.SetInvalidity(ctx, c.Stash, r); err != nil {
		k.storeFailed(ctx, c, "set_invalidity", err)
	}
}

func (k *Checker) storeFailed(ctx context.Context, c *model.Candidate, op string, err error) {
	metrics.RecordStoreError(op)
	k.log.Error(ctx, "store write failed",
		logger.String("stash", c.Stash),
		logger.String("name", c.Name),
		logger.String("op", op),
		logger.Error(err))
}

// isRateLimited reports whether err belongs to the chain provider's
// failover handling rather than to the candidate.
func isRateLimited(err error) bool {
	return errors.Is(err, model.ErrRateLimited) || errors.Is(err, model.ErrEndpointsExhausted)
}

func candidateLabel(c model.Candidate) string {
	if c.Name == "" {
		return c.Stash
	}
	return c.Name
}
