package constraints

import (
	"context"
	"fmt"

	"github.com/okian/otv/internal/domain/model"
	"github.com/okian/otv/internal/domain/pass"
	"github.com/okian/otv/pkg/logger"
	"github.com/okian/otv/pkg/metrics"
)

// Rejection pairs a candidate with the first rule it failed.
type Rejection struct {
	Candidate model.Candidate `json:"candidate"`
	Reason    string          `json:"reason"`
}

// Classifier splits a candidate set into nominable and rejected candidates
// right before a nomination round, re-reading the live values that can
// change between validity passes.
type Classifier struct {
	chain Chain
	options
}

// NewClassifier creates a Classifier over chain.
func NewClassifier(chain Chain, opts ...Option) *Classifier {
	c := &Classifier{chain: chain, options: buildOptions(opts)}
	c.log = c.log.Named("classifier")
	return c
}

// ProcessCandidates returns the candidates that pass every rule, in input
// order, and the ones that do not together with their first failing reason.
func (cl *Classifier) ProcessCandidates(ctx context.Context, candidates []model.Candidate) (good []model.Candidate, bad []Rejection) {
	reasons := make([]string, len(candidates))
	done := make([]bool, len(candidates))
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}

	runner := pass.New("classify", pass.WithLogger(cl.log), pass.WithParallelism(cl.parallelism), pass.WithClock(cl.now))
	label := func(i int) string { return candidateLabel(candidates[i]) }
	if err := pass.Each(ctx, runner, idx, label, func(ctx context.Context, i int) {
		reasons[i] = cl.classify(ctx, &candidates[i])
		done[i] = true
	}); err != nil {
		cl.log.Warn(ctx, "classification interrupted", logger.Error(err))
	}

	for i, c := range candidates {
		if done[i] && reasons[i] == "" {
			good = append(good, c)
			metrics.RecordClassification("good")
			continue
		}
		reason := reasons[i]
		if !done[i] {
			reason = fmt.Sprintf("%s was not classified: %v", c.Name, ctx.Err())
		}
		bad = append(bad, Rejection{Candidate: c, Reason: reason})
		metrics.RecordClassification("bad")
	}
	return good, bad
}

// classify returns the first disqualifying reason, or "" when c is nominable.
func (cl *Classifier) classify(ctx context.Context, c *model.Candidate) string {
	log := cl.log.With(logger.String("stash", c.Stash), logger.String("name", c.Name))

	commission, err := cl.chain.GetCommission(ctx, c.Stash)
	if err != nil {
		log.Warn(ctx, "commission lookup failed", logger.Error(err))
		return fmt.Sprintf("%s commission could not be read, validator likely withdrew intention: %v", c.Name, err)
	}
	if commission > cl.settings.Commission {
		return commissionDetail(c.Name, commission, cl.settings.Commission)
	}

	if !c.SkipSelfStake {
		tokens, err := selfStake(ctx, cl.chain, c.Stash)
		if err != nil {
			log.Warn(ctx, "self stake lookup failed", logger.Error(err))
			return fmt.Sprintf("%s self stake could not be read: %v", c.Name, err)
		}
		if tokens < cl.settings.MinSelfStake {
			return selfStakeDetail(c.Name, tokens, cl.settings.MinSelfStake)
		}
	}

	if !cl.settings.SkipStakedDestination {
		staked, err := cl.chain.DestinationIsStaked(ctx, c.Stash)
		if err != nil {
			log.Warn(ctx, "reward destination lookup failed", logger.Error(err))
			return fmt.Sprintf("%s reward destination could not be read: %v", c.Name, err)
		}
		if !staked {
			return fmt.Sprintf("%s does not have reward destination as Staked", c.Name)
		}
	}

	if exceedsOffline(c) {
		return fmt.Sprintf("%s has been offline for %s this week, above the %s allowed", c.Name, c.OfflineAccum, offlineCeiling())
	}
	return ""
}
