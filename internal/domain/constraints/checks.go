package constraints

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/mod/semver"

	"github.com/okian/otv/internal/domain/model"
	"github.com/okian/otv/pkg/logger"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

func (k *Checker) checkOnline(_ context.Context, c *model.Candidate) (bool, string, error) {
	if c.OnlineSince.IsZero() {
		return false, fmt.Sprintf("%s offline. Offline since %s", c.Name, c.OfflineSince.UTC().Format("2006-01-02 15:04:05")), nil
	}
	return true, "", nil
}

func (k *Checker) checkValidateIntention(ctx context.Context, c *model.Candidate) (bool, string, error) {
	validators, err := k.chain.GetValidators(ctx)
	if err != nil {
		return false, "", fmt.Errorf("get validators: %w", err)
	}
	if !mapset.NewSet(validators...).Contains(c.Stash) {
		return false, fmt.Sprintf("%s does not have a validate intention", c.Name), nil
	}
	return true, "", nil
}

func (k *Checker) checkClientUpgrade(ctx context.Context, c *model.Candidate) (bool, string, error) {
	if k.settings.SkipClientUpgrade || c.IsAlternateClient() {
		return true, "", nil
	}

	required := k.settings.ForcedClientVersion
	if required == "" {
		release, err := k.store.GetLatestRelease(ctx)
		if errors.Is(err, model.ErrNotFound) {
			return true, "", nil
		}
		if err != nil {
			return false, "", fmt.Errorf("latest release: %w", err)
		}
		if k.now().Before(release.PublishedAt.Add(k.settings.ClientUpgradeGrace)) {
			return true, "", nil
		}
		required = release.Name
	}

	want, err := canonicalVersion(required)
	if err != nil {
		return false, "", err
	}
	have, err := canonicalVersion(c.Version)
	if err != nil {
		return false, fmt.Sprintf("%s reports an unrecognised version %q", c.Name, c.Version), nil
	}
	if semver.Compare(have, want) < 0 {
		return false, fmt.Sprintf("%s is not on the latest client version. Running %s, required %s", c.Name, have, want), nil
	}
	return true, "", nil
}

// canonicalVersion extracts the first x.y.z from raw as a "vx.y.z" semver.
func canonicalVersion(raw string) (string, error) {
	m := versionPattern.FindString(raw)
	if m == "" {
		return "", fmt.Errorf("%w: %q", ErrUnparsableVersion, raw)
	}
	v := "v" + m
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrUnparsableVersion, raw)
	}
	return v, nil
}

func (k *Checker) checkConnectionTime(_ context.Context, c *model.Candidate) (bool, string, error) {
	if k.settings.SkipConnectionTime {
		return true, "", nil
	}
	if c.DiscoveredAt.IsZero() || k.now().Sub(c.DiscoveredAt) < k.settings.MinConnectionTime {
		return false, fmt.Sprintf("%s has not been connected for minimum length of %s", c.Name, k.settings.MinConnectionTime), nil
	}
	return true, "", nil
}

func (k *Checker) checkIdentity(ctx context.Context, c *model.Candidate) (bool, string, error) {
	if k.settings.SkipIdentity {
		return true, "", nil
	}
	has, verified, err := k.chain.HasIdentity(ctx, c.Stash)
	if err != nil {
		return false, "", fmt.Errorf("identity: %w", err)
	}
	switch {
	case !has:
		return false, fmt.Sprintf("%s does not have an identity set", c.Name), nil
	case !verified:
		return false, fmt.Sprintf("%s has an identity but is not verified", c.Name), nil
	}
	return true, "", nil
}

func (k *Checker) checkOffline(_ context.Context, c *model.Candidate) (bool, string, error) {
	if exceedsOffline(c) {
		pct := float64(c.OfflineAccum) / float64(offlineWindow) * 100
		return false, fmt.Sprintf("%s has been offline %.2f%% of this week (%s)", c.Name, pct, c.OfflineAccum), nil
	}
	return true, "", nil
}

func exceedsOffline(c *model.Candidate) bool {
	return c.OfflineAccum > offlineCeiling()
}

func (k *Checker) checkCommission(ctx context.Context, c *model.Candidate) (bool, string, error) {
	commission, err := k.chain.GetCommission(ctx, c.Stash)
	if err != nil {
		return false, "", fmt.Errorf("commission: %w", err)
	}
	if commission > k.settings.Commission {
		return false, commissionDetail(c.Name, commission, k.settings.Commission), nil
	}
	return true, "", nil
}

func commissionDetail(name string, set, allowed float64) string {
	return fmt.Sprintf("%s commission is set higher than the maximum allowed. Set: %.2f%% Allowed: %.2f%%", name, set, allowed)
}

func (k *Checker) checkSelfStake(ctx context.Context, c *model.Candidate) (bool, string, error) {
	if c.SkipSelfStake {
		return true, "", nil
	}
	tokens, err := selfStake(ctx, k.chain, c.Stash)
	if err != nil {
		return false, "", err
	}
	if tokens < k.settings.MinSelfStake {
		return false, selfStakeDetail(c.Name, tokens, k.settings.MinSelfStake), nil
	}
	return true, "", nil
}

// selfStake returns the candidate's bonded amount in whole tokens.
func selfStake(ctx context.Context, chain Chain, stash string) (float64, error) {
	bonded, err := chain.GetBondedAmount(ctx, stash)
	if err != nil {
		return 0, fmt.Errorf("bonded amount: %w", err)
	}
	denom, err := chain.GetDenom(ctx)
	if err != nil {
		return 0, fmt.Errorf("denom: %w", err)
	}
	if denom <= 0 {
		return 0, ErrInvalidDenom
	}
	return bonded / denom, nil
}

func selfStakeDetail(name string, bonded, minimum float64) string {
	return fmt.Sprintf("%s has less than the minimum amount bonded: %.2f is bonded, %.2f required", name, bonded, minimum)
}

func (k *Checker) checkUnclaimed(ctx context.Context, c *model.Candidate) (bool, string, error) {
	if k.settings.SkipUnclaimed || len(c.UnclaimedEras) == 0 {
		return true, "", nil
	}
	era, err := k.chain.GetActiveEraIndex(ctx)
	if err != nil {
		return false, "", fmt.Errorf("active era: %w", err)
	}
	limit := int64(era) - int64(k.settings.UnclaimedEraThreshold) - 1

	var stale []string
	for _, e := range c.UnclaimedEras {
		if int64(e) < limit {
			stale = append(stale, fmt.Sprint(e))
		}
	}
	if len(stale) > 0 {
		return false, fmt.Sprintf("%s has unclaimed eras: %s prior to era: %d", c.Name, strings.Join(stale, ", "), limit), nil
	}
	return true, "", nil
}

func (k *Checker) checkBlocked(ctx context.Context, c *model.Candidate) (bool, string, error) {
	blocked, err := k.chain.GetBlocked(ctx, c.Stash)
	if err != nil {
		return false, "", fmt.Errorf("blocked: %w", err)
	}
	if blocked {
		return false, fmt.Sprintf("%s blocks external nominations", c.Name), nil
	}
	return true, "", nil
}

// checkSecondaryRank consults the reputation service only for candidates
// with a secondary stash. A failed lookup does not count against them.
func (k *Checker) checkSecondaryRank(ctx context.Context, c *model.Candidate) (bool, string, error) {
	if c.SecondaryStash == "" || k.reputation == nil {
		return true, "", nil
	}
	rank, err := k.reputation.Rank(ctx, c.SecondaryStash)
	if err != nil {
		k.log.Warn(ctx, "secondary rank lookup failed",
			logger.String("stash", c.Stash),
			logger.String("name", c.Name),
			logger.Error(err))
		return true, "", nil
	}
	if rank < k.settings.SecondaryRankThreshold {
		return false, fmt.Sprintf("%s has a secondary network rank of %d, below the required %d", c.Name, rank, k.settings.SecondaryRankThreshold), nil
	}
	return true, "", nil
}

func (k *Checker) checkProvider(ctx context.Context, c *model.Candidate) (bool, string, error) {
	provider := c.Location.Provider
	loc, err := k.store.GetCandidateLocation(ctx, c.Stash)
	switch {
	case err == nil && loc.Provider != "":
		provider = loc.Provider
	case err != nil && !errors.Is(err, model.ErrNotFound):
		k.log.Warn(ctx, "location lookup failed, using candidate location",
			logger.String("stash", c.Stash),
			logger.Error(err))
	}
	if provider != "" && k.blacklist.Contains(provider) {
		return false, fmt.Sprintf("%s is on a banned provider: %s", c.Name, provider), nil
	}
	return true, "", nil
}

func (k *Checker) checkBeefy(ctx context.Context, c *model.Candidate) (bool, string, error) {
	keys, err := k.chain.GetNextKeys(ctx, c.Stash)
	if err != nil {
		return false, "", fmt.Errorf("next keys: %w", err)
	}
	if strings.HasPrefix(keys.Beefy, beefyPlaceholder) {
		return false, fmt.Sprintf("%s has not set a beefy key", c.Name), nil
	}
	return true, "", nil
}
