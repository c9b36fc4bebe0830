package constraints

import (
	"context"
	"time"

	"github.com/okian/otv/internal/domain/model"
)

// Chain is the live chain data the checks query. Every method reports
// failures as an explicit error; adapters wrap model.ErrRateLimited or
// model.ErrEndpointsExhausted when the endpoint is throttling.
type Chain interface {
	GetCommission(ctx context.Context, stash string) (float64, error)
	GetBondedAmount(ctx context.Context, stash string) (float64, error)
	GetBlocked(ctx context.Context, stash string) (bool, error)
	HasIdentity(ctx context.Context, stash string) (has, verified bool, err error)
	GetValidators(ctx context.Context) ([]string, error)
	GetActiveEraIndex(ctx context.Context) (uint32, error)
	GetDenom(ctx context.Context) (float64, error)
	DestinationIsStaked(ctx context.Context, stash string) (bool, error)
	GetNextKeys(ctx context.Context, stash string) (model.SessionKeys, error)
}

// Store is the persistence the checker reads the roster from and writes its
// verdicts to.
type Store interface {
	AllCandidates(ctx context.Context) ([]model.Candidate, error)
	SetInvalidity(ctx context.Context, stash string, record model.InvalidityRecord) error
	SetValid(ctx context.Context, stash string, valid bool) error
	SetLastValid(ctx context.Context, stash string, at time.Time) error
	// GetLatestRelease returns model.ErrNotFound when no release is known.
	GetLatestRelease(ctx context.Context) (model.Release, error)
	GetCandidateLocation(ctx context.Context, stash string) (model.Location, error)
}

// Reputation reports a candidate's rank on the secondary network.
type Reputation interface {
	Rank(ctx context.Context, stash string) (int, error)
}
