package scoring

import (
	"context"

	"github.com/okian/otv/internal/domain/model"
)

// Chain provides the session a scoring round is keyed by.
type Chain interface {
	GetSession(ctx context.Context) (uint32, error)
}

// Store provides the population and receives the score records.
type Store interface {
	ValidCandidates(ctx context.Context) ([]model.Candidate, error)
	AllNominators(ctx context.Context) ([]model.Nominator, error)
	// GetLatestNominatorStake returns model.ErrNotFound when nothing is known.
	GetLatestNominatorStake(ctx context.Context, stash string) (*model.NominatorStake, error)
	GetCandidateLocation(ctx context.Context, stash string) (model.Location, error)
	SetValidatorScore(ctx context.Context, record model.ScoreRecord) error
	SetValidatorScoreMetadata(ctx context.Context, meta model.ScoreMetadata) error
}
