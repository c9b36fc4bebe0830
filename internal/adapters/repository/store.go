// Package repository persists candidates, their eligibility verdicts and
// their scores.
package repository

import (
	"context"
	"time"

	"github.com/okian/otv/internal/domain/model"
)

// Store provides read/write access to the programme state. Lookups of
// unknown keys return an error wrapping model.ErrNotFound.
type Store interface {
	// UpsertCandidate creates or replaces a roster entry. Verdict fields
	// (Valid, LastValid, Invalidity) already stored are kept.
	UpsertCandidate(ctx context.Context, c model.Candidate) error
	Candidate(ctx context.Context, stash string) (model.Candidate, error)
	AllCandidates(ctx context.Context) ([]model.Candidate, error)
	ValidCandidates(ctx context.Context) ([]model.Candidate, error)

	// SetInvalidity replaces the candidate's record of r.Kind.
	SetInvalidity(ctx context.Context, stash string, r model.InvalidityRecord) error
	SetValid(ctx context.Context, stash string, valid bool) error
	SetLastValid(ctx context.Context, stash string, at time.Time) error

	SetCandidateLocation(ctx context.Context, stash string, loc model.Location) error
	GetCandidateLocation(ctx context.Context, stash string) (model.Location, error)

	SetLatestRelease(ctx context.Context, r model.Release) error
	GetLatestRelease(ctx context.Context) (model.Release, error)

	SetNominatorStake(ctx context.Context, ns model.NominatorStake) error
	GetLatestNominatorStake(ctx context.Context, stash string) (*model.NominatorStake, error)
	UpsertNominator(ctx context.Context, n model.Nominator) error
	AllNominators(ctx context.Context) ([]model.Nominator, error)

	// SetValidatorScore upserts the record keyed by (Address, Session).
	SetValidatorScore(ctx context.Context, r model.ScoreRecord) error
	GetValidatorScore(ctx context.Context, stash string, session uint32) (model.ScoreRecord, error)
	// SetValidatorScoreMetadata upserts the metadata keyed by Session.
	SetValidatorScoreMetadata(ctx context.Context, m model.ScoreMetadata) error
	GetValidatorScoreMetadata(ctx context.Context, session uint32) (model.ScoreMetadata, error)
	LatestValidatorScoreMetadata(ctx context.Context) (model.ScoreMetadata, error)

	Close() error
}

// mergeVerdicts copies the verdict fields of prev onto c.
func mergeVerdicts(c, prev model.Candidate) model.Candidate {
	c.Valid = prev.Valid
	c.LastValid = prev.LastValid
	c.Invalidity = prev.Invalidity.Clone()
	return c
}

// cloneCandidate returns a copy that shares no mutable state with c.
func cloneCandidate(c model.Candidate) model.Candidate {
	c.Invalidity = c.Invalidity.Clone()
	if c.UnclaimedEras != nil {
		c.UnclaimedEras = append([]uint32(nil), c.UnclaimedEras...)
	}
	if c.Identity != nil {
		id := *c.Identity
		c.Identity = &id
	}
	return c
}
