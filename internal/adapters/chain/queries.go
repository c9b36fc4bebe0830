package chain

import (
	"context"
	"fmt"

	"github.com/okian/otv/internal/domain/model"
)

// GetValidators returns the stashes that currently declare an intention to
// validate.
func (c *Client) GetValidators(ctx context.Context) ([]string, error) {
	out, err := cachedQuery[struct {
		Validators []string `json:"validators"`
	}](ctx, c, validatorsPath)
	if err != nil {
		return nil, err
	}
	return out.Validators, nil
}

// GetActiveEraIndex returns the active era.
func (c *Client) GetActiveEraIndex(ctx context.Context) (uint32, error) {
	out, err := query[struct {
		Era uint32 `json:"era"`
	}](ctx, c, activeEraPath)
	if err != nil {
		return 0, err
	}
	return out.Era, nil
}

// GetSession returns the current session index.
func (c *Client) GetSession(ctx context.Context) (uint32, error) {
	out, err := query[struct {
		Session uint32 `json:"session"`
	}](ctx, c, sessionPath)
	if err != nil {
		return 0, err
	}
	return out.Session, nil
}

// GetDenom returns how many base units make one token.
func (c *Client) GetDenom(ctx context.Context) (float64, error) {
	out, err := cachedQuery[struct {
		Denom float64 `json:"denom"`
	}](ctx, c, denomPath)
	if err != nil {
		return 0, err
	}
	return out.Denom, nil
}

// GetCommission returns the validator's commission in percent.
func (c *Client) GetCommission(ctx context.Context, stash string) (float64, error) {
	out, err := query[struct {
		Commission float64 `json:"commission"`
	}](ctx, c, fmt.Sprintf(commissionPath, escape(stash)))
	if err != nil {
		return 0, err
	}
	return out.Commission, nil
}

// GetBondedAmount returns the stash's bonded amount in base units.
func (c *Client) GetBondedAmount(ctx context.Context, stash string) (float64, error) {
	out, err := query[struct {
		Bonded float64 `json:"bonded"`
	}](ctx, c, fmt.Sprintf(bondedPath, escape(stash)))
	if err != nil {
		return 0, err
	}
	return out.Bonded, nil
}

// GetBlocked reports whether the validator blocks external nominations.
func (c *Client) GetBlocked(ctx context.Context, stash string) (bool, error) {
	out, err := query[struct {
		Blocked bool `json:"blocked"`
	}](ctx, c, fmt.Sprintf(blockedPath, escape(stash)))
	if err != nil {
		return false, err
	}
	return out.Blocked, nil
}

// HasIdentity reports whether the stash, or its parent identity, is set and
// judged reasonable or known good by a registrar.
func (c *Client) HasIdentity(ctx context.Context, stash string) (bool, bool, error) {
	out, err := cachedQuery[struct {
		Has      bool `json:"has"`
		Verified bool `json:"verified"`
	}](ctx, c, fmt.Sprintf(identityPath, escape(stash)))
	if err != nil {
		return false, false, err
	}
	return out.Has, out.Has && out.Verified, nil
}

// DestinationIsStaked reports whether rewards are paid back into the bond.
func (c *Client) DestinationIsStaked(ctx context.Context, stash string) (bool, error) {
	out, err := query[struct {
		Destination string `json:"destination"`
	}](ctx, c, fmt.Sprintf(destinationPath, escape(stash)))
	if err != nil {
		return false, err
	}
	return out.Destination == "Staked", nil
}

// GetNextKeys returns the session keys queued for the next session.
func (c *Client) GetNextKeys(ctx context.Context, stash string) (model.SessionKeys, error) {
	return query[model.SessionKeys](ctx, c, fmt.Sprintf(nextKeysPath, escape(stash)))
}
