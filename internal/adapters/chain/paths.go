package chain

import "net/url"

// Chain query paths served by the node sidecar.
const (
	validatorsPath = "/v1/validators"
	activeEraPath  = "/v1/era/active"
	sessionPath    = "/v1/session"
	denomPath      = "/v1/chain/denom"

	commissionPath  = "/v1/accounts/%s/commission"
	bondedPath      = "/v1/accounts/%s/bonded"
	blockedPath     = "/v1/accounts/%s/blocked"
	identityPath    = "/v1/accounts/%s/identity"
	destinationPath = "/v1/accounts/%s/reward-destination"
	nextKeysPath    = "/v1/accounts/%s/next-keys"
)

func escape(stash string) string { return url.PathEscape(stash) }
