// Package reputation queries the secondary network's candidate service for
// a candidate's rank.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/otv/internal/domain/model"
)

// ErrUnexpectedStatus wraps a non-success answer from the service.
var ErrUnexpectedStatus = errors.New("unexpected reputation service status")

// Client fetches candidate ranks.
type Client struct {
	base string
	http *http.Client
}

// New creates a Client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Rank returns the rank recorded for stash.
func (c *Client) Rank(ctx context.Context, stash string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/candidate/"+url.PathEscape(stash), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rank of %s: %w", stash, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("rank of %s: %w", stash, model.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var out struct {
		Rank int `json:"rank"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode rank of %s: %w", stash, err)
	}
	return out.Rank, nil
}
