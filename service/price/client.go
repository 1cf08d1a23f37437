// Package price resolves USD valuations for mints and symbols, with an
// operator-maintained override file as fallback.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the Jupiter price API.
const DefaultBaseURL = "https://price.jup.ag/v6"

// wrappedSolMint prices as SOL.
const wrappedSolMint = "So11111111111111111111111111111111111111112"

// stableMints are pinned to $1 without a lookup.
var stableMints = map[string]float64{
	// USDC
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": 1.0,
	// USDT
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": 1.0,
}

// Client looks up USD prices. Lookup order: stablecoin shortcut, the
// Jupiter price API, then the manual override store. A total miss is
// reported as absent, never as an error; valuation is best-effort.
type Client struct {
	http    *retryablehttp.Client
	manual  *ManualStore
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a price client. manual may be nil to disable the
// override fallback.
func NewClient(manual *ManualStore, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 20 * time.Second
	rc.Logger = nil

	return &Client{
		http:    rc,
		manual:  manual,
		baseURL: DefaultBaseURL,
		logger:  logger,
	}
}

// SetBaseURL overrides the price API endpoint (used in tests).
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// USDPrice returns the USD price for a mint address or symbol, and
// whether a price was available.
func (c *Client) USDPrice(ctx context.Context, mintOrSymbol string) (float64, bool) {
	if p, ok := stableMints[mintOrSymbol]; ok {
		return p, true
	}

	id := mintOrSymbol
	if mintOrSymbol == wrappedSolMint || strings.EqualFold(mintOrSymbol, "SOL") {
		id = "SOL"
	}

	if p, err := c.fetchPrice(ctx, id); err == nil {
		return p, true
	} else {
		c.logger.DebugContext(ctx, "price API lookup failed, trying manual overrides",
			"id", id,
			"error", err,
		)
	}

	if c.manual != nil {
		if p, ok := c.manual.Get(mintOrSymbol); ok {
			return p, true
		}
	}
	return 0, false
}

// RefreshOverrides reloads the manual override file. Called at the
// start of every poll cycle.
func (c *Client) RefreshOverrides() {
	if c.manual != nil {
		c.manual.Refresh()
	}
}

func (c *Client) fetchPrice(ctx context.Context, id string) (float64, error) {
	reqURL := fmt.Sprintf("%s/price?ids=%s", c.baseURL, url.QueryEscape(id))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var body struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode price response: %w", err)
	}

	entry, ok := body.Data[id]
	if !ok || entry.Price == 0 {
		return 0, fmt.Errorf("no price for %s", id)
	}
	return entry.Price, nil
}
