// Package enrichment fetches off-chain market data for subject tokens.
// It lives outside the ingestion critical path: callers invoke it after a
// signal exists, with bounded retries and a hard timeout per attempt.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBaseURL is the public Dexscreener API root.
	DefaultBaseURL = "https://api.dexscreener.com"

	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
)

// venues a migrated token is expected to trade on.
var allowedVenues = map[string]struct{}{
	"raydium":  {},
	"pumpswap": {},
}

// Pair is one trading pair as reported by Dexscreener.
type Pair struct {
	PairAddress string
	DexID       string
	BaseToken   string
	QuoteToken  string

	PriceUSD     decimal.Decimal // zero when unknown
	MarketCapUSD decimal.Decimal
	Volume1hUSD  decimal.Decimal
	Volume24hUSD decimal.Decimal
	LiquidityUSD decimal.Decimal

	PairCreatedAt *time.Time
	URL           string
}

// ChartURL is the pair's Dexscreener chart page.
func (p Pair) ChartURL() string {
	return "https://dexscreener.com/solana/" + p.PairAddress
}

// Client queries the Dexscreener token-pairs API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func NewClient(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pairsResponse mirrors the wire shape; only the fields we read.
type pairsResponse struct {
	Pairs []rawPair `json:"pairs"`
}

type rawPair struct {
	ChainID       string                 `json:"chainId"`
	PairAddress   string                 `json:"pairAddress"`
	DexID         string                 `json:"dexId"`
	BaseToken     rawToken               `json:"baseToken"`
	QuoteToken    rawToken               `json:"quoteToken"`
	PriceUSD      string                 `json:"priceUsd"`
	MarketCap     json.Number            `json:"marketCap"`
	Volume        map[string]json.Number `json:"volume"`
	Liquidity     rawLiquidity           `json:"liquidity"`
	PairCreatedAt int64                  `json:"pairCreatedAt"` // unix millis
	URL           string                 `json:"url"`
}

type rawToken struct {
	Address string `json:"address"`
}

type rawLiquidity struct {
	USD json.Number `json:"usd"`
}

// PairsByToken fetches all Solana pairs for a token, sorted by liquidity
// descending. Transient failures are retried with exponential backoff; an
// exhausted budget returns the last error.
func (c *Client) PairsByToken(ctx context.Context, token string) ([]Pair, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, token)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		pairs, err := c.fetchPairs(ctx, url)
		if err != nil {
			lastErr = err
			c.log.Warn().
				Err(err).
				Str("token", token).
				Int("attempt", attempt+1).
				Msg("dexscreener request failed")
			continue
		}

		c.log.Debug().Str("token", token).Int("pairs", len(pairs)).Msg("dexscreener pairs fetched")
		return pairs, nil
	}
	return nil, fmt.Errorf("fetching pairs for %s: %w", token, lastErr)
}

// BestVenuePair returns the highest-liquidity pair on an allow-listed
// venue, or nil when the token has none.
func (c *Client) BestVenuePair(ctx context.Context, token string) (*Pair, error) {
	pairs, err := c.PairsByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var best *Pair
	for i := range pairs {
		if _, ok := allowedVenues[strings.ToLower(pairs[i].DexID)]; !ok {
			continue
		}
		if best == nil || pairs[i].LiquidityUSD.GreaterThan(best.LiquidityUSD) {
			best = &pairs[i]
		}
	}

	if best == nil {
		c.log.Debug().Str("token", token).Int("total_pairs", len(pairs)).Msg("no allow-listed venue pair")
		return nil, nil
	}
	return best, nil
}

func (c *Client) fetchPairs(ctx context.Context, url string) ([]Pair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	pairs := make([]Pair, 0, len(body.Pairs))
	for _, raw := range body.Pairs {
		if raw.ChainID != "solana" {
			continue
		}
		p := Pair{
			PairAddress:  raw.PairAddress,
			DexID:        raw.DexID,
			BaseToken:    raw.BaseToken.Address,
			QuoteToken:   raw.QuoteToken.Address,
			PriceUSD:     safeDecimal(raw.PriceUSD),
			MarketCapUSD: safeDecimal(raw.MarketCap.String()),
			Volume1hUSD:  safeDecimal(raw.Volume["h1"].String()),
			Volume24hUSD: safeDecimal(raw.Volume["h24"].String()),
			LiquidityUSD: safeDecimal(raw.Liquidity.USD.String()),
			URL:          raw.URL,
		}
		if raw.PairCreatedAt > 0 {
			t := time.UnixMilli(raw.PairCreatedAt).UTC()
			p.PairCreatedAt = &t
		}
		pairs = append(pairs, p)
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].LiquidityUSD.GreaterThan(pairs[j].LiquidityUSD)
	})
	return pairs, nil
}

// safeDecimal parses a wire value, treating anything unparseable as zero.
func safeDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
