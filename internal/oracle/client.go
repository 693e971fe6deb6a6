package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/virellia/driftline/internal/models"
)

// Fetcher retrieves one fresh on-chain sample from an external source.
type Fetcher interface {
	Fetch(ctx context.Context) (models.OnChainSample, error)
}

// LlamaClient fetches aggregate TVL and stablecoin supply from the DeFiLlama
// public API.
type LlamaClient struct {
	tvlURL    string
	stableURL string
	client    *http.Client
}

// NewLlamaClient creates a DeFiLlama client with the given endpoints.
func NewLlamaClient(tvlURL, stableURL string, timeout time.Duration) *LlamaClient {
	return &LlamaClient{
		tvlURL:    tvlURL,
		stableURL: stableURL,
		client:    &http.Client{Timeout: timeout},
	}
}

type chainTVL struct {
	Name string  `json:"name"`
	TVL  float64 `json:"tvl"`
}

type stablecoinList struct {
	PeggedAssets []struct {
		Circulating struct {
			PeggedUSD float64 `json:"peggedUSD"`
		} `json:"circulating"`
	} `json:"peggedAssets"`
}

// Fetch retrieves both series and aggregates them into one sample stamped
// with the current time.
func (c *LlamaClient) Fetch(ctx context.Context) (models.OnChainSample, error) {
	tvl, err := c.fetchTVL(ctx)
	if err != nil {
		return models.OnChainSample{}, err
	}

	supply, err := c.fetchStableSupply(ctx)
	if err != nil {
		return models.OnChainSample{}, err
	}

	return models.OnChainSample{
		Timestamp:    time.Now().UTC(),
		TVL:          tvl,
		StableSupply: supply,
	}, nil
}

func (c *LlamaClient) fetchTVL(ctx context.Context) (float64, error) {
	var chains []chainTVL
	if err := c.getJSON(ctx, c.tvlURL, &chains); err != nil {
		return 0, fmt.Errorf("tvl fetch failed: %w", err)
	}

	total := 0.0
	for _, ch := range chains {
		total += ch.TVL
	}
	return total, nil
}

func (c *LlamaClient) fetchStableSupply(ctx context.Context) (float64, error) {
	var list stablecoinList
	if err := c.getJSON(ctx, c.stableURL, &list); err != nil {
		return 0, fmt.Errorf("stablecoin fetch failed: %w", err)
	}

	total := 0.0
	for _, asset := range list.PeggedAssets {
		total += asset.Circulating.PeggedUSD
	}
	return total, nil
}

func (c *LlamaClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
