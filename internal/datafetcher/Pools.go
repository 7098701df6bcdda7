/*
This file fetches the pool analytics list. The response shape follows the Raydium v3
/pools/info/list endpoint; entries that cannot be scored are skipped with a warning.
*/

package datafetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/varayield/varayield/internal/config"
	"github.com/varayield/varayield/internal/types"
)

const DEFAULT_POOL_PAGE_SIZE = 100

type poolListResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Count int         `json:"count"`
		Data  []poolEntry `json:"data"`
	} `json:"data"`
}

type poolMint struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type poolPeriod struct {
	Volume    float64   `json:"volume"`
	Apr       float64   `json:"apr"`
	FeeApr    float64   `json:"feeApr"`
	RewardApr []float64 `json:"rewardApr"`
}

type poolEntry struct {
	Type     string     `json:"type"`
	ID       string     `json:"id"`
	MintA    poolMint   `json:"mintA"`
	MintB    poolMint   `json:"mintB"`
	FeeRate  float64    `json:"feeRate"`
	OpenTime unixTime   `json:"openTime"`
	TVL      float64    `json:"tvl"`
	Day      poolPeriod `json:"day"`
	Week     poolPeriod `json:"week"`
}

// unixTime accepts seconds as either a JSON number or a numeric string.
type unixTime int64

func (u *unixTime) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid unix time %q: %w", string(b), err)
	}
	*u = unixTime(v)
	return nil
}

// FetchPools returns the first pageSize pools of the analytics list, sorted by the API default.
func (c *Client) FetchPools(ctx context.Context, pageSize int) ([]types.Pool, error) {
	if pageSize <= 0 {
		pageSize = DEFAULT_POOL_PAGE_SIZE
	}

	q := url.Values{}
	q.Set("poolType", "all")
	q.Set("poolSortField", "default")
	q.Set("sortType", "desc")
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("page", "1")
	sep := "?"
	if strings.Contains(c.poolsURL, "?") {
		sep = "&"
	}
	endpoint := c.poolsURL + sep + q.Encode()

	var entries []poolEntry
	err := c.withRetries(ctx, "pool list", func() error {
		req, err := c.newRequest(ctx, endpoint)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &statusError{status: resp.StatusCode, source: "pools api"}
		}
		var body poolListResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("%w: failed to parse pool list: %v", ErrAPIResponseInvalid, err)
		}
		if !body.Success {
			return fmt.Errorf("%w: pool list reported success=false", ErrAPIResponseInvalid)
		}
		entries = body.Data.Data
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	pools := make([]types.Pool, 0, len(entries))
	for _, e := range entries {
		pool, err := toPool(e, now)
		if err != nil {
			fetchLogger.Warn().
				Err(err).
				Str("poolId", e.ID).
				Msg("Skipping invalid pool entry")
			continue
		}
		pools = append(pools, pool)
	}

	fetchLogger.Info().
		Int("received", len(entries)).
		Int("valid", len(pools)).
		Msg("Fetched pool list")
	return pools, nil
}

func toPool(e poolEntry, now time.Time) (types.Pool, error) {
	if e.ID == "" {
		return types.Pool{}, fmt.Errorf("%w: missing pool id", ErrAPIResponseInvalid)
	}
	if e.MintA.Address == "" || e.MintB.Address == "" {
		return types.Pool{}, fmt.Errorf("%w: missing mint", ErrAPIResponseInvalid)
	}

	var poolType types.PoolType
	switch e.Type {
	case "Standard":
		poolType = types.PoolTypeStandard
	case "Concentrated":
		poolType = types.PoolTypeConcentrated
	default:
		return types.Pool{}, fmt.Errorf("%w: unsupported pool type %q", ErrAPIResponseInvalid, e.Type)
	}

	rewardAPR := 0.0
	for _, r := range e.Week.RewardApr {
		rewardAPR += r
	}
	for name, v := range map[string]float64{
		"tvl":       e.TVL,
		"volume24h": e.Day.Volume,
		"volume7d":  e.Week.Volume,
		"feeApr":    e.Week.FeeApr,
		"rewardApr": rewardAPR,
		"feeRate":   e.FeeRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return types.Pool{}, fmt.Errorf("%w: %s is %v", ErrAPIResponseInvalid, name, v)
		}
	}

	age := 0
	if e.OpenTime > 0 {
		opened := time.Unix(int64(e.OpenTime), 0)
		if now.After(opened) {
			age = int(now.Sub(opened).Hours() / 24)
		}
	}

	return types.Pool{
		ID:           types.PoolID(e.ID),
		Type:         poolType,
		TokenA:       toToken(e.MintA),
		TokenB:       toToken(e.MintB),
		TvlUSD:       e.TVL,
		Volume24hUSD: e.Day.Volume,
		Volume7dUSD:  e.Week.Volume,
		FeeAPR:       e.Week.FeeApr,
		RewardAPR:    rewardAPR,
		FeeRate:      e.FeeRate,
		AgeInDays:    age,
	}, nil
}

func toToken(m poolMint) types.Token {
	t := types.Token{
		Symbol:   m.Symbol,
		Mint:     m.Address,
		Decimals: m.Decimals,
	}
	if known, ok := config.TokenByMint(m.Address); ok {
		t.Symbol = known.Symbol
		t.CoinGeckoID = known.CoinGeckoID
	} else if m.Symbol != "" {
		t.CoinGeckoID = config.CoinGeckoID(m.Symbol)
	}
	if t.Symbol == "" {
		t.Symbol = shortMint(m.Address)
	}
	return t
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + ".." + mint[len(mint)-4:]
}
