package datafetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MAX_IDS_PER_REQUEST is the Jupiter price API limit on ids per call.
const MAX_IDS_PER_REQUEST = 100

type jupiterPriceResponse struct {
	Data map[string]*struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Price string `json:"price"`
	} `json:"data"`
}

// FetchSpotPrices returns USD prices keyed by mint. Mints Jupiter cannot price are omitted.
func (c *Client) FetchSpotPrices(ctx context.Context, mints []string) (map[string]float64, error) {
	unique := dedupe(mints)
	prices := make(map[string]float64, len(unique))

	for start := 0; start < len(unique); start += MAX_IDS_PER_REQUEST {
		end := start + MAX_IDS_PER_REQUEST
		if end > len(unique) {
			end = len(unique)
		}
		batch := unique[start:end]

		err := c.withRetries(ctx, "jupiter price", func() error {
			return c.fetchSpotBatch(ctx, batch, prices)
		})
		if err != nil {
			return nil, err
		}
	}

	fetchLogger.Debug().
		Int("requested", len(unique)).
		Int("priced", len(prices)).
		Msg("Fetched spot prices")
	return prices, nil
}

func (c *Client) fetchSpotBatch(ctx context.Context, mints []string, into map[string]float64) error {
	q := url.Values{}
	q.Set("ids", strings.Join(mints, ","))
	sep := "?"
	if strings.Contains(c.jupiterURL, "?") {
		sep = "&"
	}

	req, err := c.newRequest(ctx, c.jupiterURL+sep+q.Encode())
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{status: resp.StatusCode, source: "jupiter"}
	}

	var body jupiterPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: failed to parse jupiter response: %v", ErrAPIResponseInvalid, err)
	}

	for _, mint := range mints {
		entry := body.Data[mint]
		if entry == nil {
			continue
		}
		price, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			fetchLogger.Warn().
				Str("mint", mint).
				Str("price", entry.Price).
				Msg("Ignoring invalid spot price")
			continue
		}
		into[mint] = price
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
