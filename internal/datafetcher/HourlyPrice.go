/*
This file fetches hourly price history from the CoinGecko market_chart API.

CoinGecko returns hourly granularity for ranges between 2 and 90 days, so the day count is
clamped into that window. Every point is validated before it reaches the indicator code.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/varayield/varayield/internal/config"
	"github.com/varayield/varayield/internal/types"
)

var ErrInvalidPriceData = errors.New("invalid price data received")
var ErrInsufficientData = errors.New("insufficient price data")

const (
	MIN_HISTORY_DAYS = 2
	MAX_HISTORY_DAYS = 90
	MIN_PRICE_POINTS = 24
)

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// FetchHourlyPrices returns hourly USD prices for coin, oldest first.
// coin may be a symbol ("SOL") or a CoinGecko ID ("solana").
func (c *Client) FetchHourlyPrices(ctx context.Context, coin string, days int) ([]types.PriceData, error) {
	if coin == "" {
		return nil, fmt.Errorf("%w: coin is required", ErrAPIConfiguration)
	}
	if days < MIN_HISTORY_DAYS {
		days = MIN_HISTORY_DAYS
	}
	if days > MAX_HISTORY_DAYS {
		days = MAX_HISTORY_DAYS
	}

	id := config.CoinGeckoID(coin)
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.coinGeckoURL, url.PathEscape(id), q.Encode())

	fetchLogger.Debug().
		Str("coin", coin).
		Str("coingeckoId", id).
		Int("days", days).
		Msg("Fetching hourly price history")

	var prices []types.PriceData
	err := c.withRetries(ctx, "coingecko market_chart "+id, func() error {
		req, err := c.newRequest(ctx, endpoint)
		if err != nil {
			return err
		}
		if c.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		prices, err = parseMarketChart(resp, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	fetchLogger.Info().
		Str("coin", id).
		Int("dataPoints", len(prices)).
		Time("oldestData", prices[0].Timestamp).
		Time("newestData", prices[len(prices)-1].Timestamp).
		Msg("Retrieved and validated price history")

	return prices, nil
}

func parseMarketChart(resp *http.Response, id string) ([]types.PriceData, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, source: "coingecko"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", id, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body for %s", ErrAPIResponseInvalid, id)
	}

	var chart marketChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("%w: failed to parse market_chart for %s: %v", ErrAPIResponseInvalid, id, err)
	}

	if len(chart.Prices) < MIN_PRICE_POINTS {
		return nil, fmt.Errorf("%w: %s returned %d points, need %d", ErrInsufficientData, id, len(chart.Prices), MIN_PRICE_POINTS)
	}

	prices := make([]types.PriceData, 0, len(chart.Prices))
	for i, point := range chart.Prices {
		if err := validatePricePoint(point); err != nil {
			return nil, fmt.Errorf("invalid data point %d for %s: %w", i, id, err)
		}
		prices = append(prices, types.PriceData{
			Timestamp: time.UnixMilli(int64(point[0])).UTC(),
			Price:     point[1],
		})
	}

	if err := validateTimeSequence(prices, id); err != nil {
		return nil, err
	}
	return prices, nil
}

// validatePricePoint checks a [timestamp_ms, price] pair.
func validatePricePoint(point [2]float64) error {
	ts, price := point[0], point[1]
	if math.IsNaN(ts) || math.IsInf(ts, 0) || ts <= 0 {
		return fmt.Errorf("%w: invalid timestamp %v", ErrInvalidPriceData, ts)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: price is not finite", ErrInvalidPriceData)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be positive, got %v", ErrInvalidPriceData, price)
	}
	return nil
}

// validateTimeSequence rejects out-of-order points. Irregular gaps are only logged;
// CoinGecko appends a final point at the current minute.
func validateTimeSequence(prices []types.PriceData, id string) error {
	for i := 1; i < len(prices); i++ {
		if !prices[i].Timestamp.After(prices[i-1].Timestamp) {
			return fmt.Errorf("%w: data points not in chronological order for %s at index %d", ErrInvalidPriceData, id, i)
		}

		gap := prices[i].Timestamp.Sub(prices[i-1].Timestamp)
		if gap > 90*time.Minute {
			fetchLogger.Warn().
				Str("coin", id).
				Int("index", i).
				Dur("gap", gap).
				Msg("Unusual time gap between data points")
		}
	}
	return nil
}
