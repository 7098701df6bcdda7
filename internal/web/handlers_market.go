package web

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/varayield/varayield/internal/analyzer"
	"github.com/varayield/varayield/internal/optimizer"
	"github.com/varayield/varayield/internal/types"
)

// historyDays reads ?days=, falling back to the configured history window.
func (ws *WebServer) historyDays(r *http.Request) int {
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if days, err := strconv.Atoi(daysStr); err == nil && days > 0 {
			return days
		}
	}
	return ws.days
}

func (ws *WebServer) handleGetIndicators(w http.ResponseWriter, r *http.Request) {
	coin := mux.Vars(r)["coin"]
	history, err := ws.market.FetchHourlyPrices(r.Context(), coin, ws.historyDays(r))
	if err != nil {
		ws.writeError(w, err, http.StatusBadGateway, "Failed to fetch price history")
		return
	}
	snapshot, err := analyzer.BuildIndicatorSnapshot(coin, history)
	if err != nil {
		ws.writeError(w, err, http.StatusInternalServerError, "Failed to calculate indicators")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

func (ws *WebServer) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	coin := mux.Vars(r)["coin"]
	riskFree := 0.0
	if rfStr := r.URL.Query().Get("risk_free"); rfStr != "" {
		parsed, err := strconv.ParseFloat(rfStr, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "risk_free must be an annual rate between 0 and 1")
			return
		}
		riskFree = parsed
	}

	history, err := ws.market.FetchHourlyPrices(r.Context(), coin, ws.historyDays(r))
	if err != nil {
		ws.writeError(w, err, http.StatusBadGateway, "Failed to fetch price history")
		return
	}
	metrics, err := analyzer.BuildRiskMetrics(coin, history, riskFree)
	if err != nil {
		ws.writeError(w, err, http.StatusInternalServerError, "Failed to calculate risk metrics")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, metrics)
}

// handleGetPools lists candidate pools with their scores, best first.
// Pools that cannot be scored are omitted.
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools, err := ws.candidatePools(r)
	if err != nil {
		ws.writeError(w, err, http.StatusBadGateway, "Failed to fetch pools")
		return
	}

	byID := make(map[types.PoolID]types.Pool, len(pools))
	for _, p := range pools {
		byID[p.ID] = p
	}

	result := make([]types.Pool, 0, len(pools))
	if len(pools) > 0 {
		scores, err := analyzer.CalculatePoolScores(pools, ws.params)
		if err != nil && !isNoValidPools(err) {
			ws.writeError(w, err, http.StatusInternalServerError, "Failed to score pools")
			return
		}
		for _, s := range scores {
			p := byID[s.PoolID]
			p.Score = s
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score.Score != result[j].Score.Score {
			return result[i].Score.Score > result[j].Score.Score
		}
		return result[i].ID < result[j].ID
	})

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pools":      result,
		"count":      len(result),
		"candidates": len(pools),
		"timestamp":  ws.clock.Now().UTC(),
	})
}

// candidatePools fetches the pool list and attaches token volatility from price history.
func (ws *WebServer) candidatePools(r *http.Request) ([]types.Pool, error) {
	pageSize := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			pageSize = parsed
		}
	}
	pools, err := ws.market.FetchPools(r.Context(), pageSize)
	if err != nil {
		return nil, err
	}
	return optimizer.AttachVolatility(r.Context(), ws.market, pools, ws.days), nil
}
