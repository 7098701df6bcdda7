package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/varayield/varayield/internal/analyzer"
	"github.com/varayield/varayield/internal/optimizer"
	"github.com/varayield/varayield/internal/types"
)

const MAX_REQUEST_BODY_BYTES = 1 << 20

type optimizeRequest struct {
	Positions []types.Position `json:"positions"`
	IdleUSD   float64          `json:"idle_usd"`
	// Params replaces the default scoring parameters for this run when set.
	Params *types.ScoringParameters `json:"params,omitempty"`
}

type optimizeResponse struct {
	Result    types.OptimizationResult `json:"result"`
	Persisted bool                     `json:"persisted"`
}

func isNoValidPools(err error) bool {
	return errors.Is(err, analyzer.ErrNoValidPools)
}

// handleOptimize plans a rebalance for the posted positions against live pool data.
func (ws *WebServer) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MAX_REQUEST_BODY_BYTES))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	params := ws.params
	if req.Params != nil {
		params = *req.Params
	}

	pools, err := ws.candidatePools(r)
	if err != nil {
		ws.writeError(w, err, http.StatusBadGateway, "Failed to fetch pools")
		return
	}

	result, err := ws.optimizer.Optimize(optimizer.Input{
		Positions: req.Positions,
		IdleUSD:   req.IdleUSD,
		Pools:     pools,
		Params:    params,
	})
	if err != nil {
		ws.writeError(w, err, http.StatusInternalServerError, "Optimization failed")
		return
	}

	persisted := false
	if ws.store != nil {
		if err := ws.store.SaveOptimizationRun(r.Context(), result); err != nil {
			webLogger.Warn().Err(err).Str("run_id", result.ID).Msg("Failed to persist optimization run")
		} else {
			persisted = true
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, optimizeResponse{Result: result, Persisted: persisted})
}

func (ws *WebServer) handleGetOptimizations(w http.ResponseWriter, r *http.Request) {
	if ws.store == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, persistenceDisabledMessage)
		return
	}
	limit := parseLimit(r, 20)
	runs, err := ws.store.GetRecentRuns(r.Context(), limit)
	if err != nil {
		ws.writeError(w, err, http.StatusInternalServerError, "Failed to retrieve optimization runs")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"optimizations": runs,
		"count":         len(runs),
		"limit":         limit,
	})
}

func (ws *WebServer) handleGetOptimizationSummary(w http.ResponseWriter, r *http.Request) {
	if ws.store == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, persistenceDisabledMessage)
		return
	}
	summary, err := ws.store.GetRunSummary(r.Context())
	if err != nil {
		ws.writeError(w, err, http.StatusInternalServerError, "Failed to summarize optimization runs")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) handleGetOptimization(w http.ResponseWriter, r *http.Request) {
	if ws.store == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, persistenceDisabledMessage)
		return
	}
	id := mux.Vars(r)["id"]
	run, err := ws.store.GetRunByID(r.Context(), id)
	if err != nil {
		ws.writeError(w, err, http.StatusInternalServerError, "Failed to retrieve optimization run")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, run)
}
