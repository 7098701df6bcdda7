package web

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/varayield/varayield/internal/chain"
	"github.com/varayield/varayield/internal/config"
	"github.com/varayield/varayield/internal/rpcfallback"
)

// endpointView is an endpoint record safe to show: the URL is reduced to scheme and host.
type endpointView struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Priority    int       `json:"priority"`
	IsLive      bool      `json:"isLive"`
	LastChecked time.Time `json:"lastChecked"`
	ErrorCount  int       `json:"errorCount"`
	Active      bool      `json:"active"`
}

type endpointsResponse struct {
	Endpoints []endpointView `json:"endpoints"`
	Active    string         `json:"active,omitempty"`
	Live      int            `json:"live"`
	Total     int            `json:"total"`
}

type connectionResponse struct {
	Endpoint  string  `json:"endpoint"`
	URL       string  `json:"url"`
	Priority  int     `json:"priority"`
	Slot      uint64  `json:"slot"`
	LatencyMS float64 `json:"latency_ms"`
}

func (ws *WebServer) endpointsSnapshot() endpointsResponse {
	status := ws.rpc.GetEndpointStatus()
	active, hasActive := ws.rpc.ActiveEndpoint()

	resp := endpointsResponse{Endpoints: make([]endpointView, 0, len(status)), Total: len(status)}
	if hasActive {
		resp.Active = active.Name
	}
	for _, ep := range status {
		if ep.IsLive {
			resp.Live++
		}
		resp.Endpoints = append(resp.Endpoints, endpointView{
			Name:        ep.Name,
			URL:         config.RedactURL(ep.URL),
			Priority:    ep.Priority,
			IsLive:      ep.IsLive,
			LastChecked: ep.LastChecked,
			ErrorCount:  ep.ErrorCount,
			Active:      hasActive && ep.URL == active.URL,
		})
	}
	return resp
}

// handleHealth reports process, RPC and database health. It does not probe endpoints.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	endpoints := ws.endpointsSnapshot()
	healthy := endpoints.Live > 0

	database := "disabled"
	if ws.store != nil {
		if err := ws.store.Ping(r.Context()); err != nil {
			webLogger.Warn().Err(err).Msg("Database ping failed")
			database = "unreachable"
			healthy = false
		} else {
			database = "ok"
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !healthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":         overallStatus,
		"timestamp":      ws.clock.Now().UTC(),
		"uptime_seconds": int64(ws.clock.Since(ws.startedAt).Seconds()),
		"rpc": map[string]interface{}{
			"active": endpoints.Active,
			"live":   endpoints.Live,
			"total":  endpoints.Total,
		},
		"database": database,
		"runtime": map[string]interface{}{
			"goroutines":    runtime.NumGoroutine(),
			"heap_alloc_mb": float64(memStats.HeapAlloc) / 1024 / 1024,
			"go_version":    runtime.Version(),
		},
	}
	ws.writeJSONResponse(w, statusCode, response)
}

func (ws *WebServer) handleGetEndpoints(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.endpointsSnapshot())
}

func (ws *WebServer) handleResetEndpoints(w http.ResponseWriter, r *http.Request) {
	ws.rpc.ResetEndpoints()
	webLogger.Info().Str("remote_addr", r.RemoteAddr).Msg("RPC endpoints reset via API")
	ws.writeJSONResponse(w, http.StatusOK, ws.endpointsSnapshot())
}

// handleGetConnection resolves a working connection and reads the current slot through it.
func (ws *WebServer) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	info, err := rpcfallback.Execute(r.Context(), ws.rpc, func(ctx context.Context, conn *chain.Conn) (connectionResponse, error) {
		start := time.Now()
		slot, err := conn.GetSlot(ctx)
		if err != nil {
			return connectionResponse{}, err
		}
		ep := conn.Endpoint()
		return connectionResponse{
			Endpoint:  ep.Name,
			URL:       config.RedactURL(ep.URL),
			Priority:  ep.Priority,
			Slot:      slot,
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
		}, nil
	})
	if err != nil {
		ws.writeError(w, err, http.StatusBadGateway, "Failed to query Solana RPC")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, info)
}

func (ws *WebServer) handleGetEndpointHistory(w http.ResponseWriter, r *http.Request) {
	if ws.store == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, persistenceDisabledMessage)
		return
	}
	limit := parseLimit(r, 20)
	history, err := ws.store.GetEndpointHistory(r.Context(), limit)
	if err != nil {
		ws.writeError(w, err, http.StatusInternalServerError, "Failed to retrieve endpoint history")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": history,
		"count":     len(history),
		"limit":     limit,
	})
}

// parseLimit reads ?limit=, accepting 1..100.
func parseLimit(r *http.Request, def int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			return parsed
		}
	}
	return def
}
