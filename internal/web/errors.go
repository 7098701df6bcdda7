package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/varayield/varayield/internal/analyzer"
	"github.com/varayield/varayield/internal/datafetcher"
	"github.com/varayield/varayield/internal/optimizer"
	"github.com/varayield/varayield/internal/rpcfallback"
	"github.com/varayield/varayield/internal/state"
	"github.com/varayield/varayield/internal/wallet"
)

const persistenceDisabledMessage = "Persistence is disabled"

// writeError maps err to a status code. Errors without a specific mapping get fallback.
func (ws *WebServer) writeError(w http.ResponseWriter, err error, fallback int, message string) {
	status, msg := ws.classify(err, fallback, message)
	if status >= http.StatusInternalServerError {
		webLogger.Error().Err(err).Int("status", status).Msg(message)
	} else {
		webLogger.Debug().Err(err).Int("status", status).Msg(message)
	}
	ws.writeErrorResponse(w, status, msg)
}

func (ws *WebServer) classify(err error, fallback int, message string) (int, string) {
	switch {
	case errors.Is(err, rpcfallback.ErrAllEndpointsExhausted),
		errors.Is(err, rpcfallback.ErrNoWorkingEndpoint):
		return http.StatusServiceUnavailable, "No Solana RPC endpoint is available, retry later"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Upstream request timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Request cancelled"
	case errors.Is(err, wallet.ErrInvalidAddress):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, optimizer.ErrInvalidPortfolioValue),
		errors.Is(err, optimizer.ErrInvalidPosition),
		errors.Is(err, analyzer.ErrInvalidScoringParameters):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, analyzer.ErrInsufficientData),
		errors.Is(err, datafetcher.ErrInsufficientData),
		errors.Is(err, optimizer.ErrNoCandidatePools),
		errors.Is(err, analyzer.ErrNoValidPools),
		errors.Is(err, analyzer.ErrAllocationImpossible):
		return http.StatusUnprocessableEntity, err.Error()
	}
	return fallback, message
}
