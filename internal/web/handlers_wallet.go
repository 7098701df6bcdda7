package web

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (ws *WebServer) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	balance, err := ws.wallet.GetSOLBalance(r.Context(), address)
	if err != nil {
		ws.writeError(w, err, http.StatusBadGateway, "Failed to fetch SOL balance")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, balance)
}

func (ws *WebServer) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	holdings, err := ws.wallet.GetTokenHoldings(r.Context(), address)
	if err != nil {
		ws.writeError(w, err, http.StatusBadGateway, "Failed to fetch token holdings")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"owner":  address,
		"tokens": holdings,
		"count":  len(holdings),
	})
}

func (ws *WebServer) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	portfolio, err := ws.wallet.GetPortfolio(r.Context(), address)
	if err != nil {
		ws.writeError(w, err, http.StatusBadGateway, "Failed to build portfolio")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, portfolio)
}
