package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/varayield/varayield/internal/chain"
	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/optimizer"
	"github.com/varayield/varayield/internal/rpcfallback"
	"github.com/varayield/varayield/internal/state"
	"github.com/varayield/varayield/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

//go:embed static/*
var staticFiles embed.FS

//go:embed static/index.html
var dashboardHTML []byte

// WalletReader reads wallet state. *wallet.Client satisfies it.
type WalletReader interface {
	GetSOLBalance(ctx context.Context, owner string) (types.WalletBalance, error)
	GetTokenHoldings(ctx context.Context, owner string) ([]types.TokenHolding, error)
	GetPortfolio(ctx context.Context, owner string) (types.Portfolio, error)
}

// MarketData provides price history and pool listings. *datafetcher.Client satisfies it.
type MarketData interface {
	FetchHourlyPrices(ctx context.Context, coin string, days int) ([]types.PriceData, error)
	FetchPools(ctx context.Context, pageSize int) ([]types.Pool, error)
}

// RunStore persists optimization runs and endpoint history. *state.Store satisfies it.
type RunStore interface {
	Ping(ctx context.Context) error
	SaveOptimizationRun(ctx context.Context, result types.OptimizationResult) error
	GetRecentRuns(ctx context.Context, limit int) ([]types.OptimizationResult, error)
	GetRunByID(ctx context.Context, id string) (types.OptimizationResult, error)
	GetRunSummary(ctx context.Context) (state.RunSummary, error)
	GetEndpointHistory(ctx context.Context, limit int) ([]state.EndpointSnapshot, error)
}

// Config holds the dependencies of the web server. Store, Gatherer and Clock are optional;
// without a Store the history endpoints answer 503.
type Config struct {
	Port             string
	RPC              *rpcfallback.Client[*chain.Conn]
	Wallet           WalletReader
	Market           MarketData
	Optimizer        *optimizer.Optimizer
	Store            RunStore
	Params           types.ScoringParameters
	PriceHistoryDays int
	Gatherer         prometheus.Gatherer
	Clock            clock.Clock
}

// WebServer serves the dashboard and its JSON API.
type WebServer struct {
	router    *mux.Router
	port      string
	server    *http.Server
	rpc       *rpcfallback.Client[*chain.Conn]
	wallet    WalletReader
	market    MarketData
	optimizer *optimizer.Optimizer
	store     RunStore
	params    types.ScoringParameters
	days      int
	gatherer  prometheus.Gatherer
	clock     clock.Clock
	startedAt time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.PriceHistoryDays <= 0 {
		cfg.PriceHistoryDays = 30
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	ws := &WebServer{
		router:    mux.NewRouter(),
		port:      cfg.Port,
		rpc:       cfg.RPC,
		wallet:    cfg.Wallet,
		market:    cfg.Market,
		optimizer: cfg.Optimizer,
		store:     cfg.Store,
		params:    cfg.Params,
		days:      cfg.PriceHistoryDays,
		gatherer:  cfg.Gatherer,
		clock:     cfg.Clock,
		startedAt: cfg.Clock.Now(),
	}
	ws.setupRoutes()
	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return ws, nil
}

func validateConfig(cfg Config) error {
	if cfg.RPC == nil {
		return errors.New("rpc client cannot be nil")
	}
	if cfg.Wallet == nil {
		return errors.New("wallet reader cannot be nil")
	}
	if cfg.Market == nil {
		return errors.New("market data source cannot be nil")
	}
	if cfg.Optimizer == nil {
		return errors.New("optimizer cannot be nil")
	}
	return nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	staticHandler := http.FileServer(http.FS(staticFiles))
	ws.router.PathPrefix("/static/").Handler(staticHandler)

	ws.router.HandleFunc("/", ws.handleDashboard).Methods("GET")
	ws.router.HandleFunc("/dashboard", ws.handleDashboard).Methods("GET")
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api.HandleFunc("/rpc/endpoints", ws.handleGetEndpoints).Methods("GET")
	api.HandleFunc("/rpc/reset", ws.handleResetEndpoints).Methods("POST", "OPTIONS")
	api.HandleFunc("/rpc/connection", ws.handleGetConnection).Methods("GET")
	api.HandleFunc("/rpc/history", ws.handleGetEndpointHistory).Methods("GET")

	api.HandleFunc("/wallet/{address}/balance", ws.handleGetBalance).Methods("GET")
	api.HandleFunc("/wallet/{address}/tokens", ws.handleGetTokens).Methods("GET")
	api.HandleFunc("/wallet/{address}/portfolio", ws.handleGetPortfolio).Methods("GET")

	api.HandleFunc("/market/{coin}/indicators", ws.handleGetIndicators).Methods("GET")
	api.HandleFunc("/market/{coin}/risk", ws.handleGetRisk).Methods("GET")

	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/optimize", ws.handleOptimize).Methods("POST", "OPTIONS")
	api.HandleFunc("/optimizations", ws.handleGetOptimizations).Methods("GET")
	api.HandleFunc("/optimizations/summary", ws.handleGetOptimizationSummary).Methods("GET")
	api.HandleFunc("/optimizations/{id}", ws.handleGetOptimization).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	webLogger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// handleDashboard serves the main dashboard HTML
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(dashboardHTML)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"retryable": statusCode == http.StatusServiceUnavailable,
		"timestamp": ws.clock.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
