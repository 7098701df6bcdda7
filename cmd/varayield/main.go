package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/varayield/varayield/internal/chain"
	"github.com/varayield/varayield/internal/config"
	"github.com/varayield/varayield/internal/datafetcher"
	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/monitor"
	"github.com/varayield/varayield/internal/optimizer"
	"github.com/varayield/varayield/internal/rpcfallback"
	"github.com/varayield/varayield/internal/state"
	"github.com/varayield/varayield/internal/wallet"
	"github.com/varayield/varayield/internal/web"
)

const SHUTDOWN_TIMEOUT = 15 * time.Second

// main is the entry point for the VaraYield service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if config.LogFile != "" {
		fileWriter, err := logger.FileWriter(config.LogFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", config.LogFile).Msg("Failed to open log file")
		}
		logger.Initialize(config.LogLevel, fileWriter)
	} else {
		logger.Initialize(config.LogLevel)
	}
	log.Info().Msg("VaraYield starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	// --- 2. Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rpcMetrics, err := rpcfallback.NewMetrics(registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register RPC metrics")
	}

	// --- 3. Solana RPC fallback client ---
	endpoints, err := rpcfallback.NewEndpoints(config.SolanaRPCURL, config.SolanaBackupURLs...)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid RPC endpoint configuration")
	}
	rpcClient, err := rpcfallback.New(rpcfallback.Config[*chain.Conn]{
		Endpoints:     endpoints,
		Dial:          chain.NewDialer(config.RPCRequestTimeout, nil).Dial,
		ProbeTimeout:  config.RPCProbeTimeout,
		DeadThreshold: config.RPCDeadThreshold,
		MaxRetries:    config.RPCMaxRetries,
		BackoffBase:   config.RPCBackoffBase,
		BackoffMax:    config.RPCBackoffMax,
		Clock:         clk,
		Metrics:       rpcMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC fallback client")
	}

	// --- 4. Market data, wallet and optimizer ---
	fetcher, err := datafetcher.NewClient(datafetcher.Config{
		CoinGeckoURL:    config.CoinGeckoAPIURL,
		CoinGeckoAPIKey: config.CoinGeckoAPIKey,
		JupiterURL:      config.JupiterPriceAPIURL,
		PoolsURL:        config.PoolsAPIURL,
		Clock:           clk,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create market data client")
	}

	walletClient, err := wallet.NewClient(rpcClient, fetcher, clk)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create wallet client")
	}

	opt := optimizer.New(clk)

	// --- 5. Optional persistence ---
	var store *state.Store
	if config.DBHost != "" {
		store, err = state.Open(ctx, state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	} else {
		log.Warn().Msg("DB_HOST not set, optimization and endpoint history will not be persisted")
	}

	// --- 6. gRPC health service ---
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	listener, err := net.Listen("tcp", ":"+config.GRPCHealthPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", config.GRPCHealthPort).Msg("Failed to listen for gRPC health checks")
	}

	// --- 7. Web server and monitor ---
	webCfg := web.Config{
		Port:             config.WebPort,
		RPC:              rpcClient,
		Wallet:           walletClient,
		Market:           fetcher,
		Optimizer:        opt,
		Params:           config.DefaultScoringParameters,
		PriceHistoryDays: config.PriceHistoryDays,
		Gatherer:         registry,
		Clock:            clk,
	}
	monitorCfg := monitor.Config[*chain.Conn]{
		RPC:      rpcClient,
		Health:   healthServer,
		Interval: config.MonitorInterval,
		Clock:    clk,
	}
	// Typed nil pointers must not reach the interfaces.
	if store != nil {
		webCfg.Store = store
		monitorCfg.Store = store
	}

	webServer, err := web.NewWebServer(webCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}
	rpcMonitor, err := monitor.New(monitorCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC monitor")
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting VaraYield web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		log.Info().Str("port", config.GRPCHealthPort).Msg("Starting gRPC health service")
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error().Err(err).Msg("gRPC health service failed")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		rpcMonitor.RunLoop(ctx)
	}()

	// --- 8. Shutdown ---
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	grpcServer.GracefulStop()

	wg.Wait()
	log.Info().Msg("VaraYield stopped")
}
