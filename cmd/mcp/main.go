package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"coinsignal/internal/app"
	"coinsignal/internal/config"
	"coinsignal/internal/job"
	"coinsignal/internal/logger"
	mcpserver "coinsignal/internal/mcp"
	"coinsignal/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

var (
	loadEnvFunc           = godotenv.Load
	loadConfigFunc        = config.Load
	initLoggerFunc        = logger.Init
	initTracerFunc        = tracing.InitTracer
	buildAppFunc          = app.Build
	newMCPServerFunc      = mcpserver.NewServer
	newMCPHandlerFunc     = mcpserver.NewHTTPTransportHandler
	newSignalExpiryFunc   = job.NewSignalExpiry
	startSignalExpiryFunc = func(j *job.SignalExpiry, ctx context.Context) { go j.Start(ctx) }
	runStdioFunc          = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	// stdout carries the stdio protocol
	initLoggerFunc(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: os.Stderr})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, cfg.OTELEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	comps, err := buildAppFunc(ctx, cfg, tracer, app.ProcessMCP)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build signal service")
	}
	defer closeQuietly(comps)

	expiry := newSignalExpiryFunc(tracer, comps.Service)
	startSignalExpiryFunc(expiry, ctx)

	mcpSrv := newMCPServerFunc(tracer, comps.Service, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	transport := strings.ToLower(strings.TrimSpace(cfg.MCPTransport))
	switch transport {
	case "", "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatal().Err(err).Msg("mcp stdio server failed")
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatal().Err(err).Msg("mcp http server failed")
		}
	default:
		log.Fatal().Str("transport", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT")
	}
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if !cfg.MCPHTTPEnabled {
		return fmt.Errorf("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", addr).Msg("mcp http server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("mcp http server listening")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Error().Err(err).Msg("error closing cache connection")
	}
}
