package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"coinsignal/internal/app"
	"coinsignal/internal/bot"
	"coinsignal/internal/config"
	"coinsignal/internal/job"
	"coinsignal/internal/logger"
	"coinsignal/internal/service/servicetest"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps()
	defer restore()

	var (
		handler http.Handler
		addr    string
		poller  *job.RefreshPoller
	)
	served := make(chan struct{})
	startHTTPServerFunc = func(srv *http.Server) error {
		handler, addr = srv.Handler, srv.Addr
		close(served)
		return http.ErrServerClosed
	}
	waitForSignalFunc = func(<-chan os.Signal) { <-served }
	startRefreshPollerFunc = func(p *job.RefreshPoller, ctx context.Context) { poller = p }
	var process string
	buildAppFunc = func(_ context.Context, _ *config.Config, _ trace.Tracer, name string) (*app.Components, error) {
		process = name
		f := servicetest.New(nil)
		return &app.Components{Service: f.Service, Cache: f.Cache}, nil
	}

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}

	if process != app.ProcessServer {
		t.Fatalf("expected server cache namespace, got %q", process)
	}
	if poller == nil {
		t.Fatal("expected refresh poller to be started")
	}
	if addr != ":18080" {
		t.Fatalf("expected configured addr, got %q", addr)
	}
	for _, path := range []string{"/health", "/api/signals?limit=5"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func stubServerDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitLogger := initLoggerFunc
	origInitTracer := initTracerFunc
	origBuildApp := buildAppFunc
	origStartPoller := startRefreshPollerFunc
	origStartExpiry := startSignalExpiryFunc
	origStartTelegram := startTelegramBotFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{HTTPAddr: ":18080", CacheBackend: "memory", RefreshPollSecs: 1}
	}
	initLoggerFunc = func(logger.Options) zerolog.Logger { return zerolog.Nop() }
	initTracerFunc = func(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	buildAppFunc = func(context.Context, *config.Config, trace.Tracer, string) (*app.Components, error) {
		f := servicetest.New(nil)
		return &app.Components{Service: f.Service, Cache: f.Cache}, nil
	}
	startRefreshPollerFunc = func(*job.RefreshPoller, context.Context) {}
	startSignalExpiryFunc = func(*job.SignalExpiry, context.Context) {}
	startTelegramBotFunc = func(string, bot.SignalReader) *bot.AlertDispatcher { return nil }
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initLoggerFunc = origInitLogger
		initTracerFunc = origInitTracer
		buildAppFunc = origBuildApp
		startRefreshPollerFunc = origStartPoller
		startSignalExpiryFunc = origStartExpiry
		startTelegramBotFunc = origStartTelegram
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
