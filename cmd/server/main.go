package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"coinsignal/internal/app"
	"coinsignal/internal/bot"
	"coinsignal/internal/config"
	"coinsignal/internal/handler"
	"coinsignal/internal/job"
	"coinsignal/internal/logger"
	"coinsignal/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "coinsignal/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initLoggerFunc         = logger.Init
	initTracerFunc         = tracing.InitTracer
	buildAppFunc           = app.Build
	newRefreshPollerFunc   = job.NewRefreshPoller
	newSignalExpiryFunc    = job.NewSignalExpiry
	startRefreshPollerFunc = func(p *job.RefreshPoller, ctx context.Context) { go p.Start(ctx) }
	startSignalExpiryFunc  = func(j *job.SignalExpiry, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newSignalStreamFunc    = handler.NewSignalStream
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Coinsignal API
// @version         1.0
// @description     Crypto trading signals assembled from CoinGecko market data and technical indicators.

// @host      localhost:8080
// @BasePath  /
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	initLoggerFunc(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

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

	comps, err := buildAppFunc(ctx, cfg, tracer, app.ProcessServer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build signal service")
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.Error().Err(err).Msg("error closing cache connection")
		}
	}()
	signalService := comps.Service

	// Websocket feed, Telegram bot and alert fan-out
	stream := newSignalStreamFunc()
	notifiers := job.Notifiers{stream}
	if dispatcher := startTelegramBotFunc(cfg.TelegramBotToken, signalService); dispatcher != nil {
		notifiers = append(notifiers, dispatcher)
	}

	// Background jobs (stopped by ctx cancel)
	poller := newRefreshPollerFunc(tracer, signalService, notifiers, time.Duration(cfg.RefreshPollSecs)*time.Second)
	startRefreshPollerFunc(poller, ctx)
	expiry := newSignalExpiryFunc(tracer, signalService)
	startSignalExpiryFunc(expiry, ctx)

	h := newHandlerFunc(tracer, signalService).WithStream(stream)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(tracing.ServiceName))
	r.Use(handler.CORS())

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", srv.Addr).Msg("listen failed")
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("http server listening")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exiting")
}
