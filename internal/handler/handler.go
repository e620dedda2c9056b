package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/metrics"
	"coinsignal/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer        trace.Tracer
	signalService *service.SignalService
	stream        *SignalStream
}

func New(tracer trace.Tracer, signalService *service.SignalService) *Handler {
	return &Handler{
		tracer:        tracer,
		signalService: signalService,
	}
}

// WithStream enables the /ws/signals feed.
func (h *Handler) WithStream(s *SignalStream) *Handler {
	h.stream = s
	return h
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws/signals", h.StreamSignals)

	api := r.Group("/api")
	api.GET("/signals", h.GetSignals)
	api.POST("/signals", h.CreateSignal)
	api.GET("/signals/:id", h.GetSignal)
	api.PATCH("/signals/:id", h.UpdateSignal)
	api.DELETE("/signals/:id", h.CancelSignal)
	api.GET("/analytics", h.GetAnalytics)
	api.GET("/market", h.GetMarketOverview)
}

// CORS allows browser dashboards on other origins to read the API.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	})
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary      Readiness check
// @Description  Probes the market data provider
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /ready [get]
func (h *Handler) Ready(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ready")
	defer span.End()

	if err := h.signalService.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("readiness probe failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		rateLimit  *domain.RateLimitError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "fields": validation.Fields})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &rateLimit):
		if rateLimit.RetryAfter > 0 {
			c.Header("Retry-After", formatSeconds(rateLimit.RetryAfter))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
