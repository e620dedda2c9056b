package handler

import (
	"net/http"
	"strconv"
	"strings"

	"coinsignal/internal/domain"
	"coinsignal/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

func badRequest(c *gin.Context, field, msg string) {
	writeError(c, &domain.ValidationError{Fields: []domain.FieldError{{Field: field, Message: msg}}})
}

func (h *Handler) unavailable(c *gin.Context) bool {
	if h.signalService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal service unavailable"})
		return true
	}
	return false
}

func listOptionsFromQuery(c *gin.Context) (service.ListOptions, bool) {
	opts := service.ListOptions{Sort: strings.TrimSpace(c.Query("sort"))}
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil {
			badRequest(c, "limit", "limit must be an integer")
			return opts, false
		}
		opts.Limit = n
	}
	return opts, true
}

// GetSignals godoc
// @Summary      List trading signals
// @Description  Returns signals sorted and limited. A fresh cached list is served when available, otherwise the market data pipeline runs.
// @Tags         signals
// @Produce      json
// @Param        sort          query  string  false  "Sort field, prefix with - for descending"  default(-created_date)
// @Param        limit         query  int     false  "Number of signals (default 50, max 200)"  default(50)
// @Param        signal_type   query  string  false  "BUY, SELL or HOLD"
// @Param        min_strength  query  int     false  "Minimum strength"
// @Param        timeframe     query  string  false  "Timeframe (1m, 5m, 15m, 1h, 4h, 1d)"
// @Param        status        query  string  false  "active or cancelled"
// @Param        symbol        query  string  false  "Trading symbol, BTC or BTCUSDT"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      429  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/signals [get]
func (h *Handler) GetSignals(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	opts, ok := listOptionsFromQuery(c)
	if !ok {
		return
	}

	filter := domain.SignalFilter{
		SignalType: domain.SignalType(strings.ToUpper(strings.TrimSpace(c.Query("signal_type")))),
		Timeframe:  domain.Timeframe(strings.ToLower(strings.TrimSpace(c.Query("timeframe")))),
		Status:     domain.SignalStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Symbol:     domain.NormalizeSymbol(c.Query("symbol")),
	}
	if filter.SignalType != "" && !filter.SignalType.IsValid() {
		badRequest(c, "signal_type", "signal_type must be BUY, SELL or HOLD")
		return
	}
	if filter.Timeframe != "" && !filter.Timeframe.IsValid() {
		badRequest(c, "timeframe", "unsupported timeframe: "+string(filter.Timeframe))
		return
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		badRequest(c, "status", "status must be active or cancelled")
		return
	}
	if raw := strings.TrimSpace(c.Query("min_strength")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			badRequest(c, "min_strength", "min_strength must be between 1 and 100")
			return
		}
		filter.MinStrength = n
	}
	span.SetAttributes(attribute.String("sort", opts.Sort), attribute.Int("limit", opts.Limit))

	signals, err := h.signalService.Filter(ctx, opts, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

// GetSignal godoc
// @Summary      Get one signal
// @Tags         signals
// @Produce      json
// @Param        id  path  string  true  "Signal ID"
// @Success      200  {object}  domain.Signal
// @Failure      404  {object}  map[string]string
// @Router       /api/signals/{id} [get]
func (h *Handler) GetSignal(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signal")
	defer span.End()

	id := strings.TrimSpace(c.Param("id"))
	span.SetAttributes(attribute.String("signal.id", id))

	sig, err := h.signalService.GetByID(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sig)
}

// CreateSignal godoc
// @Summary      Create a manual signal
// @Tags         signals
// @Accept       json
// @Produce      json
// @Param        signal  body  service.SignalInput  true  "Signal fields"
// @Success      201  {object}  domain.Signal
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/signals [post]
func (h *Handler) CreateSignal(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-signal")
	defer span.End()

	var in service.SignalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", "invalid JSON body: "+err.Error())
		return
	}

	sig, err := h.signalService.Create(ctx, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sig)
}

// UpdateSignal godoc
// @Summary      Update a signal
// @Description  Changes only the fields present in the body. The result must still be a valid signal.
// @Tags         signals
// @Accept       json
// @Produce      json
// @Param        id     path  string               true  "Signal ID"
// @Param        patch  body  service.SignalPatch  true  "Fields to change"
// @Success      200  {object}  domain.Signal
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/signals/{id} [patch]
func (h *Handler) UpdateSignal(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.update-signal")
	defer span.End()

	id := strings.TrimSpace(c.Param("id"))
	span.SetAttributes(attribute.String("signal.id", id))

	var patch service.SignalPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "body", "invalid JSON body: "+err.Error())
		return
	}

	sig, err := h.signalService.Update(ctx, id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sig)
}

// CancelSignal godoc
// @Summary      Cancel a signal
// @Tags         signals
// @Produce      json
// @Param        id  path  string  true  "Signal ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/signals/{id} [delete]
func (h *Handler) CancelSignal(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.cancel-signal")
	defer span.End()

	id := strings.TrimSpace(c.Param("id"))
	span.SetAttributes(attribute.String("signal.id", id))

	cancelled, err := h.signalService.Cancel(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "cancelled": cancelled})
}

// GetAnalytics godoc
// @Summary      Signal analytics
// @Description  Counts and average strength over the current signal list
// @Tags         analytics
// @Produce      json
// @Param        sort   query  string  false  "Sort field"
// @Param        limit  query  int     false  "Number of signals considered"
// @Success      200  {object}  service.Analytics
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/analytics [get]
func (h *Handler) GetAnalytics(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-analytics")
	defer span.End()

	opts, ok := listOptionsFromQuery(c)
	if !ok {
		return
	}
	out, err := h.signalService.Analytics(ctx, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetMarketOverview godoc
// @Summary      Market overview
// @Description  Live snapshot of the configured assets with totals
// @Tags         market
// @Produce      json
// @Success      200  {object}  service.MarketOverview
// @Failure      429  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/market [get]
func (h *Handler) GetMarketOverview(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-overview")
	defer span.End()

	out, err := h.signalService.MarketOverview(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
