package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://api.coingecko.com/api/v3"
	DefaultRequestDelay = 1000 * time.Millisecond
	DefaultTimeout      = 10 * time.Second

	maxErrorBody = 512
)

type Options struct {
	BaseURL    string
	APIKey     string
	VSCurrency string
	// RequestDelay is the minimum spacing between two upstream requests.
	// Zero or negative disables pacing.
	RequestDelay time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// CoinGeckoClient fetches market snapshots and OHLC history. Requests are
// issued one at a time behind a limiter; it never retries.
type CoinGeckoClient struct {
	tracer     trace.Tracer
	httpClient *http.Client
	baseURL    string
	apiKey     string
	vsCurrency string
	limiter    *rate.Limiter
}

func NewCoinGeckoClient(tracer trace.Tracer, opts Options) *CoinGeckoClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.VSCurrency == "" {
		opts.VSCurrency = "usd"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}

	return &CoinGeckoClient{
		tracer:     tracer,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		vsCurrency: strings.ToLower(opts.VSCurrency),
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type marketRow struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	CurrentPrice             *float64 `json:"current_price"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	TotalVolume              *float64 `json:"total_volume"`
	MarketCap                *float64 `json:"market_cap"`
}

// FetchMarketSnapshot returns the current state of the given assets. Null
// numeric fields come back as NaN so the assembler can reject them.
func (c *CoinGeckoClient) FetchMarketSnapshot(ctx context.Context, ids []string, pageSize int) ([]domain.CoinSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.fetch-market-snapshot")
	defer span.End()

	if pageSize <= 0 {
		pageSize = 50
	}
	span.SetAttributes(attribute.Int("ids", len(ids)), attribute.Int("per_page", pageSize))

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var rows []marketRow
	if err := c.getJSON(ctx, "markets", "/coins/markets", q, &rows); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]domain.CoinSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.CoinSnapshot{
			ID:                       r.ID,
			Symbol:                   r.Symbol,
			CurrentPrice:             orNaN(r.CurrentPrice),
			PriceChangePercentage24h: orNaN(r.PriceChangePercentage24h),
			TotalVolume:              orNaN(r.TotalVolume),
			MarketCap:                orNaN(r.MarketCap),
		})
	}
	return out, nil
}

// FetchOHLC returns the asset's candles for the lookback window, oldest first.
func (c *CoinGeckoClient) FetchOHLC(ctx context.Context, assetID string, lookbackDays int) (domain.OHLCSeries, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.fetch-ohlc")
	defer span.End()
	span.SetAttributes(attribute.String("asset_id", assetID), attribute.Int("days", lookbackDays))

	if lookbackDays <= 0 {
		lookbackDays = 14
	}

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(lookbackDays))

	var rows [][]*float64
	if err := c.getJSON(ctx, "ohlc", "/coins/"+url.PathEscape(assetID)+"/ohlc", q, &rows); err != nil {
		span.RecordError(err)
		return domain.OHLCSeries{}, err
	}

	series := domain.OHLCSeries{AssetID: assetID, Points: make([]domain.OHLCPoint, 0, len(rows))}
	for _, row := range rows {
		if len(row) < 5 || row[0] == nil {
			continue
		}
		point, err := ohlcPoint(assetID, row)
		if err != nil {
			span.RecordError(err)
			return domain.OHLCSeries{}, err
		}
		series.Points = append(series.Points, point)
	}
	sort.SliceStable(series.Points, func(i, j int) bool {
		return series.Points[i].Time.Before(series.Points[j].Time)
	})

	if series.Len() < domain.MinOHLCPoints {
		err := &domain.InsufficientDataError{AssetID: assetID, Got: series.Len(), Min: domain.MinOHLCPoints}
		span.RecordError(err)
		return domain.OHLCSeries{}, err
	}
	return series, nil
}

type VolumeSample struct {
	Time   time.Time
	Volume float64
}

// FetchVolumes returns the asset's total volume samples from /market_chart.
func (c *CoinGeckoClient) FetchVolumes(ctx context.Context, assetID string, lookbackDays int) ([]VolumeSample, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.fetch-volumes")
	defer span.End()
	span.SetAttributes(attribute.String("asset_id", assetID))

	if lookbackDays <= 0 {
		lookbackDays = 14
	}

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(lookbackDays))

	var chart struct {
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	if err := c.getJSON(ctx, "market_chart", "/coins/"+url.PathEscape(assetID)+"/market_chart", q, &chart); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]VolumeSample, 0, len(chart.TotalVolumes))
	for _, row := range chart.TotalVolumes {
		if len(row) < 2 {
			continue
		}
		out = append(out, VolumeSample{Time: time.UnixMilli(int64(row[0])).UTC(), Volume: row[1]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// AttachVolumes sets each candle's volume to the latest sample at or before the
// candle time. Candles older than every sample keep a zero volume.
func AttachVolumes(series domain.OHLCSeries, samples []VolumeSample) domain.OHLCSeries {
	out := domain.OHLCSeries{AssetID: series.AssetID, Points: append([]domain.OHLCPoint(nil), series.Points...)}
	j := -1
	for i := range out.Points {
		for j+1 < len(samples) && !samples[j+1].Time.After(out.Points[i].Time) {
			j++
		}
		if j >= 0 {
			out.Points[i].Volume = samples[j].Volume
		}
	}
	return out
}

// Ping checks that the provider is reachable.
func (c *CoinGeckoClient) Ping(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "coingecko.ping")
	defer span.End()

	var resp map[string]any
	if err := c.getJSON(ctx, "ping", "/ping", nil, &resp); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *CoinGeckoClient) getJSON(ctx context.Context, op, path string, q url.Values, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &domain.UpstreamError{Op: op, Err: err}
	}

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &domain.UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(op, 0)
		return &domain.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(op, resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return &domain.RateLimitError{Op: op, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

var ohlcFields = [...]string{"open", "high", "low", "close"}

// ohlcPoint rejects rows with a null, non-finite or non-positive price rather
// than letting a zero candle reach the indicators.
func ohlcPoint(assetID string, row []*float64) (domain.OHLCPoint, error) {
	var prices [4]float64
	for i, field := range ohlcFields {
		v := orNaN(row[i+1])
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return domain.OHLCPoint{}, &domain.DataIntegrityError{AssetID: assetID, Field: field, Value: v}
		}
		prices[i] = v
	}
	return domain.OHLCPoint{
		Time:  time.UnixMilli(int64(*row[0])).UTC(),
		Open:  prices[0],
		High:  prices[1],
		Low:   prices[2],
		Close: prices[3],
	}, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
