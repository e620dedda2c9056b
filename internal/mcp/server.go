package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"coinsignal/internal/metrics"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout = 30 * time.Second
	// initialize, list calls and pings never touch the pipeline
	controlTimeout = 5 * time.Second
	slowRequest    = 10 * time.Second
)

type ServerConfig struct {
	RequestTimeout time.Duration
}

// NewServer builds the MCP server over signals. A nil tracer still logs and
// counts requests but opens no spans.
func NewServer(tracer trace.Tracer, signals SignalAPI, cfg ServerConfig) *sdkmcp.Server {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "coinsignal-mcp",
		Version: "1.0.0",
	}, &sdkmcp.ServerOptions{
		Instructions: "Use these tools and resources to list, inspect and manage crypto trading signals and to read the market overview.",
		Logger:       slog.Default(),
	})

	srv.AddReceivingMiddleware(deadlineMiddleware(requestTimeout), observeMiddleware(tracer))

	registerTools(srv, signals)
	registerResources(srv, signals)
	return srv
}

func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(base, cfg)
}

// requestScope is what a request touches: a tool by name, a resource by URI
// scheme (signals, market), or a bare protocol method.
type requestScope struct {
	method string
	kind   string
	target string
	uri    string
}

func scopeOf(method string, req sdkmcp.Request) requestScope {
	scope := requestScope{method: method, kind: "method", target: method}
	switch r := req.(type) {
	case *sdkmcp.CallToolRequest:
		scope.kind = "tool"
		scope.target = "unnamed"
		if r.Params != nil {
			if name := strings.TrimSpace(r.Params.Name); name != "" {
				scope.target = name
			}
		}
	case *sdkmcp.ReadResourceRequest:
		scope.kind = "resource"
		scope.target = "unknown"
		if r.Params != nil {
			scope.uri = strings.TrimSpace(r.Params.URI)
			if scheme, _, ok := strings.Cut(scope.uri, "://"); ok && scheme != "" {
				scope.target = scheme
			}
		}
	}
	return scope
}

// touchesPipeline reports whether the request may run a market data pass.
func (s requestScope) touchesPipeline() bool {
	return s.kind == "tool" || s.kind == "resource"
}

func (s requestScope) spanName() string {
	if s.kind == "method" {
		return "mcp." + strings.ReplaceAll(s.method, "/", ".")
	}
	return "mcp." + s.kind + "." + s.target
}

// deadlineMiddleware gives tool calls and resource reads the configured budget
// and caps protocol housekeeping at controlTimeout.
func deadlineMiddleware(timeout time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			budget := timeout
			if !scopeOf(method, req).touchesPipeline() && budget > controlTimeout {
				budget = controlTimeout
			}
			ctx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

func observeMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			scope := scopeOf(method, req)
			var span trace.Span
			if tracer != nil {
				ctx, span = tracer.Start(ctx, scope.spanName(), trace.WithAttributes(
					attribute.String("mcp.method", method),
					attribute.String("mcp.kind", scope.kind),
					attribute.String("mcp.target", scope.target),
				))
				defer span.End()
				if scope.uri != "" {
					span.SetAttributes(attribute.String("mcp.resource.uri", scope.uri))
				}
			}

			start := time.Now()
			result, err := next(ctx, method, req)
			elapsed := time.Since(start)

			outcome := requestOutcome(result, err)
			metrics.ObserveMCPRequest(scope.kind, scope.target, outcome)
			if span != nil && outcome != "ok" {
				if err != nil {
					span.RecordError(err)
				}
				span.SetStatus(codes.Error, outcome)
			}

			switch {
			case err != nil:
				log.Warn().Err(err).Str("method", method).Str("target", scope.target).Dur("elapsed", elapsed).Msg("mcp request failed")
			case elapsed > slowRequest:
				log.Info().Str("method", method).Str("target", scope.target).Dur("elapsed", elapsed).Msg("slow mcp request")
			}
			return result, err
		}
	}
}

// requestOutcome is ok, tool_error (the tool ran and reported IsError) or error.
func requestOutcome(result sdkmcp.Result, err error) string {
	if err != nil {
		return "error"
	}
	if res, ok := result.(*sdkmcp.CallToolResult); ok && res != nil && res.IsError {
		return "tool_error"
	}
	return "ok"
}
