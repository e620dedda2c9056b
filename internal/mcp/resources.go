package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"coinsignal/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, signals SignalAPI) {
	server.AddResource(&mcp.Resource{
		URI:         "market://supported-timeframes",
		Name:        "supported-timeframes",
		Description: "Timeframes a signal may carry",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResource(req.Params.URI, domain.SupportedTimeframes)
	})

	server.AddResource(&mcp.Resource{
		URI:         "signals://latest",
		Name:        "signals-latest",
		Description: "Current signal list with the default sort and limit",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return readSignals(ctx, signals, req.Params.URI, signalsListInput{})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "signals://latest{?signal_type,timeframe,status,symbol,min_strength,sort,limit}",
		Name:        "signals-latest-filtered",
		Description: "Signal list with optional filter, sort and limit query params",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "signals" || parsed.Host != "latest" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		q := parsed.Query()
		input := signalsListInput{
			SignalType: q.Get("signal_type"),
			Timeframe:  q.Get("timeframe"),
			Status:     q.Get("status"),
			Symbol:     q.Get("symbol"),
			Sort:       q.Get("sort"),
		}
		if input.Limit, err = queryInt(q, "limit"); err != nil {
			return nil, err
		}
		if input.MinStrength, err = queryInt(q, "min_strength"); err != nil {
			return nil, err
		}
		return readSignals(ctx, signals, req.Params.URI, input)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "signals://id/{id}",
		Name:        "signal-by-id",
		Description: "One signal by id",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if signals == nil {
			return nil, errUnavailable
		}
		parsed, err := url.Parse(req.Params.URI)
		if err != nil || parsed.Scheme != "signals" || parsed.Host != "id" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		id := strings.Trim(strings.TrimSpace(parsed.Path), "/")
		sig, err := signals.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, signalOutput{Signal: sig})
	})
}

func readSignals(ctx context.Context, signals SignalAPI, uri string, in signalsListInput) (*mcp.ReadResourceResult, error) {
	if signals == nil {
		return nil, errUnavailable
	}
	filter, err := normalizeSignalFilter(in)
	if err != nil {
		return nil, err
	}
	list, err := signals.Filter(ctx, listOptions(in.Sort, in.Limit), filter)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, signalsListOutput{Signals: list, Count: len(list)})
}

func queryInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return n, nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
