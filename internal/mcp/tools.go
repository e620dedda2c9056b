package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var errUnavailable = errors.New("signal service unavailable")

func registerTools(server *mcp.Server, signals SignalAPI) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_list",
		Description: "List trading signals with optional filters; served from cache when fresh",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsListInput) (*mcp.CallToolResult, signalsListOutput, error) {
		if signals == nil {
			return nil, signalsListOutput{}, errUnavailable
		}
		filter, err := normalizeSignalFilter(in)
		if err != nil {
			return nil, signalsListOutput{}, err
		}
		result, err := signals.Filter(ctx, listOptions(in.Sort, in.Limit), filter)
		if err != nil {
			return nil, signalsListOutput{}, err
		}
		return nil, signalsListOutput{Signals: result, Count: len(result)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_get",
		Description: "Get one signal by id",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsGetInput) (*mcp.CallToolResult, signalOutput, error) {
		if signals == nil {
			return nil, signalOutput{}, errUnavailable
		}
		sig, err := signals.GetByID(ctx, in.ID)
		if err != nil {
			return nil, signalOutput{}, err
		}
		return nil, signalOutput{Signal: sig}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_create",
		Description: "Create a manual signal",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsCreateInput) (*mcp.CallToolResult, signalOutput, error) {
		if signals == nil {
			return nil, signalOutput{}, errUnavailable
		}
		sig, err := signals.Create(ctx, in.toService())
		if err != nil {
			return nil, signalOutput{}, err
		}
		return nil, signalOutput{Signal: sig}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_update",
		Description: "Change fields of an existing signal; omitted fields stay as they are",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsUpdateInput) (*mcp.CallToolResult, signalOutput, error) {
		if signals == nil {
			return nil, signalOutput{}, errUnavailable
		}
		sig, err := signals.Update(ctx, strings.TrimSpace(in.ID), in.toPatch())
		if err != nil {
			return nil, signalOutput{}, err
		}
		return nil, signalOutput{Signal: sig}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_cancel",
		Description: "Cancel a signal; cancelled is false when it was already cancelled",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsGetInput) (*mcp.CallToolResult, signalsCancelOutput, error) {
		if signals == nil {
			return nil, signalsCancelOutput{}, errUnavailable
		}
		id := strings.TrimSpace(in.ID)
		cancelled, err := signals.Cancel(ctx, id)
		if err != nil {
			return nil, signalsCancelOutput{}, err
		}
		return nil, signalsCancelOutput{ID: id, Cancelled: cancelled}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_analytics",
		Description: "Counts by direction, status and symbol with average strength",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsAnalyticsInput) (*mcp.CallToolResult, analyticsOutput, error) {
		if signals == nil {
			return nil, analyticsOutput{}, errUnavailable
		}
		out, err := signals.Analytics(ctx, listOptions(in.Sort, in.Limit))
		if err != nil {
			return nil, analyticsOutput{}, err
		}
		return nil, analyticsOutput{Analytics: out}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "market_overview",
		Description: "Live market snapshot of the configured assets with totals",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ marketOverviewInput) (*mcp.CallToolResult, marketOverviewOutput, error) {
		if signals == nil {
			return nil, marketOverviewOutput{}, errUnavailable
		}
		out, err := signals.MarketOverview(ctx)
		if err != nil {
			return nil, marketOverviewOutput{}, err
		}
		return nil, marketOverviewOutput{Market: out}, nil
	})
}
