package mcp

import (
	"context"

	"coinsignal/internal/domain"
	"coinsignal/internal/service"
)

// SignalAPI is the slice of the signal service exposed to MCP clients.
type SignalAPI interface {
	Filter(ctx context.Context, opts service.ListOptions, filter domain.SignalFilter) ([]domain.Signal, error)
	GetByID(ctx context.Context, id string) (domain.Signal, error)
	Create(ctx context.Context, in service.SignalInput) (domain.Signal, error)
	Update(ctx context.Context, id string, patch service.SignalPatch) (domain.Signal, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Analytics(ctx context.Context, opts service.ListOptions) (service.Analytics, error)
	MarketOverview(ctx context.Context) (service.MarketOverview, error)
}
