package mcp

import (
	"fmt"
	"strings"

	"coinsignal/internal/domain"
	"coinsignal/internal/service"
)

type signalsListInput struct {
	SignalType  string `json:"signal_type,omitempty" jsonschema:"optional direction: BUY, SELL or HOLD"`
	Timeframe   string `json:"timeframe,omitempty" jsonschema:"optional timeframe: 1m, 5m, 15m, 1h, 4h, 1d"`
	Status      string `json:"status,omitempty" jsonschema:"optional status: active or cancelled"`
	Symbol      string `json:"symbol,omitempty" jsonschema:"optional trading symbol (e.g. BTCUSDT or BTC)"`
	MinStrength int    `json:"min_strength,omitempty" jsonschema:"optional minimum strength 1-100"`
	Sort        string `json:"sort,omitempty" jsonschema:"sort field, prefix with - for descending (default -created_date)"`
	Limit       int    `json:"limit,omitempty" jsonschema:"number of signals to return, max 200"`
}

type signalsListOutput struct {
	Signals []domain.Signal `json:"signals"`
	Count   int             `json:"count"`
}

type signalsGetInput struct {
	ID string `json:"id" jsonschema:"signal id"`
}

type signalOutput struct {
	Signal domain.Signal `json:"signal"`
}

type signalsCreateInput struct {
	Symbol          string  `json:"symbol" jsonschema:"trading symbol (e.g. BTCUSDT)"`
	SignalType      string  `json:"signal_type" jsonschema:"BUY, SELL or HOLD"`
	Strength        int     `json:"strength" jsonschema:"strength 1-100"`
	EntryPrice      float64 `json:"entry_price" jsonschema:"entry price, must be positive"`
	TargetPrice     float64 `json:"target_price,omitempty"`
	StopLoss        float64 `json:"stop_loss,omitempty"`
	Timeframe       string  `json:"timeframe" jsonschema:"1m, 5m, 15m, 1h, 4h or 1d"`
	ConfidenceScore float64 `json:"confidence_score,omitempty" jsonschema:"confidence between 0 and 1"`
}

type signalsUpdateInput struct {
	ID              string   `json:"id" jsonschema:"signal id"`
	SignalType      *string  `json:"signal_type,omitempty"`
	Strength        *int     `json:"strength,omitempty"`
	EntryPrice      *float64 `json:"entry_price,omitempty"`
	TargetPrice     *float64 `json:"target_price,omitempty"`
	StopLoss        *float64 `json:"stop_loss,omitempty"`
	Timeframe       *string  `json:"timeframe,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	Status          *string  `json:"status,omitempty" jsonschema:"active or cancelled"`
}

type signalsCancelOutput struct {
	ID        string `json:"id"`
	Cancelled bool   `json:"cancelled"`
}

type signalsAnalyticsInput struct {
	Sort  string `json:"sort,omitempty"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of signals considered, max 200"`
}

type marketOverviewInput struct{}

func normalizeSignalFilter(in signalsListInput) (domain.SignalFilter, error) {
	filter := domain.SignalFilter{
		SignalType: domain.SignalType(strings.ToUpper(strings.TrimSpace(in.SignalType))),
		Timeframe:  domain.Timeframe(strings.ToLower(strings.TrimSpace(in.Timeframe))),
		Status:     domain.SignalStatus(strings.ToLower(strings.TrimSpace(in.Status))),
		Symbol:     domain.NormalizeSymbol(in.Symbol),
	}
	if filter.SignalType != "" && !filter.SignalType.IsValid() {
		return domain.SignalFilter{}, fmt.Errorf("unsupported signal_type: %s", in.SignalType)
	}
	if filter.Timeframe != "" && !filter.Timeframe.IsValid() {
		return domain.SignalFilter{}, fmt.Errorf("unsupported timeframe: %s", in.Timeframe)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return domain.SignalFilter{}, fmt.Errorf("unsupported status: %s", in.Status)
	}
	if in.MinStrength < 0 || in.MinStrength > 100 {
		return domain.SignalFilter{}, fmt.Errorf("min_strength must be between 1 and 100")
	}
	filter.MinStrength = in.MinStrength
	return filter, nil
}

func listOptions(sort string, limit int) service.ListOptions {
	return service.ListOptions{Sort: strings.TrimSpace(sort), Limit: limit}
}

func (in signalsCreateInput) toService() service.SignalInput {
	return service.SignalInput{
		Symbol:          domain.NormalizeSymbol(in.Symbol),
		SignalType:      domain.SignalType(in.SignalType),
		Strength:        in.Strength,
		EntryPrice:      in.EntryPrice,
		TargetPrice:     in.TargetPrice,
		StopLoss:        in.StopLoss,
		Timeframe:       domain.Timeframe(strings.ToLower(strings.TrimSpace(in.Timeframe))),
		ConfidenceScore: in.ConfidenceScore,
	}
}

func (in signalsUpdateInput) toPatch() service.SignalPatch {
	patch := service.SignalPatch{
		Strength:        in.Strength,
		EntryPrice:      in.EntryPrice,
		TargetPrice:     in.TargetPrice,
		StopLoss:        in.StopLoss,
		ConfidenceScore: in.ConfidenceScore,
	}
	if in.SignalType != nil {
		v := domain.SignalType(strings.ToUpper(strings.TrimSpace(*in.SignalType)))
		patch.SignalType = &v
	}
	if in.Timeframe != nil {
		v := domain.Timeframe(strings.ToLower(strings.TrimSpace(*in.Timeframe)))
		patch.Timeframe = &v
	}
	if in.Status != nil {
		v := domain.SignalStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		patch.Status = &v
	}
	return patch
}

type analyticsOutput struct {
	Analytics service.Analytics `json:"analytics"`
}

type marketOverviewOutput struct {
	Market service.MarketOverview `json:"market"`
}
