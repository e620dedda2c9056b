package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/service"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

const (
	signalsPerReply = 5
	commandTimeout  = 30 * time.Second
)

type SignalReader interface {
	Filter(ctx context.Context, opts service.ListOptions, filter domain.SignalFilter) ([]domain.Signal, error)
	GetByID(ctx context.Context, id string) (domain.Signal, error)
}

type commandRouter interface {
	Handle(endpoint interface{}, h tele.HandlerFunc, m ...tele.MiddlewareFunc)
}

// StartTelegramBot starts long polling and returns the alert dispatcher, or nil
// when no token is configured.
func StartTelegramBot(token string, signals SignalReader) *AlertDispatcher {
	if strings.TrimSpace(token) == "" {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create Telegram bot")
		return nil
	}

	alerts := NewAlertDispatcher(b)
	registerCommands(b, &commands{signals: signals, alerts: alerts})

	log.Info().Msg("Telegram bot started")
	go b.Start()
	return alerts
}

func registerCommands(r commandRouter, cmds *commands) {
	r.Handle("/ping", cmds.ping)
	r.Handle("/signals", cmds.listSignals)
	r.Handle("/signal", cmds.showSignal)
	r.Handle("/alerts", cmds.toggleAlerts)
}

type commands struct {
	signals SignalReader
	alerts  *AlertDispatcher
}

func (cmds *commands) ping(c tele.Context) error {
	return c.Send("pong")
}

func (cmds *commands) listSignals(c tele.Context) error {
	if cmds.signals == nil {
		return c.Send("Signal service unavailable")
	}

	filter, err := parseSignalArgs(c.Args())
	if err != nil {
		return c.Send("Usage: /signals | /signals BTC | /signals BTC buy")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	signals, err := cmds.signals.Filter(ctx, service.ListOptions{}, filter)
	if err != nil {
		return c.Send(fmt.Sprintf("Error fetching signals: %v", err))
	}
	if len(signals) == 0 {
		return c.Send("No matching signals right now.")
	}
	if len(signals) > signalsPerReply {
		signals = signals[:signalsPerReply]
	}

	lines := make([]string, 0, len(signals)+1)
	lines = append(lines, "Latest signals:")
	for _, s := range signals {
		lines = append(lines, formatSignal(s))
	}
	return c.Send(strings.Join(lines, "\n"))
}

func (cmds *commands) showSignal(c tele.Context) error {
	if cmds.signals == nil {
		return c.Send("Signal service unavailable")
	}
	args := c.Args()
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return c.Send("Usage: /signal <id>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	s, err := cmds.signals.GetByID(ctx, strings.TrimSpace(args[0]))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Send("Signal not found.")
	}
	if err != nil {
		return c.Send(fmt.Sprintf("Error fetching signal: %v", err))
	}
	return c.Send(formatSignalDetail(s))
}

func (cmds *commands) toggleAlerts(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return c.Send("Unable to detect chat")
	}
	if cmds.alerts == nil {
		return c.Send("Alerts unavailable")
	}

	cmd, err := parseAlertMode(c.Args())
	if err != nil {
		return c.Send("Usage: /alerts on [min strength] | /alerts off | /alerts status")
	}

	switch cmd.mode {
	case "on":
		if !cmds.alerts.Subscribe(chat.ID, cmd.minStrength) {
			return c.Send("Proactive alerts are already enabled for this chat.")
		}
		if cmd.minStrength > 0 {
			return c.Send(fmt.Sprintf("Proactive alerts enabled for signals with strength %d or more.", cmd.minStrength))
		}
		return c.Send("Proactive alerts enabled for this chat.")
	case "off":
		if cmds.alerts.Unsubscribe(chat.ID) {
			return c.Send("Proactive alerts disabled for this chat.")
		}
		return c.Send("Proactive alerts are already disabled for this chat.")
	default:
		minStrength, ok := cmds.alerts.Subscription(chat.ID)
		switch {
		case !ok:
			return c.Send("Alerts status: OFF")
		case minStrength > 0:
			return c.Send(fmt.Sprintf("Alerts status: ON (strength >= %d)", minStrength))
		default:
			return c.Send("Alerts status: ON")
		}
	}
}

// parseSignalArgs accepts an optional symbol and an optional direction, in any
// order. Bare coin symbols get the USDT quote appended.
func parseSignalArgs(args []string) (domain.SignalFilter, error) {
	filter := domain.SignalFilter{Status: domain.SignalActive}

	for _, raw := range args {
		arg := strings.ToUpper(strings.TrimSpace(raw))
		if arg == "" {
			continue
		}
		if t := domain.SignalType(arg); t.IsValid() {
			if filter.SignalType != "" {
				return domain.SignalFilter{}, errors.New("multiple directions provided")
			}
			filter.SignalType = t
			continue
		}
		if strings.HasPrefix(arg, "-") {
			return domain.SignalFilter{}, errors.New("unknown option")
		}
		if filter.Symbol != "" {
			return domain.SignalFilter{}, errors.New("multiple symbols provided")
		}
		filter.Symbol = domain.NormalizeSymbol(arg)
	}

	return filter, nil
}

func formatSignal(s domain.Signal) string {
	return fmt.Sprintf(
		"%s %s %s %s strength %d entry %s",
		s.ID,
		s.Symbol,
		s.Timeframe,
		s.SignalType,
		s.Strength,
		formatPrice(s.EntryPrice),
	)
}

func formatSignalDetail(s domain.Signal) string {
	lines := []string{
		fmt.Sprintf("%s %s (%s)", s.Symbol, s.SignalType, s.Timeframe),
		fmt.Sprintf("Strength: %d  Confidence: %.2f", s.Strength, s.ConfidenceScore),
		fmt.Sprintf("Entry: %s  Target: %s  Stop: %s", formatPrice(s.EntryPrice), formatPrice(s.TargetPrice), formatPrice(s.StopLoss)),
		fmt.Sprintf("24h Change: %.2f%%", s.PriceChange24h),
		fmt.Sprintf("Status: %s  Source: %s", s.Status, s.Source),
	}
	if s.OverallSignal != "" {
		lines = append(lines, fmt.Sprintf("Indicators: %s (%d)", s.OverallSignal, len(s.Indicators)))
	}
	lines = append(lines, "Created: "+s.CreatedAt.UTC().Format(time.RFC822))
	return strings.Join(lines, "\n")
}

func formatPrice(v float64) string {
	if v >= 1 {
		return fmt.Sprintf("$%.2f", v)
	}
	return fmt.Sprintf("$%.6f", v)
}
