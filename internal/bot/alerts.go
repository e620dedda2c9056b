package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"coinsignal/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AlertDispatcher broadcasts new signals to subscribed chats. Each chat may ask
// for a minimum strength; zero means every signal.
type AlertDispatcher struct {
	sender messageSender

	mu          sync.RWMutex
	subscribers map[int64]int
}

func NewAlertDispatcher(sender messageSender) *AlertDispatcher {
	return &AlertDispatcher{
		sender:      sender,
		subscribers: make(map[int64]int),
	}
}

// Subscribe reports false when the chat was already subscribed with the same
// threshold.
func (d *AlertDispatcher) Subscribe(chatID int64, minStrength int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, exists := d.subscribers[chatID]; exists && prev == minStrength {
		return false
	}
	d.subscribers[chatID] = minStrength
	return true
}

func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; !exists {
		return false
	}
	delete(d.subscribers, chatID)
	return true
}

// Subscription returns the chat's threshold and whether it is subscribed.
func (d *AlertDispatcher) Subscription(chatID int64) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	minStrength, exists := d.subscribers[chatID]
	return minStrength, exists
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// NotifySignals sends each subscribed chat one message with the signals that
// meet its threshold.
func (d *AlertDispatcher) NotifySignals(ctx context.Context, signals []domain.Signal) error {
	if d == nil || d.sender == nil || len(signals) == 0 {
		return nil
	}

	var failures []string
	for _, sub := range d.snapshotSubscribers() {
		if err := ctx.Err(); err != nil {
			return err
		}
		matching := strongEnough(signals, sub.minStrength)
		if len(matching) == 0 {
			continue
		}
		if _, err := d.sender.Send(&tele.Chat{ID: sub.chatID}, formatAlertMessage(matching)); err != nil {
			failures = append(failures, fmt.Sprintf("chat %d: %v", sub.chatID, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("failed sending %d alerts: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

type subscription struct {
	chatID      int64
	minStrength int
}

func (d *AlertDispatcher) snapshotSubscribers() []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subs := make([]subscription, 0, len(d.subscribers))
	for chatID, minStrength := range d.subscribers {
		subs = append(subs, subscription{chatID: chatID, minStrength: minStrength})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].chatID < subs[j].chatID })
	return subs
}

func strongEnough(signals []domain.Signal, minStrength int) []domain.Signal {
	if minStrength <= 0 {
		return signals
	}
	out := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Strength >= minStrength {
			out = append(out, s)
		}
	}
	return out
}

type alertCommand struct {
	mode        string
	minStrength int
}

// parseAlertMode reads "/alerts [on [min_strength]|off|status]".
func parseAlertMode(args []string) (alertCommand, error) {
	if len(args) == 0 {
		return alertCommand{mode: "status"}, nil
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on":
		cmd := alertCommand{mode: "on"}
		if len(args) > 1 {
			n, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil || n < 1 || n > 100 {
				return alertCommand{}, fmt.Errorf("min strength must be between 1 and 100")
			}
			cmd.minStrength = n
		}
		return cmd, nil
	case "off":
		return alertCommand{mode: "off"}, nil
	case "status":
		return alertCommand{mode: "status"}, nil
	default:
		return alertCommand{}, fmt.Errorf("invalid mode")
	}
}

func formatAlertMessage(signals []domain.Signal) string {
	lines := make([]string, 0, len(signals)+1)
	lines = append(lines, "New signals:")
	for _, s := range signals {
		lines = append(lines, formatSignal(s))
	}
	return strings.Join(lines, "\n")
}
