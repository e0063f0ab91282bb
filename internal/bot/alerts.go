package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"signal-pipeline/internal/domain"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

const defaultAlertConfidence = 65

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AlertDispatcher broadcasts signal class changes to subscribed chats.
type AlertDispatcher struct {
	sender        messageSender
	minConfidence int
	log           zerolog.Logger

	mu          sync.RWMutex
	subscribers map[int64]struct{}
	last        map[string]domain.SignalClass
}

func NewAlertDispatcher(sender messageSender, minConfidence int, log zerolog.Logger) *AlertDispatcher {
	if minConfidence <= 0 {
		minConfidence = defaultAlertConfidence
	}
	return &AlertDispatcher{
		sender:        sender,
		minConfidence: minConfidence,
		log:           log.With().Str("component", "telegram-alerts").Logger(),
		subscribers:   make(map[int64]struct{}),
		last:          make(map[string]domain.SignalClass),
	}
}

func (d *AlertDispatcher) Subscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; exists {
		return false
	}
	d.subscribers[chatID] = struct{}{}
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

func (d *AlertDispatcher) IsSubscribed(chatID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.subscribers[chatID]
	return exists
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// NotifyAnalyses sends one message listing every symbol whose class changed
// to a non-hold class with at least the configured confidence. The first
// analysis seen for a symbol only records its class.
func (d *AlertDispatcher) NotifyAnalyses(ctx context.Context, analyses []domain.Analysis) error {
	if d == nil || len(analyses) == 0 {
		return nil
	}

	changed := d.changes(analyses)
	if len(changed) == 0 || d.sender == nil {
		return nil
	}

	chatIDs := d.snapshotSubscribers()
	if len(chatIDs) == 0 {
		return nil
	}

	msg := formatAlertMessage(changed)
	var failures []string
	for _, chatID := range chatIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := d.sender.Send(&tele.Chat{ID: chatID}, msg); err != nil {
			failures = append(failures, fmt.Sprintf("chat %d: %v", chatID, err))
		}
	}
	d.log.Info().Int("signals", len(changed)).Int("chats", len(chatIDs)).Msg("signal alerts sent")
	if len(failures) > 0 {
		return fmt.Errorf("failed sending %d alerts: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

func (d *AlertDispatcher) changes(analyses []domain.Analysis) []domain.Analysis {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []domain.Analysis
	for _, a := range analyses {
		prev, seen := d.last[a.Symbol]
		d.last[a.Symbol] = a.Signal.Class
		if !seen || prev == a.Signal.Class {
			continue
		}
		if a.Signal.Class == domain.Hold || a.Signal.Confidence < d.minConfidence {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (d *AlertDispatcher) snapshotSubscribers() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	chatIDs := make([]int64, 0, len(d.subscribers))
	for chatID := range d.subscribers {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })
	return chatIDs
}

func parseAlertMode(args []string) (string, error) {
	if len(args) == 0 {
		return "status", nil
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on":
		return "on", nil
	case "off":
		return "off", nil
	case "status":
		return "status", nil
	default:
		return "", fmt.Errorf("invalid mode")
	}
}

func formatAlertMessage(analyses []domain.Analysis) string {
	lines := make([]string, 0, len(analyses)+1)
	lines = append(lines, "Signal alert:")
	for _, a := range analyses {
		lines = append(lines, formatSignalLine(a))
	}
	return strings.Join(lines, "\n")
}

func formatSignalLine(a domain.Analysis) string {
	line := fmt.Sprintf("%s %s (%d%%) at $%.2f, entry %s",
		a.Symbol, a.Signal.Class, a.Signal.Confidence, a.Ticker.Price, a.Signal.Entry)
	if stop, ok := a.Signal.StopLoss.Get(); ok {
		line += fmt.Sprintf(", stop $%.2f", stop)
	}
	return line
}
