package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"signal-pipeline/internal/chart"
	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

const maxListedSignals = 10

type AnalysisQuerier interface {
	Symbols() []string
	Analyze(ctx context.Context, symbol string) (domain.Analysis, error)
	Chart(ctx context.Context, symbol string) (*chart.Image, error)
	CachedSignals(ctx context.Context) []domain.SignalSummary
	RateLimits() map[string]ratelimit.SourceStatus
}

type Config struct {
	Token         string
	MinConfidence int
	Timeout       time.Duration
}

type telegramBot interface {
	messageSender
	Handle(endpoint interface{}, h tele.HandlerFunc, m ...tele.MiddlewareFunc)
	Start()
	Stop()
}

var newBotFunc = func(token string) (telegramBot, error) {
	return tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
}

// StartTelegramBot registers the chat commands and starts polling until ctx
// is cancelled. It returns a nil dispatcher when no token is configured.
func StartTelegramBot(ctx context.Context, cfg Config, analysis AnalysisQuerier, log zerolog.Logger) (*AlertDispatcher, error) {
	log = log.With().Str("component", "telegram").Logger()
	if cfg.Token == "" {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	b, err := newBotFunc(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	alerts := NewAlertDispatcher(b, cfg.MinConfidence, log)
	cmds := &commands{analysis: analysis, timeout: cfg.Timeout}
	if cmds.timeout <= 0 {
		cmds.timeout = 30 * time.Second
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/signal", func(c tele.Context) error {
		_ = c.Notify(tele.Typing)
		return c.Send(cmds.signal(ctx, c.Args()))
	})

	b.Handle("/signals", func(c tele.Context) error {
		return c.Send(cmds.signals(ctx, c.Args()))
	})

	b.Handle("/limits", func(c tele.Context) error {
		return c.Send(cmds.limits())
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Signal alerts enabled for this chat.")
			}
			return c.Send("Signal alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Signal alerts disabled for this chat.")
			}
			return c.Send("Signal alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	go b.Start()
	log.Info().Int("min_confidence", alerts.minConfidence).Msg("telegram bot started")
	return alerts, nil
}

type commands struct {
	analysis AnalysisQuerier
	timeout  time.Duration
}

// signal replies with a chart photo captioned with the analysis, or with text
// when no chart can be drawn.
func (h *commands) signal(ctx context.Context, args []string) interface{} {
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /signal BTC\nTracked: %s", strings.Join(h.analysis.Symbols(), ", "))
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	symbol := domain.NormalizeSymbol(args[0])
	if !slices.Contains(h.analysis.Symbols(), symbol) {
		return fmt.Sprintf("Unknown symbol: %s\nTracked: %s", symbol, strings.Join(h.analysis.Symbols(), ", "))
	}
	a, err := h.analysis.Analyze(ctx, symbol)
	if err != nil {
		return fmt.Sprintf("Analysis unavailable for %s right now.", symbol)
	}

	caption := formatAnalysis(a)
	img, err := h.analysis.Chart(ctx, symbol)
	if err != nil || img == nil || len(img.Bytes) == 0 {
		return caption
	}
	return &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(img.Bytes)),
		Caption: caption,
	}
}

func (h *commands) signals(ctx context.Context, args []string) string {
	filter, err := parseSignalFilter(args)
	if err != nil {
		return "Usage: /signals | /signals buy | /signals sell"
	}

	var rows []domain.SignalSummary
	for _, s := range h.analysis.CachedSignals(ctx) {
		if filter(s.Signal) {
			rows = append(rows, s)
		}
	}
	if len(rows) == 0 {
		return "No matching signals right now."
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Confidence > rows[j].Confidence })
	if len(rows) > maxListedSignals {
		rows = rows[:maxListedSignals]
	}

	lines := []string{"Latest signals:"}
	for _, s := range rows {
		lines = append(lines, fmt.Sprintf("%s %s (%d%%) $%.2f %+.2f%%", s.Symbol, s.Signal, s.Confidence, s.Price, s.Change24h))
	}
	return strings.Join(lines, "\n")
}

func (h *commands) limits() string {
	status := h.analysis.RateLimits()
	if len(status) == 0 {
		return "Rate limiting not configured."
	}
	sources := make([]string, 0, len(status))
	for src := range status {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	lines := []string{"Rate limits:"}
	for _, src := range sources {
		st := status[src]
		lines = append(lines, fmt.Sprintf("%s %.0f/%.0f tokens (%.1f%% used, %d requests)",
			src, st.AvailableTokens, st.Capacity, st.UsagePercent, st.Stats.TotalRequests))
	}
	return strings.Join(lines, "\n")
}

func parseSignalFilter(args []string) (func(domain.SignalClass) bool, error) {
	if len(args) == 0 {
		return func(domain.SignalClass) bool { return true }, nil
	}
	if len(args) > 1 {
		return nil, errors.New("too many arguments")
	}
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "all":
		return func(domain.SignalClass) bool { return true }, nil
	case "buy":
		return func(c domain.SignalClass) bool { return c > domain.Hold }, nil
	case "sell":
		return func(c domain.SignalClass) bool { return c.IsValid() && c < domain.Hold }, nil
	case "hold":
		return func(c domain.SignalClass) bool { return c == domain.Hold }, nil
	}
	class, err := domain.ParseSignalClass(args[0])
	if err != nil {
		return nil, err
	}
	return func(c domain.SignalClass) bool { return c == class }, nil
}

func formatAnalysis(a domain.Analysis) string {
	sig := a.Signal
	lines := []string{
		formatSignalLine(a),
		fmt.Sprintf("Score %d (technical %d)", sig.OverallScore, sig.TechnicalScore),
	}
	if len(sig.Targets) > 0 {
		targets := make([]string, len(sig.Targets))
		for i, t := range sig.Targets {
			targets[i] = fmt.Sprintf("$%.2f", t)
		}
		lines = append(lines, "Targets "+strings.Join(targets, " / "))
	}
	if sig.Action != "" {
		lines = append(lines, sig.Action)
	}
	return strings.Join(lines, "\n")
}
