package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"signal-pipeline/internal/chart"
	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

type stubAnalysis struct {
	analysis   domain.Analysis
	analyzeErr error
	image      *chart.Image
	chartErr   error
	cached     []domain.SignalSummary
	limits     map[string]ratelimit.SourceStatus
}

func (s *stubAnalysis) Symbols() []string { return []string{"BTC", "ETH"} }

func (s *stubAnalysis) Analyze(_ context.Context, symbol string) (domain.Analysis, error) {
	if s.analyzeErr != nil {
		return domain.Analysis{}, s.analyzeErr
	}
	a := s.analysis
	a.Symbol = symbol
	return a, nil
}

func (s *stubAnalysis) Chart(context.Context, string) (*chart.Image, error) {
	return s.image, s.chartErr
}

func (s *stubAnalysis) CachedSignals(context.Context) []domain.SignalSummary { return s.cached }

func (s *stubAnalysis) RateLimits() map[string]ratelimit.SourceStatus { return s.limits }

func newTestCommands(stub *stubAnalysis) *commands {
	return &commands{analysis: stub, timeout: time.Second}
}

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	alerts, err := StartTelegramBot(context.Background(), Config{}, &stubAnalysis{}, zerolog.Nop())
	if err != nil || alerts != nil {
		t.Fatalf("expected no bot without a token, got %v %v", alerts, err)
	}
}

func TestStartTelegramBotCreateError(t *testing.T) {
	orig := newBotFunc
	t.Cleanup(func() { newBotFunc = orig })
	newBotFunc = func(string) (telegramBot, error) { return nil, errors.New("unauthorized") }

	if _, err := StartTelegramBot(context.Background(), Config{Token: "x"}, &stubAnalysis{}, zerolog.Nop()); err == nil {
		t.Fatal("expected create error")
	}
}

type fakeBot struct {
	fakeSender
	mu       sync.Mutex
	handlers map[string]tele.HandlerFunc
	stopped  chan struct{}
}

func (b *fakeBot) Handle(endpoint interface{}, h tele.HandlerFunc, _ ...tele.MiddlewareFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string]tele.HandlerFunc)
	}
	b.handlers[endpoint.(string)] = h
}

func (b *fakeBot) Start() {}

func (b *fakeBot) Stop() { close(b.stopped) }

type fakeContext struct {
	tele.Context
	args []string
	chat *tele.Chat
	sent []interface{}
}

func (c *fakeContext) Args() []string { return c.args }

func (c *fakeContext) Chat() *tele.Chat { return c.chat }

func (c *fakeContext) Notify(tele.ChatAction) error { return nil }

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, what)
	return nil
}

func TestStartTelegramBotRegistersCommands(t *testing.T) {
	fb := &fakeBot{stopped: make(chan struct{})}
	orig := newBotFunc
	t.Cleanup(func() { newBotFunc = orig })
	newBotFunc = func(token string) (telegramBot, error) {
		if token != "secret" {
			t.Fatalf("unexpected token %q", token)
		}
		return fb, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	alerts, err := StartTelegramBot(ctx, Config{Token: "secret", MinConfidence: 70}, &stubAnalysis{}, zerolog.Nop())
	if err != nil || alerts == nil {
		t.Fatalf("expected dispatcher, got %v %v", alerts, err)
	}
	if alerts.minConfidence != 70 {
		t.Fatalf("expected min confidence 70, got %d", alerts.minConfidence)
	}
	for _, cmd := range []string{"/ping", "/signal", "/signals", "/limits", "/alerts"} {
		if fb.handlers[cmd] == nil {
			t.Fatalf("expected %s handler", cmd)
		}
	}

	c := &fakeContext{chat: &tele.Chat{ID: 42}}
	if err := fb.handlers["/ping"](c); err != nil || c.sent[0] != "pong" {
		t.Fatalf("unexpected ping reply: %v %v", c.sent, err)
	}

	c = &fakeContext{chat: &tele.Chat{ID: 42}, args: []string{"on"}}
	_ = fb.handlers["/alerts"](c)
	if !alerts.IsSubscribed(42) || !strings.Contains(c.sent[0].(string), "enabled") {
		t.Fatalf("expected chat 42 subscribed, got %v", c.sent)
	}
	c = &fakeContext{chat: &tele.Chat{ID: 42}}
	_ = fb.handlers["/alerts"](c)
	if c.sent[0] != "Alerts status: ON" {
		t.Fatalf("unexpected status reply: %v", c.sent)
	}
	c = &fakeContext{chat: &tele.Chat{ID: 42}, args: []string{"bogus"}}
	_ = fb.handlers["/alerts"](c)
	if !strings.HasPrefix(c.sent[0].(string), "Usage") {
		t.Fatalf("expected usage reply, got %v", c.sent)
	}

	cancel()
	select {
	case <-fb.stopped:
	case <-time.After(time.Second):
		t.Fatal("bot was not stopped on cancel")
	}
}

func TestSignalCommand(t *testing.T) {
	stub := &stubAnalysis{analysis: analysisWith("", domain.Buy, 72)}
	stub.analysis.Signal.Targets = []float64{110, 120}
	stub.analysis.Signal.Action = "Accumulate on dips"
	h := newTestCommands(stub)

	if got := h.signal(context.Background(), nil).(string); !strings.HasPrefix(got, "Usage: /signal BTC") {
		t.Fatalf("unexpected usage reply: %s", got)
	}
	if got := h.signal(context.Background(), []string{"doge"}).(string); !strings.Contains(got, "Unknown symbol: DOGE") {
		t.Fatalf("unexpected unknown reply: %s", got)
	}

	stub.chartErr = errors.New("charts disabled")
	text, ok := h.signal(context.Background(), []string{"btc"}).(string)
	if !ok {
		t.Fatal("expected text reply without a chart")
	}
	for _, want := range []string{"BTC BUY (72%)", "Targets $110.00 / $120.00", "Accumulate on dips"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in %s", want, text)
		}
	}

	stub.chartErr = nil
	stub.image = &chart.Image{MimeType: "image/png", Bytes: []byte("png")}
	photo, ok := h.signal(context.Background(), []string{"BTC"}).(*tele.Photo)
	if !ok || !strings.HasPrefix(photo.Caption, "BTC BUY") {
		t.Fatalf("expected photo reply, got %#v", photo)
	}

	stub.analyzeErr = errors.New("binance down")
	if got := h.signal(context.Background(), []string{"ETH"}).(string); got != "Analysis unavailable for ETH right now." {
		t.Fatalf("unexpected error reply: %s", got)
	}
}

func TestSignalsCommand(t *testing.T) {
	stub := &stubAnalysis{cached: []domain.SignalSummary{
		{Symbol: "BTC", Signal: domain.Buy, Confidence: 60, Price: 100},
		{Symbol: "ETH", Signal: domain.StrongSell, Confidence: 85, Price: 50},
		{Symbol: "SOL", Signal: domain.Hold, Confidence: 40, Price: 20},
	}}
	h := newTestCommands(stub)

	all := h.signals(context.Background(), nil)
	if strings.Index(all, "ETH") > strings.Index(all, "BTC") {
		t.Fatalf("expected rows sorted by confidence: %s", all)
	}

	buys := h.signals(context.Background(), []string{"buy"})
	if !strings.Contains(buys, "BTC BUY (60%)") || strings.Contains(buys, "ETH") {
		t.Fatalf("unexpected buy list: %s", buys)
	}
	if got := h.signals(context.Background(), []string{"strong_sell"}); !strings.Contains(got, "ETH STRONG_SELL") || strings.Contains(got, "BTC") {
		t.Fatalf("unexpected class list: %s", got)
	}
	if got := h.signals(context.Background(), []string{"weak_buy"}); got != "No matching signals right now." {
		t.Fatalf("unexpected empty reply: %s", got)
	}
	if got := h.signals(context.Background(), []string{"moon"}); !strings.HasPrefix(got, "Usage") {
		t.Fatalf("expected usage, got %s", got)
	}
}

func TestLimitsCommand(t *testing.T) {
	h := newTestCommands(&stubAnalysis{})
	if got := h.limits(); got != "Rate limiting not configured." {
		t.Fatalf("unexpected reply: %s", got)
	}

	h = newTestCommands(&stubAnalysis{limits: map[string]ratelimit.SourceStatus{
		ratelimit.SourceCoinGecko: {AvailableTokens: 10, Capacity: 30, UsagePercent: 66.7, Stats: ratelimit.Stats{TotalRequests: 20}},
		ratelimit.SourceBinance:   {AvailableTokens: 1200, Capacity: 1200},
	}})
	got := h.limits()
	if strings.Index(got, "binance") > strings.Index(got, "coingecko") {
		t.Fatalf("expected sources sorted: %s", got)
	}
	if !strings.Contains(got, "coingecko 10/30 tokens (66.7% used, 20 requests)") {
		t.Fatalf("unexpected limits reply: %s", got)
	}
}
