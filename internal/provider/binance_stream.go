package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"signal-pipeline/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DefaultBinanceStreamURL = "wss://stream.binance.com:9443"

	streamReadTimeout = 30 * time.Second
	streamPingEvery   = 15 * time.Second
	streamMaxBackoff  = 30 * time.Second
)

// PriceSink receives live ticker updates.
type PriceSink interface {
	SetPrice(ctx context.Context, symbol string, t domain.Ticker)
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   streamTickerMsg `json:"data"`
}

type streamTickerMsg struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	ChangePct string `json:"P"`
	Volume    string `json:"v"`
	High      string `json:"h"`
	Low       string `json:"l"`
}

// BinanceStream keeps the price cache warm from the combined 24hr ticker stream.
type BinanceStream struct {
	baseURL   string
	symbols   []string
	sink      PriceSink
	log       zerolog.Logger
	dialer    websocket.Dialer
	connected atomic.Bool
	backoff   time.Duration
}

func NewBinanceStream(baseURL string, symbols []string, sink PriceSink, log zerolog.Logger) *BinanceStream {
	if baseURL == "" {
		baseURL = DefaultBinanceStreamURL
	}
	return &BinanceStream{
		baseURL: strings.TrimRight(baseURL, "/"),
		symbols: symbols,
		sink:    sink,
		log:     log.With().Str("component", "binance-stream").Logger(),
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff: time.Second,
	}
}

// Connected reports whether a stream session is currently open.
func (s *BinanceStream) Connected() bool {
	return s.connected.Load()
}

func (s *BinanceStream) streamURL() string {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(pairFor(sym)) + "@ticker"
	}
	return fmt.Sprintf("%s/stream?streams=%s", s.baseURL, strings.Join(streams, "/"))
}

// Run consumes the stream until ctx is done, reconnecting with capped
// exponential backoff.
func (s *BinanceStream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return errors.New("binance stream requires at least one symbol")
	}

	url := s.streamURL()
	backoff := s.backoff
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		received, err := s.consume(ctx, url)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			backoff = s.backoff
		}
		s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("binance stream disconnected, retrying")
		if err := sleepContext(ctx, backoff); err != nil {
			return err
		}
		backoff = time.Duration(math.Min(float64(streamMaxBackoff), float64(backoff)*1.8))
	}
}

func (s *BinanceStream) consume(ctx context.Context, url string) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	s.connected.Store(true)
	defer s.connected.Store(false)
	s.log.Info().Strs("symbols", s.symbols).Msg("connected ticker stream")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(streamPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					s.log.Warn().Err(err).Msg("binance ping failed")
					return
				}
			case <-pingCtx.Done():
				// unblock ReadMessage on shutdown
				_ = conn.SetReadDeadline(time.Now())
				return
			}
		}
	}()

	received := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		ticker, ok := s.decode(message)
		if !ok {
			continue
		}
		received = true
		s.sink.SetPrice(ctx, ticker.Symbol, ticker)
	}
}

func (s *BinanceStream) decode(message []byte) (domain.Ticker, bool) {
	var env streamEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.log.Warn().Err(err).Msg("failed to decode binance message")
		return domain.Ticker{}, false
	}
	if env.Data.Event != "24hrTicker" {
		return domain.Ticker{}, false
	}

	symbol := strings.TrimSuffix(strings.ToUpper(env.Data.Symbol), quoteAsset)
	if symbol == "" {
		symbol = parseStreamSymbol(env.Stream)
	}
	values := [5]float64{}
	for i, raw := range [5]string{env.Data.Close, env.Data.ChangePct, env.Data.Volume, env.Data.High, env.Data.Low} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("invalid ticker field from binance")
			return domain.Ticker{}, false
		}
		values[i] = v
	}

	ts := time.Now().UTC()
	if env.Data.EventTime > 0 {
		ts = time.UnixMilli(env.Data.EventTime).UTC()
	}
	return domain.Ticker{
		Symbol:    symbol,
		Price:     values[0],
		Change24h: values[1],
		Volume24h: values[2],
		High24h:   values[3],
		Low24h:    values[4],
		Timestamp: ts,
	}, true
}

func parseStreamSymbol(stream string) string {
	pair, _, _ := strings.Cut(stream, "@")
	return strings.TrimSuffix(strings.ToUpper(pair), quoteAsset)
}
