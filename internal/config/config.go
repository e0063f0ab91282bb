package config

import (
	"os"
	"strconv"
	"strings"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"

	"github.com/rs/zerolog/log"
)

const (
	SentimentOpenAI = "openai"
	SentimentGemini = "gemini"
	SentimentNone   = "none"
)

type Config struct {
	RedisURL  string
	LogLevel  string
	LogFormat string

	TrackedCoins        []string
	KlineInterval       string
	KlineLimit          int
	AnalysisTimeoutSecs int
	WarmIntervalSecs    int
	WarmBatch           int
	StreamEnabled       bool
	CORSOrigins         []string

	SentimentProvider string
	OpenAIAPIKey      string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string

	CoinGeckoAPIKey string

	// Upstream endpoints; empty uses the provider defaults.
	BinanceURL       string
	BinanceStreamURL string
	CoinGeckoURL     string
	FearGreedURL     string

	MacroDXY          domain.Opt
	MacroDXYTrend     string
	MacroVIX          domain.Opt
	MacroFedFundsRate domain.Opt
	MacroMarketPhase  string

	QuotasFile string
	Quotas     []ratelimit.Quota

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	TUIMode           string
	TUISSHBind        string
	TUISSHPort        int
	TUIHostKeyPath    string
	TUIAuthorizedKeys string

	TelegramBotToken   string
	AlertMinConfidence int
}

func Load() *Config {
	cfg := &Config{
		RedisURL:        os.Getenv("REDIS_URL"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		CoinGeckoAPIKey: strings.TrimSpace(os.Getenv("COINGECKO_API_KEY")),
		MCPAuthToken:    os.Getenv("MCP_AUTH_TOKEN"),

		BinanceURL:       strings.TrimSpace(os.Getenv("BINANCE_URL")),
		BinanceStreamURL: strings.TrimSpace(os.Getenv("BINANCE_STREAM_URL")),
		CoinGeckoURL:     strings.TrimSpace(os.Getenv("COINGECKO_URL")),
		FearGreedURL:     strings.TrimSpace(os.Getenv("FEAR_GREED_URL")),
	}

	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.LogLevel = envString("LOG_LEVEL", "info")
	cfg.LogFormat = envString("LOG_FORMAT", "json")

	cfg.TrackedCoins = parseSymbols(os.Getenv("TRACKED_COINS"))
	if len(cfg.TrackedCoins) == 0 {
		cfg.TrackedCoins = append([]string(nil), domain.TrackedSymbols...)
	}

	cfg.KlineInterval = envString("KLINE_INTERVAL", "1h")
	cfg.KlineLimit = envInt("KLINE_LIMIT", 200)
	if cfg.KlineLimit > 1000 {
		log.Warn().Int("kline_limit", cfg.KlineLimit).Msg("KLINE_LIMIT above exchange maximum, using 1000")
		cfg.KlineLimit = 1000
	}
	cfg.AnalysisTimeoutSecs = envInt("ANALYSIS_TIMEOUT_SECS", 30)
	cfg.WarmIntervalSecs = envInt("WARM_INTERVAL_SECS", 60)
	cfg.WarmBatch = envInt("WARM_BATCH", 2)
	cfg.StreamEnabled = envBool("STREAM_ENABLED", true)

	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	cfg.OpenAIModel = envString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.GeminiModel = envString("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.SentimentProvider = sentimentProvider(
		strings.ToLower(strings.TrimSpace(os.Getenv("SENTIMENT_PROVIDER"))),
		cfg.OpenAIAPIKey,
		cfg.GeminiAPIKey,
	)

	cfg.MacroDXY = envOpt("MACRO_DXY")
	cfg.MacroDXYTrend = strings.TrimSpace(os.Getenv("MACRO_DXY_TREND"))
	cfg.MacroVIX = envOpt("MACRO_VIX")
	cfg.MacroFedFundsRate = envOpt("MACRO_FED_FUNDS_RATE")
	cfg.MacroMarketPhase = strings.TrimSpace(os.Getenv("MACRO_MARKET_PHASE"))

	cfg.Quotas = ratelimit.DefaultQuotas()
	cfg.QuotasFile = strings.TrimSpace(os.Getenv("QUOTAS_FILE"))
	if cfg.QuotasFile != "" {
		quotas, err := LoadQuotas(cfg.QuotasFile)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.QuotasFile).Msg("invalid quota file, using defaults")
		} else {
			cfg.Quotas = quotas
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Warn().Str("transport", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT, defaulting to stdio")
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")
	cfg.MCPHTTPBind = envString("MCP_HTTP_BIND", "127.0.0.1")
	cfg.MCPHTTPPort = envInt("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = envInt("MCP_REQUEST_TIMEOUT_SECS", 30)
	cfg.MCPRateLimitPerMin = envInt("MCP_RATE_LIMIT_PER_MIN", 60)

	cfg.TUIMode = strings.ToLower(envString("TUI_MODE", "local"))
	if cfg.TUIMode != "local" && cfg.TUIMode != "ssh" {
		log.Warn().Str("mode", cfg.TUIMode).Msg("unsupported TUI_MODE, defaulting to local")
		cfg.TUIMode = "local"
	}
	cfg.TUISSHBind = envString("TUI_SSH_BIND", "127.0.0.1")
	cfg.TUISSHPort = envInt("TUI_SSH_PORT", 2222)
	cfg.TUIHostKeyPath = envString("TUI_HOST_KEY_PATH", ".ssh/tui_ed25519")
	cfg.TUIAuthorizedKeys = strings.TrimSpace(os.Getenv("TUI_AUTHORIZED_KEYS"))

	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.AlertMinConfidence = envInt("ALERT_MIN_CONFIDENCE", 65)
	if cfg.AlertMinConfidence > 100 {
		log.Warn().Int("confidence", cfg.AlertMinConfidence).Msg("ALERT_MIN_CONFIDENCE above 100, using 100")
		cfg.AlertMinConfidence = 100
	}

	return cfg
}

func sentimentProvider(requested, openAIKey, geminiKey string) string {
	switch requested {
	case SentimentOpenAI:
		if openAIKey == "" {
			log.Warn().Msg("SENTIMENT_PROVIDER=openai but OPENAI_API_KEY not set, sentiment disabled")
			return SentimentNone
		}
		return SentimentOpenAI
	case SentimentGemini:
		if geminiKey == "" {
			log.Warn().Msg("SENTIMENT_PROVIDER=gemini but GEMINI_API_KEY not set, sentiment disabled")
			return SentimentNone
		}
		return SentimentGemini
	case SentimentNone:
		return SentimentNone
	case "":
	default:
		log.Warn().Str("provider", requested).Msg("unsupported SENTIMENT_PROVIDER, inferring from API keys")
	}

	switch {
	case openAIKey != "":
		return SentimentOpenAI
	case geminiKey != "":
		return SentimentGemini
	default:
		log.Warn().Msg("no sentiment API key set, sentiment disabled")
		return SentimentNone
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if strings.EqualFold(v, "true") {
		return true
	}
	if strings.EqualFold(v, "false") {
		return false
	}
	return fallback
}

func envOpt(key string) domain.Opt {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return domain.None()
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid number, ignoring")
		return domain.None()
	}
	return domain.Some(n)
}

func parseSymbols(raw string) []string {
	parts := splitList(raw)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		sym := strings.ToUpper(p)
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
