package domain

import (
	"strings"
	"time"
)

// TrackedSymbols is the default set of coins analysed by the service.
var TrackedSymbols = []string{
	"BTC", "ETH", "SOL", "BNB", "AVAX", "LINK", "MATIC", "DOT",
	"ADA", "XRP", "INJ", "SEI", "ARB", "OP", "TIA", "SUI",
}

// CoinGeckoID maps tracked symbols to CoinGecko coin ids.
var CoinGeckoID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"BNB":   "binancecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"DOT":   "polkadot",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"INJ":   "injective-protocol",
	"SEI":   "sei-network",
	"ARB":   "arbitrum",
	"OP":    "optimism",
	"TIA":   "celestia",
	"SUI":   "sui",
}

// NormalizeSymbol upper-cases and trims a user supplied symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Ticker is a 24 hour market snapshot for one symbol.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	Volume24h float64   `json:"volume_24h"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Timestamp time.Time `json:"timestamp"`
}

type MacroContext struct {
	DXY          Opt    `json:"dxy"`
	DXYTrend     string `json:"dxy_trend,omitempty"`
	VIX          Opt    `json:"vix"`
	FedFundsRate Opt    `json:"fed_funds_rate"`
	FearGreed    Opt    `json:"fear_greed_index"`
	MarketPhase  string `json:"market_phase,omitempty"`
}

// Empty reports whether no macro index is available.
func (m MacroContext) Empty() bool {
	return !m.DXY.Valid && !m.VIX.Valid && !m.FedFundsRate.Valid && !m.FearGreed.Valid
}

// SentimentResult is the advisory output of the external sentiment provider.
type SentimentResult struct {
	Symbol             string      `json:"coin"`
	Rating             SignalClass `json:"rating"`
	Confidence         int         `json:"confidence"`
	Timeframe          Timeframe   `json:"timeframe"`
	EntryLow           Opt         `json:"entry_zone_low"`
	EntryHigh          Opt         `json:"entry_zone_high"`
	TargetConservative Opt         `json:"target_conservative"`
	TargetAggressive   Opt         `json:"target_aggressive"`
	StopLoss           Opt         `json:"stop_loss"`
	RiskReward         Opt         `json:"risk_reward_ratio"`
	PositionSizePct    Opt         `json:"position_size_pct"`
	Reasoning          string      `json:"reasoning"`
	KeyFactors         []string    `json:"key_factors"`
	Risks              []string    `json:"risks"`
	Timestamp          time.Time   `json:"timestamp"`
}

type IndicatorBundle struct {
	Price          float64       `json:"current_price"`
	RSI            Opt           `json:"rsi"`
	RSIClass       MomentumClass `json:"rsi_signal"`
	MACD           Opt           `json:"macd"`
	MACDSignal     Opt           `json:"macd_signal_line"`
	MACDHistogram  Opt           `json:"macd_histogram"`
	MACDClass      MACDClass     `json:"macd_signal"`
	BBUpper        Opt           `json:"bb_upper"`
	BBMiddle       Opt           `json:"bb_middle"`
	BBLower        Opt           `json:"bb_lower"`
	BBClass        BandClass     `json:"bb_signal"`
	EMA20          Opt           `json:"ema_20"`
	EMA50          Opt           `json:"ema_50"`
	EMA200         Opt           `json:"ema_200"`
	Trend          TrendClass    `json:"trend"`
	VolumeRatio    Opt           `json:"volume_ratio"`
	TechnicalScore int           `json:"technical_score"`
}

type FusedSignal struct {
	Symbol          string      `json:"coin"`
	Class           SignalClass `json:"signal"`
	OverallScore    int         `json:"overall_score"`
	Confidence      int         `json:"confidence"`
	TechnicalScore  int         `json:"technical_score"`
	MacroScore      OptInt      `json:"macro_score"`
	SentimentScore  OptInt      `json:"sentiment_score"`
	Action          string      `json:"action"`
	Entry           EntryZone   `json:"entry_zone"`
	Targets         []float64   `json:"targets"`
	StopLoss        Opt         `json:"stop_loss"`
	PositionSizePct float64     `json:"position_size_pct"`
	Timeframe       string      `json:"timeframe"`
	GeneratedAt     time.Time   `json:"timestamp"`
}

// Analysis is the full pipeline result for one symbol and the cached signal document.
type Analysis struct {
	Symbol      string           `json:"coin"`
	Ticker      Ticker           `json:"price"`
	Indicators  IndicatorBundle  `json:"technical"`
	Macro       *MacroContext    `json:"macro,omitempty"`
	Sentiment   *SentimentResult `json:"ai_analysis,omitempty"`
	Signal      FusedSignal      `json:"signal"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// SignalSummary is the list view of a cached analysis.
type SignalSummary struct {
	Symbol     string      `json:"symbol"`
	Signal     SignalClass `json:"signal"`
	Confidence int         `json:"confidence"`
	Price      float64     `json:"price"`
	Change24h  float64     `json:"change_24h"`
}

func (a Analysis) Summary() SignalSummary {
	return SignalSummary{
		Symbol:     a.Symbol,
		Signal:     a.Signal.Class,
		Confidence: a.Signal.Confidence,
		Price:      a.Ticker.Price,
		Change24h:  a.Ticker.Change24h,
	}
}

type MarketMover struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Change24h float64 `json:"change_24h"`
	Price     float64 `json:"price"`
}

type GlobalMarket struct {
	TotalMarketCapUSD  float64 `json:"total_market_cap_usd"`
	TotalVolume24hUSD  float64 `json:"total_volume_24h_usd"`
	BTCDominance       float64 `json:"btc_dominance"`
	ETHDominance       float64 `json:"eth_dominance"`
	MarketCapChange24h float64 `json:"market_cap_change_24h"`
}

type FearGreed struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
}

// Opportunity is one tracked coin's current call in a MorningBrief.
type Opportunity struct {
	Coin       string      `json:"coin"`
	Signal     SignalClass `json:"signal"`
	Confidence int         `json:"confidence"`
}

type MorningBrief struct {
	Date             string        `json:"date"`
	MarketStatus     string        `json:"market_status"`
	TopOpportunities []Opportunity `json:"top_opportunities"`
	MacroAlerts      []string      `json:"macro_alerts"`
	RiskLevel        string        `json:"risk_level"`
	FearGreed        Opt           `json:"fear_greed"`
}

type MarketOverview struct {
	TotalMarketCap     float64       `json:"total_market_cap"`
	BTCDominance       float64       `json:"btc_dominance"`
	MarketCapChange24h float64       `json:"market_cap_change_24h"`
	FearGreedIndex     Opt           `json:"fear_greed_index"`
	TopGainers         []MarketMover `json:"top_gainers"`
	TopLosers          []MarketMover `json:"top_losers"`
}
