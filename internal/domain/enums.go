package domain

import (
	"fmt"
	"strings"
)

type enumNames []string

func (n enumNames) name(i int) (string, bool) {
	if i < 0 || i >= len(n) || n[i] == "" {
		return "", false
	}
	return n[i], true
}

func (n enumNames) parse(kind, s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range n {
		if name != "" && name == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("invalid %s: %q", kind, s)
}

// SignalClass is the 7-point signal scale. The zero value is not a valid class.
type SignalClass int

const (
	StrongSell SignalClass = iota + 1
	Sell
	WeakSell
	Hold
	WeakBuy
	Buy
	StrongBuy
)

var signalClassNames = enumNames{"", "STRONG_SELL", "SELL", "WEAK_SELL", "HOLD", "WEAK_BUY", "BUY", "STRONG_BUY"}

func ParseSignalClass(s string) (SignalClass, error) {
	i, err := signalClassNames.parse("signal class", s)
	return SignalClass(i), err
}

func (c SignalClass) IsValid() bool { return c >= StrongSell && c <= StrongBuy }

func (c SignalClass) IsBuy() bool { return c == Buy || c == StrongBuy }

func (c SignalClass) IsSell() bool { return c == WeakSell || c == Sell || c == StrongSell }

func (c SignalClass) String() string {
	if name, ok := signalClassNames.name(int(c)); ok {
		return name
	}
	return fmt.Sprintf("SignalClass(%d)", int(c))
}

func (c SignalClass) MarshalText() ([]byte, error) {
	name, ok := signalClassNames.name(int(c))
	if !ok {
		return nil, fmt.Errorf("invalid signal class %d", int(c))
	}
	return []byte(name), nil
}

func (c *SignalClass) UnmarshalText(text []byte) error {
	v, err := ParseSignalClass(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Timeframe is the holding horizon suggested by the sentiment provider.
type Timeframe int

const (
	Scalp Timeframe = iota + 1
	Day
	Swing
	Position
)

var timeframeNames = enumNames{"", "SCALP", "DAY", "SWING", "POSITION"}

func ParseTimeframe(s string) (Timeframe, error) {
	i, err := timeframeNames.parse("timeframe", s)
	return Timeframe(i), err
}

func (t Timeframe) IsValid() bool { return t >= Scalp && t <= Position }

func (t Timeframe) String() string {
	if name, ok := timeframeNames.name(int(t)); ok {
		return name
	}
	return fmt.Sprintf("Timeframe(%d)", int(t))
}

func (t Timeframe) MarshalText() ([]byte, error) {
	name, ok := timeframeNames.name(int(t))
	if !ok {
		return nil, fmt.Errorf("invalid timeframe %d", int(t))
	}
	return []byte(name), nil
}

func (t *Timeframe) UnmarshalText(text []byte) error {
	v, err := ParseTimeframe(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type MomentumClass int

const (
	MomentumNeutral MomentumClass = iota
	MomentumOversold
	MomentumBearish
	MomentumBullish
	MomentumOverbought
)

var momentumNames = enumNames{"NEUTRAL", "OVERSOLD", "BEARISH", "BULLISH", "OVERBOUGHT"}

func (m MomentumClass) String() string {
	name, _ := momentumNames.name(int(m))
	return name
}

func (m MomentumClass) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MomentumClass) UnmarshalText(text []byte) error {
	i, err := momentumNames.parse("momentum class", string(text))
	*m = MomentumClass(i)
	return err
}

type MACDClass int

const (
	MACDNeutral MACDClass = iota
	MACDBullish
	MACDBearish
)

var macdNames = enumNames{"NEUTRAL", "BULLISH", "BEARISH"}

func (m MACDClass) String() string {
	name, _ := macdNames.name(int(m))
	return name
}

func (m MACDClass) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MACDClass) UnmarshalText(text []byte) error {
	i, err := macdNames.parse("macd class", string(text))
	*m = MACDClass(i)
	return err
}

// BandClass is the price position relative to the Bollinger channel.
type BandClass int

const (
	BandNeutral BandClass = iota
	BandOversold
	BandOverbought
	BandSqueeze
)

var bandNames = enumNames{"NEUTRAL", "OVERSOLD", "OVERBOUGHT", "SQUEEZE"}

func (b BandClass) String() string {
	name, _ := bandNames.name(int(b))
	return name
}

func (b BandClass) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *BandClass) UnmarshalText(text []byte) error {
	i, err := bandNames.parse("band class", string(text))
	*b = BandClass(i)
	return err
}

type TrendClass int

const (
	TrendUnknown TrendClass = iota
	TrendStrongUp
	TrendUp
	TrendSideways
	TrendDown
	TrendStrongDown
)

var trendNames = enumNames{"UNKNOWN", "STRONG_UPTREND", "UPTREND", "SIDEWAYS", "DOWNTREND", "STRONG_DOWNTREND"}

func (t TrendClass) String() string {
	name, _ := trendNames.name(int(t))
	return name
}

func (t TrendClass) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TrendClass) UnmarshalText(text []byte) error {
	i, err := trendNames.parse("trend class", string(text))
	*t = TrendClass(i)
	return err
}
