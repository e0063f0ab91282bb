package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSignalClassTextRoundTrip(t *testing.T) {
	for c := StrongSell; c <= StrongBuy; c++ {
		text, err := c.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", c, err)
		}
		var got SignalClass
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %s: %v", text, err)
		}
		if got != c {
			t.Fatalf("expected %s, got %s", c, got)
		}
	}
}

func TestSignalClassRejectsUnknown(t *testing.T) {
	if _, err := ParseSignalClass("MOON"); err == nil {
		t.Fatal("expected error for unknown rating")
	}
	if _, err := SignalClass(0).MarshalText(); err == nil {
		t.Fatal("expected zero class to be unmarshalable")
	}
	if c, err := ParseSignalClass(" weak_buy "); err != nil || c != WeakBuy {
		t.Fatalf("expected WEAK_BUY, got %v %v", c, err)
	}
}

func TestSignalClassGroups(t *testing.T) {
	if !Buy.IsBuy() || !StrongBuy.IsBuy() || WeakBuy.IsBuy() {
		t.Fatal("unexpected buy grouping")
	}
	if !WeakSell.IsSell() || !StrongSell.IsSell() || Hold.IsSell() {
		t.Fatal("unexpected sell grouping")
	}
}

func TestTimeframeParse(t *testing.T) {
	tf, err := ParseTimeframe("swing")
	if err != nil || tf != Swing {
		t.Fatalf("expected SWING, got %v %v", tf, err)
	}
	if _, err := ParseTimeframe("YEARLY"); err == nil {
		t.Fatal("expected error for unknown timeframe")
	}
}

func TestOptJSON(t *testing.T) {
	body, err := json.Marshal(struct {
		A Opt    `json:"a"`
		B Opt    `json:"b"`
		C OptInt `json:"c"`
	}{A: Some(1.5), B: None()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"a":1.5,"b":null,"c":null}` {
		t.Fatalf("unexpected json: %s", body)
	}

	var back struct {
		A Opt    `json:"a"`
		B Opt    `json:"b"`
		C OptInt `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":2,"b":null,"c":7}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := back.A.Get(); !ok || v != 2 {
		t.Fatalf("unexpected a: %+v", back.A)
	}
	if back.B.Valid {
		t.Fatalf("expected b unavailable: %+v", back.B)
	}
	if v, ok := back.C.Get(); !ok || v != 7 {
		t.Fatalf("unexpected c: %+v", back.C)
	}
	if None().Or(3) != 3 || Some(1).Or(3) != 1 {
		t.Fatal("unexpected Or fallback")
	}
}

func TestEntryZoneLabels(t *testing.T) {
	cases := []struct {
		zone EntryZone
		want string
	}{
		{RangeEntry(98, 102), "$98-$102"},
		{MarketEntry(100.4), "Current price ($100)"},
		{WaitEntry(), "Wait for better setup"},
	}
	for _, tc := range cases {
		if got := tc.zone.String(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestEntryZoneJSONRoundTrip(t *testing.T) {
	body, err := json.Marshal(RangeEntry(98, 102))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back EntryZone
	if err := json.Unmarshal(body, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != RangeEntry(98, 102) {
		t.Fatalf("unexpected entry zone: %+v", back)
	}
}

func TestAnalysisSummary(t *testing.T) {
	a := Analysis{
		Symbol: "ETH",
		Ticker: Ticker{Symbol: "ETHUSDT", Price: 3000, Change24h: -2.5, Timestamp: time.Unix(0, 0).UTC()},
		Signal: FusedSignal{Class: Buy, Confidence: 61},
	}
	s := a.Summary()
	if s.Symbol != "ETH" || s.Signal != Buy || s.Confidence != 61 || s.Price != 3000 || s.Change24h != -2.5 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestMacroContextEmpty(t *testing.T) {
	if !(MacroContext{}).Empty() {
		t.Fatal("expected zero macro context to be empty")
	}
	if (MacroContext{VIX: Some(18)}).Empty() {
		t.Fatal("expected macro context with VIX to be non-empty")
	}
}
