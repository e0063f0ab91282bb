package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type EntryKind int

const (
	// EntryWait means no entry is recommended yet.
	EntryWait EntryKind = iota
	// EntryRange is a buy band between Low and High.
	EntryRange
	// EntryMarket is an exit at the current price held in Low.
	EntryMarket
)

var entryKindNames = enumNames{"wait", "range", "market"}

// EntryZone is the recommended entry for a signal.
type EntryZone struct {
	Kind EntryKind
	Low  float64
	High float64
}

func WaitEntry() EntryZone { return EntryZone{Kind: EntryWait} }

func RangeEntry(low, high float64) EntryZone {
	return EntryZone{Kind: EntryRange, Low: low, High: high}
}

func MarketEntry(price float64) EntryZone {
	return EntryZone{Kind: EntryMarket, Low: price, High: price}
}

func (e EntryZone) String() string {
	switch e.Kind {
	case EntryRange:
		return fmt.Sprintf("$%s-$%s", dollars(e.Low), dollars(e.High))
	case EntryMarket:
		return fmt.Sprintf("Current price ($%s)", dollars(e.Low))
	default:
		return "Wait for better setup"
	}
}

func dollars(v float64) string {
	return decimal.NewFromFloat(v).Round(0).String()
}

type entryZoneJSON struct {
	Kind  string   `json:"kind"`
	Low   *float64 `json:"low,omitempty"`
	High  *float64 `json:"high,omitempty"`
	Label string   `json:"label"`
}

func (e EntryZone) MarshalJSON() ([]byte, error) {
	kind, ok := entryKindNames.name(int(e.Kind))
	if !ok {
		return nil, fmt.Errorf("invalid entry kind %d", int(e.Kind))
	}
	out := entryZoneJSON{Kind: kind, Label: e.String()}
	if e.Kind != EntryWait {
		low, high := e.Low, e.High
		out.Low, out.High = &low, &high
	}
	return json.Marshal(out)
}

func (e *EntryZone) UnmarshalJSON(data []byte) error {
	var in entryZoneJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	for i, name := range entryKindNames {
		if name == in.Kind {
			*e = EntryZone{Kind: EntryKind(i)}
			if in.Low != nil {
				e.Low = *in.Low
			}
			if in.High != nil {
				e.High = *in.High
			}
			return nil
		}
	}
	return fmt.Errorf("invalid entry kind %q", in.Kind)
}
