package domain

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// Opt is a float that may be unavailable. The zero value is unavailable.
type Opt struct {
	Value float64
	Valid bool
}

func Some(v float64) Opt { return Opt{Value: v, Valid: true} }

func None() Opt { return Opt{} }

func (o Opt) Get() (float64, bool) { return o.Value, o.Valid }

// Or returns the value when available, otherwise fallback.
func (o Opt) Or(fallback float64) float64 {
	if o.Valid {
		return o.Value
	}
	return fallback
}

func (o Opt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return jsonNull, nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*o = Opt{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// OptInt is an int that may be unavailable.
type OptInt struct {
	Value int
	Valid bool
}

func SomeInt(v int) OptInt { return OptInt{Value: v, Valid: true} }

func (o OptInt) Get() (int, bool) { return o.Value, o.Valid }

func (o OptInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return jsonNull, nil
	}
	return json.Marshal(o.Value)
}

func (o *OptInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*o = OptInt{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = SomeInt(v)
	return nil
}
