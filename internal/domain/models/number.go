package models

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// DateLayout is the trade date format used across the API and storage.
const DateLayout = "2006-01-02"

// Number is a float64 that encodes NaN and ±Inf as JSON null.
type Number float64

// Float returns the underlying value.
func (n Number) Float() float64 { return float64(n) }

// Valid reports whether n is a finite value.
func (n Number) Valid() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(n))
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*n = Number(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// TradeDate is a calendar date encoded as YYYY-MM-DD.
type TradeDate time.Time

func (d TradeDate) Time() time.Time { return time.Time(d) }

func (d TradeDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).Format(DateLayout))
}

func (d *TradeDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	*d = TradeDate(t)
	return nil
}
