package models

import "time"

// FeatureVector is the ordered indicator tuple of one (security, date).
type FeatureVector struct {
	Security string
	Date     time.Time
	Values   []float64
}

// Complete reports whether every component is defined.
func (v FeatureVector) Complete() bool {
	for _, x := range v.Values {
		if isNaN(x) {
			return false
		}
	}
	return true
}

// Match is one nearest-neighbour result.
type Match struct {
	Security string    `json:"security"`
	Date     TradeDate `json:"date"`
	Distance float64   `json:"distance"`
}

// PricePoint is one close observation.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// WindowPoint is one point of an anchor-normalised price window.
// Offset is the signed number of trading days from the anchor.
type WindowPoint struct {
	Date       TradeDate `json:"date"`
	Offset     int       `json:"day_offset"`
	Close      Number    `json:"close"`
	Normalized Number    `json:"norm_close"`
}

// MatchPath is a match together with its price path.
type MatchPath struct {
	Match
	Name   string        `json:"name,omitempty"`
	Window []WindowPoint `json:"window"`
}

// PatternResult is the answer to a similarity query.
type PatternResult struct {
	Security   string             `json:"security"`
	Date       TradeDate          `json:"date"`
	Indicators map[string]float64 `json:"indicators"`
	Query      []WindowPoint      `json:"query_window"`
	Matches    []MatchPath        `json:"matches"`
}

// SecurityInfo is the descriptive metadata of a security.
type SecurityInfo struct {
	Security string `json:"security"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
}
