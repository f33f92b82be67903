package features

import (
	"fmt"
	"math"
	"time"

	"AlphaLab/internal/domain/models"
	"AlphaLab/internal/services/operators"
)

// ForwardReturns computes r_t = C_{t+h} / C_t - 1 over a date-ordered close series.
// The last h positions, and any position with a non-positive base, are NaN.
func ForwardReturns(closes []float64, h int) ([]float64, error) {
	if h < 1 {
		return nil, fmt.Errorf("horizon %d: %w", h, operators.ErrInvalidWindow)
	}
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = math.NaN()
		if i+h >= len(closes) {
			continue
		}
		base, next := closes[i], closes[i+h]
		if base <= 0 || math.IsNaN(base) || math.IsNaN(next) {
			continue
		}
		out[i] = next/base - 1
	}
	return out, nil
}

// AttachForwardReturns adds column out holding the h-session forward return of closeCol per security.
func AttachForwardReturns(p *models.Panel, closeCol, out string, h int) error {
	fwd, err := operators.ApplyTimeSeries(p, []string{closeCol}, func(cols [][]float64) ([]float64, error) {
		return ForwardReturns(cols[0], h)
	})
	if err != nil {
		return fmt.Errorf("forward returns: %w", err)
	}
	return p.SetColumn(out, fwd)
}

// LookbackStart returns a calendar date far enough before end to cover roughly
// tradingDays sessions, allowing for weekends and holidays.
func LookbackStart(end time.Time, tradingDays int) time.Time {
	if tradingDays <= 0 {
		return end
	}
	return end.AddDate(0, 0, -int(math.Ceil(float64(tradingDays)*1.5)))
}

// LookaheadEnd is the forward counterpart of LookbackStart.
func LookaheadEnd(start time.Time, tradingDays int) time.Time {
	if tradingDays <= 0 {
		return start
	}
	return start.AddDate(0, 0, int(math.Ceil(float64(tradingDays)*1.5))+7)
}

// TrimDates keeps the last n dates of an ascending list.
func TrimDates(dates []time.Time, n int) []time.Time {
	if n <= 0 || len(dates) <= n {
		return dates
	}
	return dates[len(dates)-n:]
}
