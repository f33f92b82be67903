package similarity

import (
	"fmt"
	"math"
	"sort"
	"time"

	"AlphaLab/internal/domain/models"
	"AlphaLab/internal/services/operators"
)

// PriceWindow extracts up to before sessions ahead of and after sessions past
// the anchor, where the anchor is the last observation on or before anchor.
// Closes are normalised so the anchor equals 1. The window is clipped to the
// available history; no observation on or before anchor yields an empty window.
func PriceWindow(prices []models.PricePoint, anchor time.Time, before, after int) ([]models.WindowPoint, error) {
	if before < 0 || after < 0 {
		return nil, fmt.Errorf("window %d/%d: %w", before, after, operators.ErrInvalidWindow)
	}
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1].Date, prices[i].Date
		if cur.Equal(prev) {
			return nil, fmt.Errorf("price on %s: %w", cur.Format(models.DateLayout), models.ErrDuplicateKey)
		}
		if cur.Before(prev) {
			return nil, fmt.Errorf("prices not ascending at %s: %w", cur.Format(models.DateLayout), models.ErrShapeMismatch)
		}
	}

	idx := sort.Search(len(prices), func(i int) bool { return prices[i].Date.After(anchor) }) - 1
	if idx < 0 {
		return []models.WindowPoint{}, nil
	}
	start := max(0, idx-before)
	end := min(len(prices), idx+after+1)

	base := prices[idx].Close
	out := make([]models.WindowPoint, 0, end-start)
	for i := start; i < end; i++ {
		p := prices[i]
		norm := math.NaN()
		if base > 0 && !math.IsNaN(p.Close) {
			norm = p.Close / base
		}
		out = append(out, models.WindowPoint{
			Date:       models.TradeDate(p.Date),
			Offset:     i - idx,
			Close:      models.Number(p.Close),
			Normalized: models.Number(norm),
		})
	}
	return out, nil
}
