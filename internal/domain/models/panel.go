package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrShapeMismatch is returned when inputs are not aligned on the same key space.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrDuplicateKey is returned when a panel holds the same (security, date) twice.
	ErrDuplicateKey = errors.New("duplicate panel key")
	// ErrUnknownColumn is returned when a named column is not present in a panel.
	ErrUnknownColumn = errors.New("unknown column")
)

// Key identifies one panel row.
type Key struct {
	Security string
	Date     time.Time
}

// Panel is a columnar table keyed by (security, date).
// Every column has exactly len(Keys) values; NaN marks a missing value.
type Panel struct {
	Keys    []Key
	Columns map[string][]float64
}

// NewPanel creates an empty panel over keys.
func NewPanel(keys []Key) *Panel {
	return &Panel{Keys: keys, Columns: make(map[string][]float64)}
}

// Len returns the number of rows.
func (p *Panel) Len() int { return len(p.Keys) }

// Column returns the named column or ErrUnknownColumn.
func (p *Panel) Column(name string) ([]float64, error) {
	v, ok := p.Columns[name]
	if !ok {
		return nil, fmt.Errorf("column %q: %w", name, ErrUnknownColumn)
	}
	return v, nil
}

// SetColumn attaches values under name; len(values) must equal Len().
func (p *Panel) SetColumn(name string, values []float64) error {
	if len(values) != len(p.Keys) {
		return fmt.Errorf("column %q has %d values for %d keys: %w", name, len(values), len(p.Keys), ErrShapeMismatch)
	}
	if p.Columns == nil {
		p.Columns = make(map[string][]float64)
	}
	p.Columns[name] = values
	return nil
}

// Validate checks column lengths and key uniqueness.
func (p *Panel) Validate() error {
	for name, col := range p.Columns {
		if len(col) != len(p.Keys) {
			return fmt.Errorf("column %q has %d values for %d keys: %w", name, len(col), len(p.Keys), ErrShapeMismatch)
		}
	}
	_, err := p.GroupBySecurity()
	return err
}

// GroupBySecurity returns, per security, the row indices ordered by ascending date.
func (p *Panel) GroupBySecurity() (map[string][]int, error) {
	groups := make(map[string][]int)
	for i, k := range p.Keys {
		groups[k.Security] = append(groups[k.Security], i)
	}
	for sec, idx := range groups {
		sort.SliceStable(idx, func(a, b int) bool {
			return p.Keys[idx[a]].Date.Before(p.Keys[idx[b]].Date)
		})
		for j := 1; j < len(idx); j++ {
			if p.Keys[idx[j]].Date.Equal(p.Keys[idx[j-1]].Date) {
				return nil, fmt.Errorf("%s on %s: %w", sec, p.Keys[idx[j]].Date.Format(DateLayout), ErrDuplicateKey)
			}
		}
	}
	return groups, nil
}

// DateGroup is one cross-section: the rows observed on Date.
type DateGroup struct {
	Date time.Time
	Rows []int
}

// GroupByDate returns cross-sections ordered by ascending date; rows keep panel order.
func (p *Panel) GroupByDate() []DateGroup {
	pos := make(map[int64]int)
	var out []DateGroup
	for i, k := range p.Keys {
		day := k.Date.Unix()
		j, ok := pos[day]
		if !ok {
			j = len(out)
			pos[day] = j
			out = append(out, DateGroup{Date: k.Date})
		}
		out[j].Rows = append(out[j].Rows, i)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date.Before(out[b].Date) })
	return out
}

// Filter returns a new panel holding only rows for which keep returns true.
func (p *Panel) Filter(keep func(Key) bool) *Panel {
	var rows []int
	for i, k := range p.Keys {
		if keep(k) {
			rows = append(rows, i)
		}
	}
	return p.Rows(rows)
}

// Rows returns a new panel made of the given row indices, in that order.
func (p *Panel) Rows(rows []int) *Panel {
	keys := make([]Key, len(rows))
	for j, i := range rows {
		keys[j] = p.Keys[i]
	}
	out := NewPanel(keys)
	for name, col := range p.Columns {
		vals := make([]float64, len(rows))
		for j, i := range rows {
			vals[j] = col[i]
		}
		out.Columns[name] = vals
	}
	return out
}

// CrossSection returns the rows observed on date.
func (p *Panel) CrossSection(date time.Time) *Panel {
	return p.Filter(func(k Key) bool { return k.Date.Equal(date) })
}
