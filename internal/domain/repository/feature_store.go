package repository

import (
	"context"
	"errors"
	"time"

	"AlphaLab/internal/domain/models"
)

// ErrNotFound is returned when a requested observation does not exist.
var ErrNotFound = errors.New("not found")

// Source names a family of per-(security, date) columns.
type Source string

const (
	SourceAlphas    Source = "alphas"
	SourceTechnical Source = "technical"
	SourceMarket    Source = "market"
)

// CloseColumn is always present in panels returned by PanelStore.
const CloseColumn = "close"

// PanelQuery selects a rectangular slice of a source.
// Empty Securities means the whole universe.
type PanelQuery struct {
	Source     Source
	Fields     []string
	Securities []string
	From       time.Time
	To         time.Time
}

// PanelStore provides read-only range access to panel data.
type PanelStore interface {
	LatestTradeDate(ctx context.Context) (time.Time, error)
	TradeDates(ctx context.Context, from, to time.Time) ([]time.Time, error)
	ListColumns(ctx context.Context, source Source, prefix string) ([]string, error)
	GetPanel(ctx context.Context, q PanelQuery) (*models.Panel, error)
}

// FeatureStore provides point and corpus access for pattern search.
type FeatureStore interface {
	GetFeatureVector(ctx context.Context, security string, date time.Time, indicators []string) (models.FeatureVector, error)
	GetFeatureCorpus(ctx context.Context, before time.Time, indicators []string) ([]models.FeatureVector, error)
	GetPriceSeries(ctx context.Context, security string, from, to time.Time) ([]models.PricePoint, error)
	GetSecurityInfo(ctx context.Context, securities []string) (map[string]models.SecurityInfo, error)
}
