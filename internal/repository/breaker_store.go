package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	applogger "AlphaLab/pkg/logger"
)

// Store is the union of the read interfaces served by CHPanelStore.
type Store interface {
	domrepo.PanelStore
	domrepo.FeatureStore
}

// BreakerSettings configures the storage circuit breaker.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// BreakerStore guards every read with a circuit breaker. Not-found and
// cancelled calls do not count as failures.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, st BreakerSettings, l *applogger.Logger) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < st.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= st.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domrepo.ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if l != nil {
				l.Warn("circuit breaker state change",
					applogger.String("breaker", name),
					applogger.String("from", from.String()),
					applogger.String("to", to.String()),
				)
			}
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the current breaker state.
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func run[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (b *BreakerStore) LatestTradeDate(ctx context.Context) (time.Time, error) {
	return run(b, func() (time.Time, error) { return b.next.LatestTradeDate(ctx) })
}

func (b *BreakerStore) TradeDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	return run(b, func() ([]time.Time, error) { return b.next.TradeDates(ctx, from, to) })
}

func (b *BreakerStore) ListColumns(ctx context.Context, source domrepo.Source, prefix string) ([]string, error) {
	return run(b, func() ([]string, error) { return b.next.ListColumns(ctx, source, prefix) })
}

func (b *BreakerStore) GetPanel(ctx context.Context, q domrepo.PanelQuery) (*models.Panel, error) {
	return run(b, func() (*models.Panel, error) { return b.next.GetPanel(ctx, q) })
}

func (b *BreakerStore) GetFeatureVector(ctx context.Context, security string, date time.Time, indicators []string) (models.FeatureVector, error) {
	return run(b, func() (models.FeatureVector, error) {
		return b.next.GetFeatureVector(ctx, security, date, indicators)
	})
}

func (b *BreakerStore) GetFeatureCorpus(ctx context.Context, before time.Time, indicators []string) ([]models.FeatureVector, error) {
	return run(b, func() ([]models.FeatureVector, error) {
		return b.next.GetFeatureCorpus(ctx, before, indicators)
	})
}

func (b *BreakerStore) GetPriceSeries(ctx context.Context, security string, from, to time.Time) ([]models.PricePoint, error) {
	return run(b, func() ([]models.PricePoint, error) { return b.next.GetPriceSeries(ctx, security, from, to) })
}

func (b *BreakerStore) GetSecurityInfo(ctx context.Context, securities []string) (map[string]models.SecurityInfo, error) {
	return run(b, func() (map[string]models.SecurityInfo, error) { return b.next.GetSecurityInfo(ctx, securities) })
}
