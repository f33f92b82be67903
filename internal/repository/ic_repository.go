package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	pkgch "AlphaLab/pkg/clickhouse"
	applogger "AlphaLab/pkg/logger"
)

// CHICStore implements ICStore for ClickHouse.
type CHICStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHICStore creates the IC store over table.
func NewCHICStore(ch *pkgch.Client, table string) *CHICStore {
	return &CHICStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHICStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHICStore) Init(ctx context.Context) error {
	q := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            alpha       LowCardinality(String),
            horizon     UInt16,
            trade_date  Date,
            ic          Nullable(Float64),
            cum_ic      Nullable(Float64),
            n           UInt32,
            updated_at  DateTime DEFAULT now()
        )
        ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY (alpha, horizon, trade_date)
    `, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("init ic table: %w", err)
	}
	return nil
}

// icChunk bounds the number of rows per multi-row INSERT.
const icChunk = 2000

func (s *CHICStore) SaveICRecords(ctx context.Context, alpha string, horizon int, records models.ICSeries) error {
	if len(records) == 0 {
		return nil
	}
	if !domrepo.IsValidIdentifier(alpha) {
		return fmt.Errorf("save ic: invalid alpha %q", alpha)
	}
	for start := 0; start < len(records); start += icChunk {
		end := min(start+icChunk, len(records))
		q, args := buildICInsert(s.table, alpha, horizon, records[start:end])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse save_ic exec error",
					applogger.String("alpha", alpha),
					applogger.Int("rows", end-start),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("save ic: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse save_ic ok", applogger.String("alpha", alpha), applogger.Int("rows", len(records)))
	}
	return nil
}

func buildICInsert(table, alpha string, horizon int, records models.ICSeries) (string, []interface{}) {
	values := make([]string, len(records))
	args := make([]interface{}, 0, len(records)*6)
	for i, r := range records {
		values[i] = "(?, ?, ?, ?, ?, ?)"
		args = append(args, alpha, uint16(horizon), r.Date, nullFloat(r.IC), nullFloat(r.Cumulative), uint32(r.N))
	}
	q := fmt.Sprintf("INSERT INTO %s (alpha, horizon, trade_date, ic, cum_ic, n) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

func nullFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func (s *CHICStore) Health(ctx context.Context) error { return s.db.PingContext(ctx) }
