package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	pkgch "AlphaLab/pkg/clickhouse"
	applogger "AlphaLab/pkg/logger"
)

// Tables names the fully qualified ClickHouse tables the stores read and write.
type Tables struct {
	Market    string // stock_code, trade_date, close_qfq, pct_chg
	Alphas    string // stock_code, trade_date, alpha_XXX
	Technical string // stock_code, trade_date, rsi_14, cci_14, bias_20
	Meta      string // ts_code, name, industry
	IC        string
}

// DefaultTables lays tables out over the market and factor databases.
func DefaultTables(marketDB, factorDB string) Tables {
	return Tables{
		Market:    marketDB + ".market_stock_active_daily",
		Alphas:    factorDB + ".factor_alphas_daily",
		Technical: factorDB + ".factor_technical_daily",
		Meta:      marketDB + ".meta_stock_info",
		IC:        factorDB + ".factor_ic_daily",
	}
}

func (t Tables) forSource(s domrepo.Source) (string, error) {
	switch s {
	case domrepo.SourceMarket:
		return t.Market, nil
	case domrepo.SourceAlphas:
		return t.Alphas, nil
	case domrepo.SourceTechnical:
		return t.Technical, nil
	default:
		return "", fmt.Errorf("unsupported source: %s", s)
	}
}

// CHPanelStore implements PanelStore and FeatureStore backed by ClickHouse.
type CHPanelStore struct {
	db      *sql.DB
	tables  Tables
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewCHPanelStore(ch *pkgch.Client, tables Tables) *CHPanelStore {
	return &CHPanelStore{db: ch.DB(), tables: tables}
}

// SetLogger injects a structured logger.
func (s *CHPanelStore) SetLogger(l *applogger.Logger) { s.l = l }

// SetMetrics injects a metrics recorder.
func (s *CHPanelStore) SetMetrics(m domrepo.Metrics) { s.metrics = m }

func (s *CHPanelStore) fail(op, stage string, err error, fields ...applogger.Field) error {
	if s.l != nil {
		s.l.Error("clickhouse "+op+" "+stage+" error", append(fields, applogger.Error(err))...)
	}
	if s.metrics != nil {
		s.metrics.RecordError("clickhouse_" + op)
	}
	return fmt.Errorf("%s %s: %w", op, stage, err)
}

func (s *CHPanelStore) ok(op, source string, rows int, start time.Time, fields ...applogger.Field) {
	if s.metrics != nil {
		s.metrics.RecordRows(source, rows)
		s.metrics.RecordLatency("clickhouse_"+op, time.Since(start).Seconds())
	}
	if s.l != nil {
		s.l.Debug("clickhouse "+op+" ok", append(fields,
			applogger.Int("rows", rows),
			applogger.Duration("duration_ms", time.Since(start)),
		)...)
	}
}

func (s *CHPanelStore) LatestTradeDate(ctx context.Context) (time.Time, error) {
	var d time.Time
	q := fmt.Sprintf("SELECT max(trade_date) FROM %s", s.tables.Market)
	if err := s.db.QueryRowContext(ctx, q).Scan(&d); err != nil {
		return time.Time{}, s.fail("latest_date", "query", err)
	}
	if d.IsZero() || d.Year() <= 1970 {
		return time.Time{}, fmt.Errorf("latest trade date: %w", domrepo.ErrNotFound)
	}
	return dateOnly(d), nil
}

func (s *CHPanelStore) TradeDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT DISTINCT trade_date
        FROM %s
        WHERE trade_date >= ? AND trade_date <= ?
        ORDER BY trade_date ASC
    `, s.tables.Market)
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, s.fail("trade_dates", "query", err, applogger.Date("from", from), applogger.Date("to", to))
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, s.fail("trade_dates", "scan", err)
		}
		out = append(out, dateOnly(d))
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("trade_dates", "rows", err)
	}
	s.ok("trade_dates", string(domrepo.SourceMarket), len(out), start)
	return out, nil
}

func (s *CHPanelStore) ListColumns(ctx context.Context, source domrepo.Source, prefix string) ([]string, error) {
	table, err := s.tables.forSource(source)
	if err != nil {
		return nil, err
	}
	db, tbl, ok := strings.Cut(table, ".")
	if !ok {
		return nil, fmt.Errorf("table %q is not qualified", table)
	}
	const q = `
        SELECT name
        FROM system.columns
        WHERE database = ? AND table = ? AND startsWith(name, ?)
        ORDER BY position ASC
    `
	rows, err := s.db.QueryContext(ctx, q, db, tbl, prefix)
	if err != nil {
		return nil, s.fail("list_columns", "query", err, applogger.String("table", table))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, s.fail("list_columns", "scan", err, applogger.String("table", table))
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list_columns", "rows", err, applogger.String("table", table))
	}
	return out, nil
}

// buildPanelQuery selects close plus the requested fields, anchored on the
// market table so every trading row is present even when a factor is missing.
func buildPanelQuery(t Tables, q domrepo.PanelQuery) (string, []interface{}, error) {
	if err := domrepo.ValidateIdentifiers(q.Fields...); err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	args := []interface{}{q.From, q.To}
	sb.WriteString("SELECT m.stock_code, m.trade_date, m.close_qfq")

	if q.Source == domrepo.SourceMarket {
		for _, f := range q.Fields {
			fmt.Fprintf(&sb, ", m.%s", f)
		}
		fmt.Fprintf(&sb, " FROM %s AS m", t.Market)
	} else {
		table, err := t.forSource(q.Source)
		if err != nil {
			return "", nil, err
		}
		for _, f := range q.Fields {
			fmt.Fprintf(&sb, ", f.%s", f)
		}
		fmt.Fprintf(&sb, " FROM %s AS m LEFT JOIN %s AS f ON f.stock_code = m.stock_code AND f.trade_date = m.trade_date", t.Market, table)
	}
	sb.WriteString(" WHERE m.trade_date >= ? AND m.trade_date <= ?")
	if len(q.Securities) > 0 {
		sb.WriteString(" AND m.stock_code IN (?)")
		args = append(args, q.Securities)
	}
	sb.WriteString(" ORDER BY m.stock_code ASC, m.trade_date ASC")
	if q.Source != domrepo.SourceMarket {
		sb.WriteString(" SETTINGS join_use_nulls = 1")
	}
	return sb.String(), args, nil
}

func (s *CHPanelStore) GetPanel(ctx context.Context, pq domrepo.PanelQuery) (*models.Panel, error) {
	start := time.Now()
	q, args, err := buildPanelQuery(s.tables, pq)
	if err != nil {
		return nil, fmt.Errorf("get panel: %w", err)
	}
	fields := []applogger.Field{
		applogger.String("source", string(pq.Source)),
		applogger.Int("fields", len(pq.Fields)),
		applogger.Date("from", pq.From),
		applogger.Date("to", pq.To),
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, s.fail("get_panel", "query", err, fields...)
	}
	defer rows.Close()

	var keys []models.Key
	closes := make([]float64, 0, 4096)
	cols := make([][]float64, len(pq.Fields))
	vals := make([]sql.NullFloat64, len(pq.Fields)+1)
	for rows.Next() {
		var k models.Key
		dest := make([]interface{}, 0, len(vals)+2)
		dest = append(dest, &k.Security, &k.Date)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, s.fail("get_panel", "scan", err, fields...)
		}
		k.Date = dateOnly(k.Date)
		keys = append(keys, k)
		closes = append(closes, nullable(vals[0]))
		for i := range cols {
			cols[i] = append(cols[i], nullable(vals[i+1]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_panel", "rows", err, fields...)
	}

	p := models.NewPanel(keys)
	if err := p.SetColumn(domrepo.CloseColumn, closes); err != nil {
		return nil, err
	}
	for i, name := range pq.Fields {
		if err := p.SetColumn(name, cols[i]); err != nil {
			return nil, err
		}
	}
	s.ok("get_panel", string(pq.Source), len(keys), start, fields...)
	return p, nil
}

func (s *CHPanelStore) GetFeatureVector(ctx context.Context, security string, date time.Time, indicators []string) (models.FeatureVector, error) {
	if err := domrepo.ValidateIdentifiers(indicators...); err != nil {
		return models.FeatureVector{}, err
	}
	q := fmt.Sprintf(`
        SELECT %s
        FROM %s
        WHERE stock_code = ? AND trade_date = ?
        LIMIT 1
    `, strings.Join(indicators, ", "), s.tables.Technical)

	vals := make([]sql.NullFloat64, len(indicators))
	dest := make([]interface{}, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	err := s.db.QueryRowContext(ctx, q, security, date).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FeatureVector{}, fmt.Errorf("features for %s on %s: %w", security, date.Format(models.DateLayout), domrepo.ErrNotFound)
	}
	if err != nil {
		return models.FeatureVector{}, s.fail("feature_vector", "query", err, applogger.String("security", security))
	}
	v := models.FeatureVector{Security: security, Date: dateOnly(date), Values: make([]float64, len(vals))}
	for i, n := range vals {
		v.Values[i] = nullable(n)
	}
	return v, nil
}

// GetFeatureCorpus loads every complete indicator row dated before the cutoff,
// ordered by (trade_date, stock_code) so the scan order is reproducible.
func (s *CHPanelStore) GetFeatureCorpus(ctx context.Context, before time.Time, indicators []string) ([]models.FeatureVector, error) {
	start := time.Now()
	if err := domrepo.ValidateIdentifiers(indicators...); err != nil {
		return nil, err
	}
	notNull := make([]string, len(indicators))
	for i, ind := range indicators {
		notNull[i] = fmt.Sprintf("isNotNull(%s)", ind)
	}
	q := fmt.Sprintf(`
        SELECT stock_code, trade_date, %s
        FROM %s
        WHERE trade_date < ? AND %s
        ORDER BY trade_date ASC, stock_code ASC
    `, strings.Join(indicators, ", "), s.tables.Technical, strings.Join(notNull, " AND "))

	rows, err := s.db.QueryContext(ctx, q, before)
	if err != nil {
		return nil, s.fail("feature_corpus", "query", err, applogger.Date("before", before))
	}
	defer rows.Close()

	out := make([]models.FeatureVector, 0, 1<<16)
	vals := make([]sql.NullFloat64, len(indicators))
	for rows.Next() {
		var v models.FeatureVector
		dest := make([]interface{}, 0, len(vals)+2)
		dest = append(dest, &v.Security, &v.Date)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, s.fail("feature_corpus", "scan", err)
		}
		v.Date = dateOnly(v.Date)
		v.Values = make([]float64, len(vals))
		for i, n := range vals {
			v.Values[i] = nullable(n)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("feature_corpus", "rows", err)
	}
	s.ok("feature_corpus", string(domrepo.SourceTechnical), len(out), start, applogger.Date("before", before))
	return out, nil
}

func (s *CHPanelStore) GetPriceSeries(ctx context.Context, security string, from, to time.Time) ([]models.PricePoint, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT trade_date, close_qfq
        FROM %s
        WHERE stock_code = ? AND trade_date >= ? AND trade_date <= ?
        ORDER BY trade_date ASC
    `, s.tables.Market)
	rows, err := s.db.QueryContext(ctx, q, security, from, to)
	if err != nil {
		return nil, s.fail("price_series", "query", err, applogger.String("security", security))
	}
	defer rows.Close()

	var out []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		var c sql.NullFloat64
		if err := rows.Scan(&p.Date, &c); err != nil {
			return nil, s.fail("price_series", "scan", err, applogger.String("security", security))
		}
		p.Date = dateOnly(p.Date)
		p.Close = nullable(c)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("price_series", "rows", err, applogger.String("security", security))
	}
	s.ok("price_series", string(domrepo.SourceMarket), len(out), start, applogger.String("security", security))
	return out, nil
}

func (s *CHPanelStore) GetSecurityInfo(ctx context.Context, securities []string) (map[string]models.SecurityInfo, error) {
	out := make(map[string]models.SecurityInfo, len(securities))
	if len(securities) == 0 {
		return out, nil
	}
	q := fmt.Sprintf("SELECT ts_code, name, industry FROM %s WHERE ts_code IN (?)", s.tables.Meta)
	rows, err := s.db.QueryContext(ctx, q, securities)
	if err != nil {
		return nil, s.fail("security_info", "query", err)
	}
	defer rows.Close()
	for rows.Next() {
		var info models.SecurityInfo
		if err := rows.Scan(&info.Security, &info.Name, &info.Industry); err != nil {
			return nil, s.fail("security_info", "scan", err)
		}
		out[info.Security] = info
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("security_info", "rows", err)
	}
	return out, nil
}

func nullable(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
