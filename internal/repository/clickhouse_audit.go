package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	pkgch "CoinPulse/pkg/clickhouse"
	applogger "CoinPulse/pkg/logger"
)

// CHAuditStore implements AuditStore backed by a ClickHouse ReplacingMergeTree
// table. The sorting key includes id and every read uses FINAL, so a record
// inserted more than once (Kafka redelivery, retried inserts) is counted once.
type CHAuditStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.AuditStore = (*CHAuditStore)(nil)

func NewCHAuditStore(ch *pkgch.Client, table string) *CHAuditStore {
	return NewCHAuditStoreFromDB(ch.DB(), ch.Database(), table)
}

// NewCHAuditStoreFromDB wraps an open pool; database may be empty to use the connection default.
func NewCHAuditStoreFromDB(db *sql.DB, database, table string) *CHAuditStore {
	if database != "" {
		table = database + "." + table
	}
	return &CHAuditStore{db: db, table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHAuditStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// Schema returns the idempotent DDL for the outcomes table.
func (s *CHAuditStore) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id                  String,
            ts                  DateTime64(3, 'UTC'),
            asset               LowCardinality(String),
            currency            LowCardinality(String),
            cache_hit           Bool,
            upstream_latency_ms Int64,
            upstream_status     Int32,
            status              Int32,
            price               Nullable(Float64),
            change24h_pct       Nullable(Float64),
            volatility          Nullable(String),
            quote_as_of         Nullable(DateTime64(3, 'UTC')),
            error               Nullable(String),
            server_latency_ms   Int64,
            metadata            Map(String, String),
            provider            LowCardinality(String),
            endpoint            String,
            app_version         LowCardinality(String)
        )
        ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMMDD(ts)
        ORDER BY (ts, asset, id)
        TTL toDateTime(ts) + INTERVAL 90 DAY
    `, s.table)}
}

func (s *CHAuditStore) Append(ctx context.Context, rec models.OutcomeRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, ts, asset, currency, cache_hit, upstream_latency_ms, upstream_status, status,
        price, change24h_pct, volatility, quote_as_of, error, server_latency_ms, metadata, provider, endpoint, app_version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	var (
		price, change *float64
		vol           *string
		asOf          *time.Time
		errMsg        *string
	)
	if rec.Quote != nil {
		p, c, v, t := rec.Quote.Price, rec.Quote.Change24hPct, string(rec.Quote.Volatility), rec.Quote.ObservedAt.UTC()
		price, change, vol, asOf = &p, &c, &v, &t
	}
	if rec.Error != "" {
		e := rec.Error
		errMsg = &e
	}
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		rec.Timestamp.UTC(),
		rec.Asset,
		rec.Currency,
		rec.CacheHit,
		rec.UpstreamLatencyMs,
		int32(rec.UpstreamStatus),
		int32(rec.Status),
		price,
		change,
		vol,
		asOf,
		errMsg,
		rec.ServerLatencyMs,
		metadata,
		rec.Provider,
		rec.Endpoint,
		rec.AppVersion,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Read templates take the deduplicated source as their only verb.
var (
	topAssetsSQL = `
        SELECT asset, count() AS c
        FROM %s
        WHERE ts >= ?
        GROUP BY asset
        ORDER BY c DESC, asset ASC
        LIMIT ?
    `

	avgLatencySQL = `
        SELECT asset, avg(upstream_latency_ms)
        FROM %s
        WHERE ts >= ? AND cache_hit = false
        GROUP BY asset
        ORDER BY asset ASC
    `

	countOutcomesSQL = `SELECT count(), countIf(status != ` + strconv.Itoa(models.StatusOK) + `) FROM %s WHERE ts >= ?`

	recentSQL = `
        SELECT id, ts, asset, currency, cache_hit, upstream_latency_ms, upstream_status, status,
               price, change24h_pct, volatility, quote_as_of, error, server_latency_ms, metadata,
               provider, endpoint, app_version
        FROM %s
        WHERE ts >= ?
        ORDER BY ts DESC
        LIMIT ?
    `
)

func (s *CHAuditStore) query(tmpl string) string {
	return fmt.Sprintf(tmpl, s.table+" FINAL")
}

func (s *CHAuditStore) TopAssets(ctx context.Context, since time.Time, limit int) ([]models.AssetCount, error) {
	rows, err := s.db.QueryContext(ctx, s.query(topAssetsSQL), since.UTC(), limit)
	if err != nil {
		s.l.Error("clickhouse top_assets query error", applogger.Error(err))
		return nil, fmt.Errorf("top assets: %w", err)
	}
	defer rows.Close()

	out := make([]models.AssetCount, 0, limit)
	for rows.Next() {
		var ac models.AssetCount
		var c uint64
		if err := rows.Scan(&ac.Asset, &c); err != nil {
			return nil, fmt.Errorf("scan top asset: %w", err)
		}
		ac.Count = int64(c)
		out = append(out, ac)
	}
	return out, rows.Err()
}

func (s *CHAuditStore) AvgLatencyByAsset(ctx context.Context, since time.Time) ([]models.AssetLatency, error) {
	rows, err := s.db.QueryContext(ctx, s.query(avgLatencySQL), since.UTC())
	if err != nil {
		s.l.Error("clickhouse avg_latency query error", applogger.Error(err))
		return nil, fmt.Errorf("avg latency: %w", err)
	}
	defer rows.Close()

	var out []models.AssetLatency
	for rows.Next() {
		var al models.AssetLatency
		if err := rows.Scan(&al.Asset, &al.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan avg latency: %w", err)
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

func (s *CHAuditStore) CountOutcomes(ctx context.Context, since time.Time) (int64, int64, error) {
	var total, failed uint64
	if err := s.db.QueryRowContext(ctx, s.query(countOutcomesSQL), since.UTC()).Scan(&total, &failed); err != nil {
		s.l.Error("clickhouse count query error", applogger.Error(err))
		return 0, 0, fmt.Errorf("count outcomes: %w", err)
	}
	return int64(total), int64(failed), nil
}

func (s *CHAuditStore) Recent(ctx context.Context, since time.Time, limit int) ([]models.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.query(recentSQL), since.UTC(), limit)
	if err != nil {
		s.l.Error("clickhouse recent query error", applogger.Error(err))
		return nil, fmt.Errorf("recent outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]models.OutcomeRecord, 0, limit)
	for rows.Next() {
		var (
			r                  models.OutcomeRecord
			upstreamStatus, st int32
			price, change      sql.NullFloat64
			vol, errMsg        sql.NullString
			asOf               sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Asset, &r.Currency, &r.CacheHit, &r.UpstreamLatencyMs,
			&upstreamStatus, &st, &price, &change, &vol, &asOf, &errMsg, &r.ServerLatencyMs, &r.Metadata,
			&r.Provider, &r.Endpoint, &r.AppVersion); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		r.UpstreamStatus, r.Status = int(upstreamStatus), int(st)
		if price.Valid {
			r.Quote = &models.Quote{
				Asset:        r.Asset,
				Currency:     r.Currency,
				Price:        price.Float64,
				Change24hPct: change.Float64,
				Volatility:   models.Volatility(vol.String),
				ObservedAt:   asOf.Time,
			}
		}
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CHAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the connection pool is owned by pkg/clickhouse.
func (s *CHAuditStore) Close() error { return nil }
