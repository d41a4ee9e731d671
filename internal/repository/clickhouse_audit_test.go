package repository

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

func TestCHAuditStoreSchema(t *testing.T) {
	// sql.Open does not dial; the store is only asked for its DDL.
	db, err := sql.Open("clickhouse", "clickhouse://default:@localhost:9000/coinpulse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	s := NewCHAuditStoreFromDB(db, "coinpulse", "outcomes")
	stmts := s.Schema()
	if len(stmts) != 1 {
		t.Fatalf("expected one statement, got %d", len(stmts))
	}
	ddl := stmts[0]
	for _, col := range []string{
		"CREATE TABLE IF NOT EXISTS coinpulse.outcomes",
		"cache_hit           Bool",
		"metadata            Map(String, String)",
		"price               Nullable(Float64)",
		"ENGINE = ReplacingMergeTree",
		"ORDER BY (ts, asset, id)",
	} {
		if !strings.Contains(ddl, col) {
			t.Fatalf("schema missing %q", col)
		}
	}
}

func TestCHAuditStoreReadsDeduplicate(t *testing.T) {
	db, err := sql.Open("clickhouse", "clickhouse://default:@localhost:9000/coinpulse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	s := NewCHAuditStoreFromDB(db, "coinpulse", "outcomes")
	for name, tmpl := range map[string]string{
		"top_assets":  topAssetsSQL,
		"avg_latency": avgLatencySQL,
		"count":       countOutcomesSQL,
		"recent":      recentSQL,
	} {
		q := s.query(tmpl)
		if !strings.Contains(q, "FROM coinpulse.outcomes FINAL") {
			t.Fatalf("%s query reads without FINAL: %s", name, q)
		}
	}
	if q := s.query(countOutcomesSQL); !strings.Contains(q, "countIf(status != 200)") {
		t.Fatalf("count query = %s", q)
	}
}
