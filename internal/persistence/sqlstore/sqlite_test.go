package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tradepost.ai/internal/persistence/storetest"
	"tradepost.ai/internal/shop"
)

func openTemp(t *testing.T, opts Options) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shops.sqlite")
	s, err := Open(path, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, path
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) shop.Store {
		s, _ := openTemp(t, Options{})
		return s
	})
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  ", Options{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestStore_ClosedRejectsCalls(t *testing.T) {
	s, _ := openTemp(t, Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := s.ListAllShops(); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	s, path := openTemp(t, Options{})
	if _, err := s.CreateShop("o1", "Alice", "Forge", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AddTrade("o1", "Forge", "COAL", 8, "IRON_INGOT", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SetTraderUUID("o1", "Forge", "npc-1"); err != nil {
		t.Fatalf("set trader: %v", err)
	}
	want, _ := s.GetShop("o1", "Forge")
	_ = s.Close()

	s2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.GetShop("o1", "forge")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reopened shop (-want +got):\n%s", diff)
	}
}

func TestStore_ForeignKeyCascadeOnRawDelete(t *testing.T) {
	s, _ := openTemp(t, Options{})
	defer s.Close()
	if _, err := s.CreateShop("o1", "", "Stall", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AddTrade("o1", "Stall", "A", 1, "B", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.db.Exec(`DELETE FROM shops WHERE owner_id = 'o1'`); err != nil {
		t.Fatalf("raw delete: %v", err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected cascade to remove trades, %d left", n)
	}
}

func TestStore_CascadeSurvivesReconnect(t *testing.T) {
	s, _ := openTemp(t, Options{})
	defer s.Close()
	// No idle connections: every statement below runs on a fresh connection.
	s.db.SetMaxIdleConns(0)

	var fk int
	if err := s.db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys=%d on a new connection", fk)
	}
	if _, err := s.CreateShop("o1", "", "Stall", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AddTrade("o1", "Stall", "A", 1, "B", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE shops SET name = 'kiosk' WHERE owner_id = 'o1'`); err != nil {
		t.Fatalf("raw rename: %v", err)
	}
	var shopName string
	if err := s.db.QueryRow(`SELECT shop_name FROM trades WHERE owner_id = 'o1'`).Scan(&shopName); err != nil {
		t.Fatalf("trade lookup: %v", err)
	}
	if shopName != "kiosk" {
		t.Fatalf("trade still points at %q after rename", shopName)
	}
}

// schemaState captures everything a migration could change: DDL and rows.
func schemaState(t *testing.T, db *sql.DB) []string {
	t.Helper()
	queries := []string{
		`SELECT type, name, COALESCE(sql, '') FROM sqlite_master WHERE name NOT LIKE 'sqlite_%' ORDER BY type, name`,
		`SELECT owner_id, name, display_name, owner_name, COALESCE(trader_ref, ''), is_admin, last_trade_id FROM shops ORDER BY owner_id, name`,
		`SELECT owner_id, shop_name, trade_id, input_item_id, input_quantity, output_item_id, output_quantity FROM trades ORDER BY owner_id, shop_name, trade_id`,
	}
	var out []string
	for _, q := range queries {
		rows, err := db.Query(q)
		if err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
		cols, _ := rows.Columns()
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				t.Fatalf("scan: %v", err)
			}
			out = append(out, fmt.Sprint(vals...))
		}
		rows.Close()
	}
	return out
}

// createOldSchema builds a database as it looked before display_name,
// is_admin and last_trade_id existed.
func createOldSchema(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	defer db.Close()
	stmts := []string{
		`CREATE TABLE shops (
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			owner_name TEXT,
			trader_ref TEXT,
			PRIMARY KEY (owner_id, name)
		);`,
		`CREATE TABLE trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			shop_name TEXT NOT NULL,
			trade_id INTEGER NOT NULL,
			input_item_id TEXT NOT NULL,
			input_quantity INTEGER NOT NULL,
			output_item_id TEXT NOT NULL,
			output_quantity INTEGER NOT NULL,
			UNIQUE (owner_id, shop_name, trade_id),
			FOREIGN KEY (owner_id, shop_name) REFERENCES shops(owner_id, name)
				ON DELETE CASCADE ON UPDATE CASCADE
		);`,
		`INSERT INTO shops(owner_id, name, owner_name, trader_ref) VALUES('o1', 'old shop', 'Alice', 'npc-3');`,
		`INSERT INTO trades(owner_id, shop_name, trade_id, input_item_id, input_quantity, output_item_id, output_quantity)
			VALUES('o1', 'old shop', 4, 'WHEAT', 6, 'BREAD', 2);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

func TestMigrate_UpgradesOldSchemaAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shops.sqlite")
	createOldSchema(t, path)

	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	for _, col := range []string{"display_name", "is_admin", "last_trade_id"} {
		ok, err := columnExists(s.db, "shops", col)
		if err != nil || !ok {
			t.Fatalf("column %s missing after migrate (err=%v)", col, err)
		}
	}
	sh, err := s.GetShop("o1", "Old Shop")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sh.DisplayName != "old shop" || sh.IsAdmin || sh.TraderRef != "npc-3" || sh.LastTradeID != 4 {
		t.Fatalf("unexpected migrated shop: %#v", sh)
	}
	tr, err := s.AddTrade("o1", "old shop", "A", 1, "B", 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if tr.ID != 5 {
		t.Fatalf("expected next id 5 after backfill, got %d", tr.ID)
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shops.sqlite")
	createOldSchema(t, path)

	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first := schemaState(t, s.db)
	if err := s.migrate(); err != nil {
		t.Fatalf("re-run migrate: %v", err)
	}
	rerun := schemaState(t, s.db)
	_ = s.Close()

	s2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()
	second := schemaState(t, s2.db)

	if diff := cmp.Diff(first, rerun); diff != "" {
		t.Fatalf("in-process re-run changed state (-first +rerun):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second startup changed state (-first +second):\n%s", diff)
	}
}

func TestStore_StorageErrorsAreWrapped(t *testing.T) {
	s, _ := openTemp(t, Options{})
	defer s.Close()
	if _, err := s.CreateShop("o1", "", "Shop", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.db.Exec(`DROP TABLE trades`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err := s.AddTrade("o1", "Shop", "A", 1, "B", 1)
	if err == nil {
		t.Fatalf("expected storage error")
	}
	var se *shop.Error
	if errors.As(err, &se) {
		t.Fatalf("storage failure surfaced as validation error: %v", err)
	}
}
