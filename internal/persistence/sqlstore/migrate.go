package sqlstore

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// columnMigration adds a column that older databases lack. Backfill, when
// set, runs once right after the column is added.
type columnMigration struct {
	Table    string
	Column   string
	Def      string
	Backfill string
}

var columnMigrations = []columnMigration{
	{
		Table:    "shops",
		Column:   "display_name",
		Def:      "TEXT NOT NULL DEFAULT ''",
		Backfill: `UPDATE shops SET display_name = name WHERE display_name = ''`,
	},
	{Table: "shops", Column: "owner_name", Def: "TEXT NOT NULL DEFAULT ''"},
	{Table: "shops", Column: "trader_ref", Def: "TEXT"},
	{Table: "shops", Column: "is_admin", Def: "INTEGER NOT NULL DEFAULT 0"},
	{
		Table:  "shops",
		Column: "last_trade_id",
		Def:    "INTEGER NOT NULL DEFAULT 0",
		Backfill: `UPDATE shops SET last_trade_id = COALESCE(
			(SELECT MAX(t.trade_id) FROM trades t WHERE t.owner_id = shops.owner_id AND t.shop_name = shops.name), 0)`,
	},
}

// Indexes are created after column migrations since they may reference
// columns that only exist once migrated.
var indexStmts = []string{
	`CREATE INDEX IF NOT EXISTS idx_shops_trader_ref ON shops(trader_ref);`,
	`CREATE INDEX IF NOT EXISTS idx_trades_shop ON trades(owner_id, shop_name);`,
}

// migrate brings an existing database up to the current column set. It is
// safe to run on every start.
func (s *Store) migrate() error {
	applied := 0
	for _, m := range columnMigrations {
		ok, err := columnExists(s.db, m.Table, m.Column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		err = s.inTx(func(tx *sql.Tx) error {
			q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
			if _, err := tx.Exec(q); err != nil {
				return fmt.Errorf("add %s.%s: %w", m.Table, m.Column, err)
			}
			if m.Backfill != "" {
				if _, err := tx.Exec(m.Backfill); err != nil {
					return fmt.Errorf("backfill %s.%s: %w", m.Table, m.Column, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		s.log.Info("migration applied", zap.String("table", m.Table), zap.String("column", m.Column))
		applied++
	}
	for _, stmt := range indexStmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	if applied > 0 {
		s.log.Info("schema migrations complete", zap.Int("applied", applied))
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table_info(%s): %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
