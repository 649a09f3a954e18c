package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"tradepost.ai/internal/persistence/legacy"
	"tradepost.ai/internal/shop"
)

// importLegacyIfNeeded imports the legacy key-value file into an empty
// store. The whole import is one transaction; the file is renamed only after
// commit so a failed run is retried on the next start.
func (s *Store) importLegacyIfNeeded(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM shops`).Scan(&n); err != nil {
		return fmt.Errorf("count shops: %w", err)
	}
	if n > 0 {
		s.log.Warn("legacy file present but store is not empty; skipping import", zap.String("legacy", path))
		return nil
	}

	f, err := legacy.Read(path)
	if err != nil {
		return err
	}

	var shops, trades int
	err = s.inTx(func(tx *sql.Tx) error {
		var err error
		shops, trades, err = s.importLegacy(tx, f)
		return err
	})
	if err != nil {
		return err
	}

	backup := path + legacy.BackupSuffix
	if err := os.Rename(path, backup); err != nil {
		// Data is committed and the store is no longer empty, so the import
		// cannot repeat even if the rename failed.
		s.log.Warn("legacy import committed but rename failed", zap.String("legacy", path), zap.Error(err))
	}
	s.log.Info("legacy import complete", zap.Int("shops", shops), zap.Int("trades", trades), zap.String("backup", backup))
	return nil
}

func (s *Store) importLegacy(tx *sql.Tx, f legacy.File) (shops, trades int, err error) {
	type slotKey struct{ owner, slot string }
	type shopKey struct{ owner, key string }
	keys := map[slotKey]string{}
	claimed := map[shopKey]string{}

	for _, e := range f.Shops {
		if strings.TrimSpace(e.OwnerID) == "" || strings.TrimSpace(e.Name) == "" {
			continue
		}
		key := shop.Normalize(e.Name)
		if slot, ok := claimed[shopKey{e.OwnerID, key}]; ok {
			s.log.Warn("legacy slots share a shop name; skipping later slot and its trades",
				zap.String("owner", e.OwnerID), zap.String("shop", key),
				zap.String("kept_slot", slot), zap.String("skipped_slot", e.Slot))
			continue
		}
		claimed[shopKey{e.OwnerID, key}] = e.Slot
		res, err := tx.Exec(`INSERT OR IGNORE INTO shops(owner_id, name, display_name, owner_name, trader_ref, is_admin, last_trade_id)
			VALUES(?, ?, ?, ?, NULL, ?, 0)`,
			e.OwnerID, key, strings.TrimSpace(e.Name), e.OwnerName, boolInt(e.OwnerID == shop.AdminOwnerID))
		if err != nil {
			return 0, 0, fmt.Errorf("insert shop %s/%s: %w", e.OwnerID, key, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			shops++
		}
		if e.TraderRef != "" {
			if _, err := tx.Exec(`UPDATE shops SET trader_ref = NULL WHERE trader_ref = ?`, e.TraderRef); err != nil {
				return 0, 0, fmt.Errorf("unbind trader: %w", err)
			}
			if _, err := tx.Exec(`UPDATE shops SET trader_ref = ? WHERE owner_id = ? AND name = ?`, e.TraderRef, e.OwnerID, key); err != nil {
				return 0, 0, fmt.Errorf("bind trader: %w", err)
			}
		}
		keys[slotKey{e.OwnerID, e.Slot}] = key
	}

	for _, t := range f.Trades {
		key, ok := keys[slotKey{t.OwnerID, t.Slot}]
		if !ok {
			continue
		}
		if t.TradeID <= 0 {
			s.log.Warn("skipping legacy trade with bad id", zap.String("owner", t.OwnerID), zap.String("slot", t.Slot), zap.Int("trade_id", t.TradeID))
			continue
		}
		if err := shop.ValidateTrade(t.Input, t.InputQty, t.Output, t.OutputQty); err != nil {
			s.log.Warn("skipping incomplete legacy trade", zap.String("owner", t.OwnerID), zap.String("slot", t.Slot), zap.Int("trade_id", t.TradeID), zap.Error(err))
			continue
		}
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM trades WHERE owner_id = ? AND shop_name = ?`, t.OwnerID, key).Scan(&count); err != nil {
			return 0, 0, fmt.Errorf("count trades: %w", err)
		}
		if count >= shop.MaxTrades {
			s.log.Warn("legacy shop exceeds trade limit; dropping trade", zap.String("owner", t.OwnerID), zap.String("shop", key), zap.Int("trade_id", t.TradeID))
			continue
		}
		res, err := tx.Exec(`INSERT OR IGNORE INTO trades(owner_id, shop_name, trade_id, input_item_id, input_quantity, output_item_id, output_quantity)
			VALUES(?, ?, ?, ?, ?, ?, ?)`,
			t.OwnerID, key, t.TradeID, strings.TrimSpace(t.Input), t.InputQty, strings.TrimSpace(t.Output), t.OutputQty)
		if err != nil {
			return 0, 0, fmt.Errorf("insert trade %s/%s#%d: %w", t.OwnerID, key, t.TradeID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			trades++
		}
	}

	if _, err := tx.Exec(`UPDATE shops SET last_trade_id = COALESCE(
		(SELECT MAX(t.trade_id) FROM trades t WHERE t.owner_id = shops.owner_id AND t.shop_name = shops.name), 0)`); err != nil {
		return 0, 0, fmt.Errorf("seed trade ids: %w", err)
	}
	return shops, trades, nil
}
