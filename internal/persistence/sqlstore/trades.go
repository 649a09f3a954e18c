package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tradepost.ai/internal/shop"
)

func (s *Store) AddTrade(ownerID, shopName, inputItem string, inputQty int, outputItem string, outputQty int) (shop.Trade, error) {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return shop.Trade{}, err
	}
	if err := shop.ValidateName(shopName); err != nil {
		return shop.Trade{}, err
	}
	if err := shop.ValidateTrade(inputItem, inputQty, outputItem, outputQty); err != nil {
		return shop.Trade{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return shop.Trade{}, err
	}

	key := shop.Normalize(shopName)
	t := shop.Trade{
		InputItem:  strings.TrimSpace(inputItem),
		InputQty:   inputQty,
		OutputItem: strings.TrimSpace(outputItem),
		OutputQty:  outputQty,
	}
	err := s.inTx(func(tx *sql.Tx) error {
		sh, ok, err := loadShop(tx, ownerID, key)
		if err != nil {
			return err
		}
		if !ok {
			return shop.ShopNotFound(shopName)
		}
		if len(sh.Trades) >= shop.MaxTrades {
			return shop.TooManyTrades()
		}
		t.ID = sh.NextTradeID()
		if _, err := tx.Exec(`INSERT INTO trades(owner_id, shop_name, trade_id, input_item_id, input_quantity, output_item_id, output_quantity)
			VALUES(?, ?, ?, ?, ?, ?, ?)`, ownerID, key, t.ID, t.InputItem, t.InputQty, t.OutputItem, t.OutputQty); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		if _, err := tx.Exec(`UPDATE shops SET last_trade_id = ? WHERE owner_id = ? AND name = ?`, t.ID, ownerID, key); err != nil {
			return fmt.Errorf("bump trade id: %w", err)
		}
		return nil
	})
	if err != nil {
		return shop.Trade{}, err
	}
	s.log.Debug("trade added", zap.String("owner", ownerID), zap.String("shop", key), zap.Int("trade_id", t.ID))
	return t, nil
}

func (s *Store) UpdateTrade(ownerID, shopName string, tradeID int, inputItem string, inputQty int, outputItem string, outputQty int) (shop.Trade, error) {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return shop.Trade{}, err
	}
	if err := shop.ValidateName(shopName); err != nil {
		return shop.Trade{}, err
	}
	if err := shop.ValidateTrade(inputItem, inputQty, outputItem, outputQty); err != nil {
		return shop.Trade{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return shop.Trade{}, err
	}

	key := shop.Normalize(shopName)
	t := shop.Trade{
		ID:         tradeID,
		InputItem:  strings.TrimSpace(inputItem),
		InputQty:   inputQty,
		OutputItem: strings.TrimSpace(outputItem),
		OutputQty:  outputQty,
	}
	res, err := s.db.Exec(`UPDATE trades SET input_item_id = ?, input_quantity = ?, output_item_id = ?, output_quantity = ?
		WHERE owner_id = ? AND shop_name = ? AND trade_id = ?`,
		t.InputItem, t.InputQty, t.OutputItem, t.OutputQty, ownerID, key, tradeID)
	if err != nil {
		return shop.Trade{}, fmt.Errorf("update trade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shop.Trade{}, s.missingTradeErr(ownerID, shopName, tradeID)
	}
	return t, nil
}

func (s *Store) RemoveTrade(ownerID, shopName string, tradeID int) error {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return err
	}
	if err := shop.ValidateName(shopName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.Exec(`DELETE FROM trades WHERE owner_id = ? AND shop_name = ? AND trade_id = ?`,
		ownerID, shop.Normalize(shopName), tradeID)
	if err != nil {
		return fmt.Errorf("remove trade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missingTradeErr(ownerID, shopName, tradeID)
	}
	return nil
}

// missingTradeErr tells a missing shop apart from a missing trade.
func (s *Store) missingTradeErr(ownerID, shopName string, tradeID int) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM shops WHERE owner_id = ? AND name = ?`,
		ownerID, shop.Normalize(shopName)).Scan(&n); err != nil {
		return fmt.Errorf("lookup shop: %w", err)
	}
	if n == 0 {
		return shop.ShopNotFound(shopName)
	}
	return shop.TradeNotFound(shopName, tradeID)
}

func (s *Store) ImportShop(rec shop.Shop) (bool, error) {
	if err := shop.ValidateRecord(rec); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	inserted := false
	err := s.inTx(func(tx *sql.Tx) error {
		ok, err := insertShopRecord(tx, rec)
		inserted = ok
		return err
	})
	return inserted, err
}

// insertShopRecord writes a full record with insert-or-ignore semantics and
// reports whether the shop row was new.
func insertShopRecord(tx *sql.Tx, rec shop.Shop) (bool, error) {
	key := shop.Normalize(rec.DisplayName)
	last := shop.Shop{LastTradeID: rec.LastTradeID, Trades: rec.Trades}.NextTradeID() - 1
	res, err := tx.Exec(`INSERT OR IGNORE INTO shops(owner_id, name, display_name, owner_name, trader_ref, is_admin, last_trade_id)
		VALUES(?, ?, ?, ?, NULL, ?, ?)`,
		rec.OwnerID, key, strings.TrimSpace(rec.DisplayName), rec.OwnerName, boolInt(rec.IsAdmin), last)
	if err != nil {
		return false, fmt.Errorf("insert shop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if ref := strings.TrimSpace(rec.TraderRef); ref != "" {
		if _, err := tx.Exec(`UPDATE shops SET trader_ref = NULL WHERE trader_ref = ?`, ref); err != nil {
			return false, fmt.Errorf("unbind trader: %w", err)
		}
		if _, err := tx.Exec(`UPDATE shops SET trader_ref = ? WHERE owner_id = ? AND name = ?`, ref, rec.OwnerID, key); err != nil {
			return false, fmt.Errorf("bind trader: %w", err)
		}
	}
	for _, t := range rec.Trades {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO trades(owner_id, shop_name, trade_id, input_item_id, input_quantity, output_item_id, output_quantity)
			VALUES(?, ?, ?, ?, ?, ?, ?)`, rec.OwnerID, key, t.ID, strings.TrimSpace(t.InputItem), t.InputQty, strings.TrimSpace(t.OutputItem), t.OutputQty); err != nil {
			return false, fmt.Errorf("insert trade: %w", err)
		}
	}
	return true, nil
}
