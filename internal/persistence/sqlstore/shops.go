package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tradepost.ai/internal/shop"
)

const shopColumns = `owner_id, name, display_name, COALESCE(owner_name, ''), COALESCE(trader_ref, ''), is_admin, last_trade_id`

func scanShop(row interface{ Scan(...any) error }) (shop.Shop, error) {
	var (
		sh      shop.Shop
		isAdmin int
	)
	if err := row.Scan(&sh.OwnerID, &sh.Key, &sh.DisplayName, &sh.OwnerName, &sh.TraderRef, &isAdmin, &sh.LastTradeID); err != nil {
		return shop.Shop{}, err
	}
	sh.IsAdmin = isAdmin != 0
	if sh.DisplayName == "" {
		sh.DisplayName = sh.Key
	}
	sh.Trades = []shop.Trade{}
	return sh, nil
}

// loadShop returns ok=false when the shop does not exist.
func loadShop(q queryer, ownerID, key string) (shop.Shop, bool, error) {
	row := q.QueryRow(`SELECT `+shopColumns+` FROM shops WHERE owner_id = ? AND name = ?`, ownerID, key)
	sh, err := scanShop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return shop.Shop{}, false, nil
	}
	if err != nil {
		return shop.Shop{}, false, fmt.Errorf("load shop: %w", err)
	}
	trades, err := loadTrades(q, ownerID, key)
	if err != nil {
		return shop.Shop{}, false, err
	}
	sh.Trades = trades
	return sh, true, nil
}

func loadTrades(q queryer, ownerID, key string) ([]shop.Trade, error) {
	rows, err := q.Query(`SELECT trade_id, input_item_id, input_quantity, output_item_id, output_quantity
		FROM trades WHERE owner_id = ? AND shop_name = ? ORDER BY trade_id`, ownerID, key)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	defer rows.Close()
	out := []shop.Trade{}
	for rows.Next() {
		var t shop.Trade
		if err := rows.Scan(&t.ID, &t.InputItem, &t.InputQty, &t.OutputItem, &t.OutputQty); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// listShops loads shops (optionally for one owner) with their trades in
// two queries.
func (s *Store) listShops(ownerID string, filter bool) ([]shop.Shop, error) {
	var (
		shopRows  *sql.Rows
		tradeRows *sql.Rows
		err       error
	)
	if filter {
		shopRows, err = s.db.Query(`SELECT `+shopColumns+` FROM shops WHERE owner_id = ?`, ownerID)
	} else {
		shopRows, err = s.db.Query(`SELECT ` + shopColumns + ` FROM shops`)
	}
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	type shopKey struct{ owner, key string }
	var order []shopKey
	byKey := map[shopKey]*shop.Shop{}
	for shopRows.Next() {
		sh, err := scanShop(shopRows)
		if err != nil {
			shopRows.Close()
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		k := shopKey{sh.OwnerID, sh.Key}
		order = append(order, k)
		byKey[k] = &sh
	}
	if err := shopRows.Close(); err != nil {
		return nil, err
	}
	if err := shopRows.Err(); err != nil {
		return nil, err
	}

	const tradeCols = `owner_id, shop_name, trade_id, input_item_id, input_quantity, output_item_id, output_quantity`
	if filter {
		tradeRows, err = s.db.Query(`SELECT `+tradeCols+` FROM trades WHERE owner_id = ? ORDER BY trade_id`, ownerID)
	} else {
		tradeRows, err = s.db.Query(`SELECT ` + tradeCols + ` FROM trades ORDER BY trade_id`)
	}
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer tradeRows.Close()
	for tradeRows.Next() {
		var (
			k shopKey
			t shop.Trade
		)
		if err := tradeRows.Scan(&k.owner, &k.key, &t.ID, &t.InputItem, &t.InputQty, &t.OutputItem, &t.OutputQty); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if sh := byKey[k]; sh != nil {
			sh.Trades = append(sh.Trades, t)
		}
	}
	if err := tradeRows.Err(); err != nil {
		return nil, err
	}

	out := make([]shop.Shop, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	shop.SortShops(out)
	return out, nil
}

func (s *Store) CreateShop(ownerID, ownerName, name string, isAdmin bool) (shop.Shop, error) {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return shop.Shop{}, err
	}
	if err := shop.ValidateName(name); err != nil {
		return shop.Shop{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return shop.Shop{}, err
	}

	key := shop.Normalize(name)
	var out shop.Shop
	err := s.inTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT OR IGNORE INTO shops(owner_id, name, display_name, owner_name, trader_ref, is_admin, last_trade_id)
			VALUES(?, ?, ?, ?, NULL, ?, 0)`, ownerID, key, strings.TrimSpace(name), ownerName, boolInt(isAdmin))
		if err != nil {
			return fmt.Errorf("insert shop: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.log.Info("shop created", zap.String("owner", ownerID), zap.String("shop", key), zap.Bool("admin", isAdmin))
		}
		sh, _, err := loadShop(tx, ownerID, key)
		out = sh
		return err
	})
	return out, err
}

func (s *Store) RenameShop(ownerID, currentName, newName string) (shop.Shop, error) {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return shop.Shop{}, err
	}
	if err := shop.ValidateName(currentName); err != nil {
		return shop.Shop{}, err
	}
	if err := shop.ValidateName(newName); err != nil {
		return shop.Shop{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return shop.Shop{}, err
	}

	curKey, newKey := shop.Normalize(currentName), shop.Normalize(newName)
	var out shop.Shop
	err := s.inTx(func(tx *sql.Tx) error {
		_, ok, err := loadShop(tx, ownerID, curKey)
		if err != nil {
			return err
		}
		if !ok {
			return shop.ShopNotFound(currentName)
		}
		if newKey != curKey {
			_, taken, err := loadShop(tx, ownerID, newKey)
			if err != nil {
				return err
			}
			if taken {
				return shop.NameTaken(newName)
			}
		}
		// Trades follow the key change through ON UPDATE CASCADE.
		if _, err := tx.Exec(`UPDATE shops SET name = ?, display_name = ? WHERE owner_id = ? AND name = ?`,
			newKey, strings.TrimSpace(newName), ownerID, curKey); err != nil {
			return fmt.Errorf("rename shop: %w", err)
		}
		sh, _, err := loadShop(tx, ownerID, newKey)
		out = sh
		return err
	})
	return out, err
}

func (s *Store) DeleteShop(ownerID, name string) error {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return err
	}
	if err := shop.ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	key := shop.Normalize(name)
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM trades WHERE owner_id = ? AND shop_name = ?`, ownerID, key); err != nil {
			return fmt.Errorf("delete trades: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM shops WHERE owner_id = ? AND name = ?`, ownerID, key)
		if err != nil {
			return fmt.Errorf("delete shop: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return shop.ShopNotFound(name)
		}
		s.log.Info("shop deleted", zap.String("owner", ownerID), zap.String("shop", key))
		return nil
	})
}

func (s *Store) GetShop(ownerID, name string) (shop.Shop, error) {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return shop.Shop{}, err
	}
	if err := shop.ValidateName(name); err != nil {
		return shop.Shop{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return shop.Shop{}, err
	}

	sh, ok, err := loadShop(s.db, ownerID, shop.Normalize(name))
	if err != nil {
		return shop.Shop{}, err
	}
	if !ok {
		return shop.Shop{}, shop.ShopNotFound(name)
	}
	return sh, nil
}

func (s *Store) ListShops(ownerID string) ([]shop.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return []shop.Shop{}, nil
	}
	return s.listShops(ownerID, true)
}

func (s *Store) ListAllShops() ([]shop.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.listShops("", false)
}

func (s *Store) FindShopByTrader(ref string) (shop.Shop, bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return shop.Shop{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return shop.Shop{}, false, err
	}

	var ownerID, key string
	err := s.db.QueryRow(`SELECT owner_id, name FROM shops WHERE trader_ref = ? LIMIT 1`, ref).Scan(&ownerID, &key)
	if errors.Is(err, sql.ErrNoRows) {
		return shop.Shop{}, false, nil
	}
	if err != nil {
		return shop.Shop{}, false, fmt.Errorf("find by trader: %w", err)
	}
	return loadShop(s.db, ownerID, key)
}

func (s *Store) SetTraderUUID(ownerID, name, ref string) error {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return err
	}
	if err := shop.ValidateName(name); err != nil {
		return err
	}
	if err := shop.ValidateTraderRef(ref); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	key, ref := shop.Normalize(name), strings.TrimSpace(ref)
	return s.inTx(func(tx *sql.Tx) error {
		_, ok, err := loadShop(tx, ownerID, key)
		if err != nil {
			return err
		}
		if !ok {
			return shop.ShopNotFound(name)
		}
		// A trader serves one shop: unbind it from any other shop first.
		if _, err := tx.Exec(`UPDATE shops SET trader_ref = NULL WHERE trader_ref = ? AND NOT (owner_id = ? AND name = ?)`,
			ref, ownerID, key); err != nil {
			return fmt.Errorf("unbind trader: %w", err)
		}
		if _, err := tx.Exec(`UPDATE shops SET trader_ref = ? WHERE owner_id = ? AND name = ?`, ref, ownerID, key); err != nil {
			return fmt.Errorf("bind trader: %w", err)
		}
		return nil
	})
}

func (s *Store) ClearTraderUUID(ownerID, name string) error {
	if err := shop.ValidateOwner(ownerID); err != nil {
		return err
	}
	if err := shop.ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.Exec(`UPDATE shops SET trader_ref = NULL WHERE owner_id = ? AND name = ?`, ownerID, shop.Normalize(name))
	if err != nil {
		return fmt.Errorf("clear trader: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shop.ShopNotFound(name)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
