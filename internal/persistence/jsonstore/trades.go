package jsonstore

import (
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
	err := s.mutate(func() error {
		sh := s.lookup(ownerID, key)
		if sh == nil {
			return shop.ShopNotFound(shopName)
		}
		if len(sh.Trades) >= shop.MaxTrades {
			return shop.TooManyTrades()
		}
		t.ID = sh.NextTradeID()
		sh.Trades = append(sh.Trades, t)
		sh.LastTradeID = t.ID
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

	t := shop.Trade{
		ID:         tradeID,
		InputItem:  strings.TrimSpace(inputItem),
		InputQty:   inputQty,
		OutputItem: strings.TrimSpace(outputItem),
		OutputQty:  outputQty,
	}
	err := s.mutate(func() error {
		sh := s.lookup(ownerID, shop.Normalize(shopName))
		if sh == nil {
			return shop.ShopNotFound(shopName)
		}
		for i := range sh.Trades {
			if sh.Trades[i].ID == tradeID {
				sh.Trades[i] = t
				return nil
			}
		}
		return shop.TradeNotFound(shopName, tradeID)
	})
	if err != nil {
		return shop.Trade{}, err
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

	return s.mutate(func() error {
		sh := s.lookup(ownerID, shop.Normalize(shopName))
		if sh == nil {
			return shop.ShopNotFound(shopName)
		}
		for i := range sh.Trades {
			if sh.Trades[i].ID == tradeID {
				sh.Trades = append(sh.Trades[:i], sh.Trades[i+1:]...)
				return nil
			}
		}
		return shop.TradeNotFound(shopName, tradeID)
	})
}
