package jsonstore

import (
	"strings"

	"go.uber.org/zap"

	"tradepost.ai/internal/shop"
)

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
	if sh := s.lookup(ownerID, key); sh != nil {
		return sh.Clone(), nil
	}
	sh := &shop.Shop{
		OwnerID:     ownerID,
		OwnerName:   ownerName,
		DisplayName: strings.TrimSpace(name),
		Key:         key,
		IsAdmin:     isAdmin,
		Trades:      []shop.Trade{},
	}
	if err := s.mutate(func() error { s.put(sh); return nil }); err != nil {
		return shop.Shop{}, err
	}
	s.log.Info("shop created", zap.String("owner", ownerID), zap.String("shop", key), zap.Bool("admin", isAdmin))
	return sh.Clone(), nil
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
	err := s.mutate(func() error {
		sh := s.lookup(ownerID, curKey)
		if sh == nil {
			return shop.ShopNotFound(currentName)
		}
		if newKey != curKey && s.lookup(ownerID, newKey) != nil {
			return shop.NameTaken(newName)
		}
		s.remove(ownerID, curKey)
		sh.Key = newKey
		sh.DisplayName = strings.TrimSpace(newName)
		s.put(sh)
		out = sh.Clone()
		return nil
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
	return s.mutate(func() error {
		if s.lookup(ownerID, key) == nil {
			return shop.ShopNotFound(name)
		}
		// Trades live inside the record, so removing it is the cascade.
		s.remove(ownerID, key)
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

	sh := s.lookup(ownerID, shop.Normalize(name))
	if sh == nil {
		return shop.Shop{}, shop.ShopNotFound(name)
	}
	return sh.Clone(), nil
}

func (s *Store) ListShops(ownerID string) ([]shop.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := []shop.Shop{}
	for _, sh := range s.shops[ownerID] {
		out = append(out, sh.Clone())
	}
	shop.SortShops(out)
	return out, nil
}

func (s *Store) ListAllShops() ([]shop.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := s.all()
	if out == nil {
		out = []shop.Shop{}
	}
	return out, nil
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
	if sh := s.findByTrader(ref); sh != nil {
		return sh.Clone(), true, nil
	}
	return shop.Shop{}, false, nil
}

func (s *Store) findByTrader(ref string) *shop.Shop {
	for _, m := range s.shops {
		for _, sh := range m {
			if sh.TraderRef == ref {
				return sh
			}
		}
	}
	return nil
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
	return s.mutate(func() error {
		sh := s.lookup(ownerID, key)
		if sh == nil {
			return shop.ShopNotFound(name)
		}
		if other := s.findByTrader(ref); other != nil && other != sh {
			other.TraderRef = ""
		}
		sh.TraderRef = ref
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

	key := shop.Normalize(name)
	return s.mutate(func() error {
		sh := s.lookup(ownerID, key)
		if sh == nil {
			return shop.ShopNotFound(name)
		}
		sh.TraderRef = ""
		return nil
	})
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

	key := shop.Normalize(rec.DisplayName)
	if s.lookup(rec.OwnerID, key) != nil {
		return false, nil
	}
	sh := rec.Clone()
	sh.Key = key
	sh.DisplayName = strings.TrimSpace(rec.DisplayName)
	sh.TraderRef = strings.TrimSpace(rec.TraderRef)
	for i := range sh.Trades {
		sh.Trades[i].InputItem = strings.TrimSpace(sh.Trades[i].InputItem)
		sh.Trades[i].OutputItem = strings.TrimSpace(sh.Trades[i].OutputItem)
	}
	shop.SortTrades(sh.Trades)
	sh.LastTradeID = sh.NextTradeID() - 1
	err := s.mutate(func() error {
		if sh.TraderRef != "" {
			if other := s.findByTrader(sh.TraderRef); other != nil {
				other.TraderRef = ""
			}
		}
		s.put(&sh)
		return nil
	})
	return err == nil, err
}
