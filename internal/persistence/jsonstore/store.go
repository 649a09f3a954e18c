// Package jsonstore is the flat-file shop store: every shop lives in memory
// and the whole set is rewritten to one pretty-printed JSON file after each
// mutation.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tradepost.ai/internal/shop"
)

type Options struct {
	Logger *zap.Logger
}

type Store struct {
	mu     sync.Mutex
	path   string
	log    *zap.Logger
	shops  map[string]map[string]*shop.Shop // owner -> key -> shop
	closed bool
}

var _ shop.Store = (*Store)(nil)

// Open loads path if it exists; a missing file starts an empty store.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty store path")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:  path,
		log:   logger.With(zap.String("store", "json"), zap.String("path", path)),
		shops: map[string]map[string]*shop.Shop{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := validateDocument(raw); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(s.path), err)
	}
	var recs []shop.Shop
	if err := json.Unmarshal(raw, &recs); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(s.path), err)
	}
	refs := map[string]bool{}
	for i := range recs {
		rec := recs[i].Clone()
		rec.Key = shop.Normalize(rec.DisplayName)
		rec.DisplayName = strings.TrimSpace(rec.DisplayName)
		if s.lookup(rec.OwnerID, rec.Key) != nil {
			s.log.Warn("duplicate shop in file; keeping first", zap.String("owner", rec.OwnerID), zap.String("shop", rec.Key))
			continue
		}
		if rec.TraderRef != "" {
			if refs[rec.TraderRef] {
				s.log.Warn("trader bound to several shops; unbinding", zap.String("owner", rec.OwnerID), zap.String("shop", rec.Key))
				rec.TraderRef = ""
			} else {
				refs[rec.TraderRef] = true
			}
		}
		shop.SortTrades(rec.Trades)
		rec.LastTradeID = rec.NextTradeID() - 1
		s.put(&rec)
	}
	return nil
}

func (s *Store) lookup(ownerID, key string) *shop.Shop {
	return s.shops[ownerID][key]
}

func (s *Store) put(sh *shop.Shop) {
	m := s.shops[sh.OwnerID]
	if m == nil {
		m = map[string]*shop.Shop{}
		s.shops[sh.OwnerID] = m
	}
	m[sh.Key] = sh
}

func (s *Store) remove(ownerID, key string) {
	m := s.shops[ownerID]
	delete(m, key)
	if len(m) == 0 {
		delete(s.shops, ownerID)
	}
}

func (s *Store) all() []shop.Shop {
	var out []shop.Shop
	for _, m := range s.shops {
		for _, sh := range m {
			out = append(out, sh.Clone())
		}
	}
	shop.SortShops(out)
	return out
}

// mutate runs fn against the in-memory index and persists the result. If
// fn or the write fails the index is restored, so a failed call changes
// nothing.
func (s *Store) mutate(fn func() error) error {
	backup := make(map[string]map[string]*shop.Shop, len(s.shops))
	for owner, m := range s.shops {
		cp := make(map[string]*shop.Shop, len(m))
		for k, sh := range m {
			c := sh.Clone()
			cp[k] = &c
		}
		backup[owner] = cp
	}
	if err := fn(); err != nil {
		s.shops = backup
		return err
	}
	if err := s.persist(); err != nil {
		s.shops = backup
		return fmt.Errorf("write %s: %w", filepath.Base(s.path), err)
	}
	return nil
}

func (s *Store) persist() error {
	recs := s.all()
	if recs == nil {
		recs = []shop.Shop{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, append(b, '\n'))
}

func writeFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return errors.New("jsonstore: store is closed")
	}
	return nil
}
