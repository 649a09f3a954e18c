package main

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tradepost.ai/internal/config"
	"tradepost.ai/internal/persistence/jsonstore"
	"tradepost.ai/internal/persistence/sqlstore"
	"tradepost.ai/internal/shop"
)

// openStore builds the shop.Store for backend under cfg's data directory.
func openStore(cfg config.Settings, backend string, logger *zap.Logger) (shop.Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case config.BackendSQLite:
		s, err := sqlstore.Open(cfg.SQLitePath(), sqlstore.Options{
			LegacyFile: cfg.LegacyPath(),
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendJSON:
		s, err := jsonstore.Open(cfg.JSONPath(), jsonstore.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want sqlite|json)", backend)
	}
}
