// Package sqlstore is the embedded relational shop store backed by SQLite.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"tradepost.ai/internal/shop"
)

type Options struct {
	// LegacyFile is imported once when set, present, and the store is empty.
	LegacyFile string
	Logger     *zap.Logger
}

// Store implements shop.Store. A single mutex serializes every public
// method; multi-statement sequences also run inside a transaction.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	log    *zap.Logger
	closed bool
}

var _ shop.Store = (*Store)(nil)

type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	// One connection so writes never contend.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, log: logger.With(zap.String("store", "sqlite"), zap.String("path", path))}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if opts.LegacyFile != "" {
		if err := s.importLegacyIfNeeded(opts.LegacyFile); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("legacy import: %w", err)
		}
	}
	return s, nil
}

// connPragmas are applied by the driver to every connection it opens, so a
// replaced connection keeps foreign keys and cascades on.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shops (
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			owner_name TEXT NOT NULL DEFAULT '',
			trader_ref TEXT,
			is_admin INTEGER NOT NULL DEFAULT 0,
			last_trade_id INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (owner_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
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
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	if s.closed {
		return errors.New("sqlstore: store is closed")
	}
	return nil
}

// inTx runs fn inside a transaction, committing only when fn succeeds.
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
