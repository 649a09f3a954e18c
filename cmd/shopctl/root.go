package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradepost.ai/internal/config"
	"tradepost.ai/internal/shop"
)

type app struct {
	settingsPath string
	backend      string
	dataDir      string
	logLevel     string

	cfg config.Settings
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "shopctl",
		Short: "Inspect and administer player shops",
		Long: `shopctl manages the shop store used by the trading service.

The backend (sqlite or json) and data directory come from settings.yaml,
the TRADEPOST_* environment variables, or the flags below, in increasing
order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.settingsPath, "settings", "./configs/settings.yaml", "settings.yaml path")
	f.StringVar(&a.backend, "backend", "", "store backend: sqlite|json (overrides settings)")
	f.StringVar(&a.dataDir, "data-dir", "", "data directory (overrides settings)")
	f.StringVar(&a.logLevel, "log-level", "", "debug|info|warn|error (overrides settings)")

	root.AddCommand(
		a.shopsCmd(),
		a.tradesCmd(),
		a.traderCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.migrateCmd(),
		a.simulateCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.settingsPath)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Store.Backend = a.backend
	}
	if a.dataDir != "" {
		cfg.Store.DataDir = a.dataDir
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	a.cfg = cfg

	zc := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	a.log, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// withStore opens the configured backend for the duration of fn.
func (a *app) withStore(fn func(s shop.Store) error) error {
	s, err := openStore(a.cfg, a.cfg.Store.Backend, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.log.Warn("close store", zap.Error(err))
		}
	}()
	return fn(s)
}

// ownerArg maps the literal "admin" to the admin pseudo-owner.
func ownerArg(s string) string {
	if s == "admin" {
		return shop.AdminOwnerID
	}
	return s
}

func printShop(w io.Writer, sh shop.Shop) {
	admin := ""
	if sh.IsAdmin {
		admin = " [admin]"
	}
	ref := sh.TraderRef
	if ref == "" {
		ref = "-"
	}
	fmt.Fprintf(w, "%s\t%s%s\towner=%s (%s)\ttrader=%s\ttrades=%d\n",
		sh.DisplayName, sh.Key, admin, sh.OwnerID, sh.OwnerName, ref, len(sh.Trades))
	for _, t := range sh.Trades {
		fmt.Fprintf(w, "  #%d\t%d x %s -> %d x %s\n", t.ID, t.InputQty, t.InputItem, t.OutputQty, t.OutputItem)
	}
}
