package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradepost.ai/internal/config"
	"tradepost.ai/internal/persistence/dump"
	"tradepost.ai/internal/shop"
)

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl.zst>",
		Short: "Write every shop to a compressed dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s shop.Store) error {
				n, err := dump.ExportFile(args[0], s)
				if err != nil {
					return err
				}
				a.log.Info("export complete", zap.String("path", args[0]), zap.Int("shops", n))
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d shops\n", n)
				return nil
			})
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl.zst>",
		Short: "Load shops from a compressed dump, skipping existing ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s shop.Store) error {
				stats, err := dump.ImportFile(args[0], s)
				if err != nil {
					return err
				}
				a.log.Info("import complete", zap.String("path", args[0]),
					zap.Int("imported", stats.Imported), zap.Int("skipped", stats.Skipped))
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d shops, skipped %d\n", stats.Imported, stats.Skipped)
				return nil
			})
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every shop from the configured backend into another backend",
		Long: `migrate opens the configured backend (running its schema migrations and
any pending legacy import) and copies all shops into the target backend in the
same data directory. Shops already present in the target are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == a.cfg.Store.Backend {
				return fmt.Errorf("source and target backend are both %s", to)
			}
			return a.withStore(func(src shop.Store) error {
				dst, err := openStore(a.cfg, to, a.log)
				if err != nil {
					return err
				}
				defer dst.Close()

				shops, err := src.ListAllShops()
				if err != nil {
					return err
				}
				copied := 0
				for _, sh := range shops {
					ok, err := dst.ImportShop(sh)
					if err != nil {
						return fmt.Errorf("%s/%s: %w", sh.OwnerID, sh.DisplayName, err)
					}
					if ok {
						copied++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "copied %d of %d shops from %s to %s\n",
					copied, len(shops), a.cfg.Store.Backend, to)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", config.BackendJSON, "target backend: sqlite|json")
	return cmd
}
