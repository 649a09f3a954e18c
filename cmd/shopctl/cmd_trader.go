package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tradepost.ai/internal/shop"
)

func (a *app) traderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trader",
		Short: "Bind shops to trader agents",
	}

	link := &cobra.Command{
		Use:   "link <owner> <shop> [trader-ref]",
		Short: "Bind a trader to a shop; a random reference is generated when omitted",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := uuid.NewString()
			if len(args) == 3 {
				ref = args[2]
			}
			return a.withStore(func(s shop.Store) error {
				if err := s.SetTraderUUID(ownerArg(args[0]), args[1], ref); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "linked %s to %s\n", args[1], ref)
				return nil
			})
		},
	}

	unlink := &cobra.Command{
		Use:   "unlink <owner> <shop>",
		Short: "Remove the trader binding of a shop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s shop.Store) error {
				if err := s.ClearTraderUUID(ownerArg(args[0]), args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unlinked %s\n", args[1])
				return nil
			})
		},
	}

	find := &cobra.Command{
		Use:   "find <trader-ref>",
		Short: "Show the shop a trader serves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s shop.Store) error {
				sh, ok, err := s.FindShopByTrader(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no shop is bound to trader %s", args[0])
				}
				printShop(cmd.OutOrStdout(), sh)
				return nil
			})
		},
	}

	cmd.AddCommand(link, unlink, find)
	return cmd
}
