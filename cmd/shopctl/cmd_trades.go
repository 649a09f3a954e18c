package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tradepost.ai/internal/shop"
)

func (a *app) tradesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Manage the trade offers of a shop",
	}

	add := &cobra.Command{
		Use:   "add <owner> <shop> <input-item> <input-qty> <output-item> <output-qty>",
		Short: "Add a trade offer",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			inQty, outQty, err := quantities(args[3], args[5])
			if err != nil {
				return err
			}
			return a.withStore(func(s shop.Store) error {
				t, err := s.AddTrade(ownerArg(args[0]), args[1], args[2], inQty, args[4], outQty)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added trade #%d\n", t.ID)
				return nil
			})
		},
	}

	update := &cobra.Command{
		Use:   "update <owner> <shop> <trade-id> <input-item> <input-qty> <output-item> <output-qty>",
		Short: "Replace the items and quantities of a trade offer",
		Args:  cobra.ExactArgs(7),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("trade id: %w", err)
			}
			inQty, outQty, err := quantities(args[4], args[6])
			if err != nil {
				return err
			}
			return a.withStore(func(s shop.Store) error {
				t, err := s.UpdateTrade(ownerArg(args[0]), args[1], id, args[3], inQty, args[5], outQty)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated trade #%d\n", t.ID)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <owner> <shop> <trade-id>",
		Short: "Remove a trade offer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("trade id: %w", err)
			}
			return a.withStore(func(s shop.Store) error {
				if err := s.RemoveTrade(ownerArg(args[0]), args[1], id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed trade #%d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(add, update, remove)
	return cmd
}

func quantities(in, out string) (int, int, error) {
	inQty, err := strconv.Atoi(in)
	if err != nil {
		return 0, 0, fmt.Errorf("input quantity: %w", err)
	}
	outQty, err := strconv.Atoi(out)
	if err != nil {
		return 0, 0, fmt.Errorf("output quantity: %w", err)
	}
	return inQty, outQty, nil
}
