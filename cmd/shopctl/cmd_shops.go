package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tradepost.ai/internal/shop"
)

func (a *app) shopsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shops",
		Short: "List and manage shops",
	}

	var owner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List shops, optionally for one owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s shop.Store) error {
				var (
					shops []shop.Shop
					err   error
				)
				if owner != "" {
					shops, err = s.ListShops(ownerArg(owner))
				} else {
					shops, err = s.ListAllShops()
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, sh := range shops {
					printShop(out, sh)
				}
				fmt.Fprintf(out, "Total: %d shops\n", len(shops))
				return nil
			})
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "owner id (\"admin\" for admin shops)")

	var ownerName string
	create := &cobra.Command{
		Use:   "create <owner> <name>",
		Short: "Create a shop (no-op if it already exists)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := ownerArg(args[0])
			return a.withStore(func(s shop.Store) error {
				sh, err := s.CreateShop(owner, ownerName, args[1], owner == shop.AdminOwnerID)
				if err != nil {
					return err
				}
				printShop(cmd.OutOrStdout(), sh)
				return nil
			})
		},
	}
	create.Flags().StringVar(&ownerName, "owner-name", "", "owner display name")

	rename := &cobra.Command{
		Use:   "rename <owner> <current> <new>",
		Short: "Rename a shop",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s shop.Store) error {
				sh, err := s.RenameShop(ownerArg(args[0]), args[1], args[2])
				if err != nil {
					return err
				}
				printShop(cmd.OutOrStdout(), sh)
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <owner> <name>",
		Short: "Delete a shop and its trades",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s shop.Store) error {
				if err := s.DeleteShop(ownerArg(args[0]), args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[1])
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <owner> <name>",
		Short: "Show one shop with its trades",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s shop.Store) error {
				sh, err := s.GetShop(ownerArg(args[0]), args[1])
				if err != nil {
					return err
				}
				printShop(cmd.OutOrStdout(), sh)
				return nil
			})
		},
	}

	cmd.AddCommand(list, create, rename, del, show)
	return cmd
}
