package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakley-grocery/backend/internal/app"
	"github.com/oakley-grocery/backend/internal/domain"
)

func learnCmd() *cobra.Command {
	var (
		input domain.PreferenceInput
		price float64
	)

	cmd := &cobra.Command{
		Use:   "learn [generic name] [product code] [product name]",
		Short: "Remember a product choice for a generic item",
		Long: `Store the product chosen for a generic item. Learning the same item again
replaces the product and bumps its purchase count.

Examples:
  grocery learn milk 123456 "Pauls Full Cream Milk 2L" --brand Pauls --size 2L --price 4.50`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: product code %q", domain.ErrInvalidRequest, args[1])
			}
			input.GenericName, input.ProductCode, input.ProductName = args[0], code, args[2]
			if cmd.Flags().Changed("price") {
				input.Price = domain.Float64(price)
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := a.Resolver.LearnPreference(ctx, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Learned %q -> %s (id %d)\n",
					domain.NormalizeGenericName(input.GenericName), input.ProductName, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&input.Brand, "brand", "b", "", "product brand")
	cmd.Flags().StringVarP(&input.PackageSize, "size", "s", "", "package size")
	cmd.Flags().Float64VarP(&price, "price", "p", 0, "price paid")

	return cmd
}

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage learned preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List preferences, most used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				prefs, err := a.Resolver.ListPreferences(ctx)
				if err != nil {
					return err
				}
				return outputPreferences(cmd, prefs)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search [substring]",
		Short: "Find preferences whose name contains substring",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				prefs, err := a.Resolver.SearchPreferences(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return outputPreferences(cmd, prefs)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [generic name]",
		Short: "Forget a preference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				deleted, err := a.Resolver.DeletePreference(ctx, name)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("%w: %s", domain.ErrPreferenceNotFound, name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", domain.NormalizeGenericName(name))
				return nil
			})
		},
	})

	return cmd
}

func outputPreferences(cmd *cobra.Command, prefs []domain.Preference) error {
	if outputJSON {
		if prefs == nil {
			prefs = []domain.Preference{}
		}
		return writeJSON(cmd.OutOrStdout(), prefs)
	}
	renderPreferences(cmd.OutOrStdout(), prefs)
	return nil
}
