package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oakley-grocery/backend/internal/app"
	"github.com/oakley-grocery/backend/internal/domain"
)

func productCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "product [code]",
		Short: "Show a product by stock code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: product code %q", domain.ErrInvalidRequest, args[0])
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				product, err := a.Resolver.ProductDetails(ctx, code)
				if err != nil {
					return err
				}
				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), product)
				}
				renderProducts(cmd.OutOrStdout(), []domain.CandidateProduct{*product})
				return nil
			})
		},
	}
}

func specialsCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "specials",
		Short: "List products currently on special",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				products, err := a.Resolver.Specials(ctx, page, pageSize)
				if err != nil {
					return err
				}
				if outputJSON {
					if products == nil {
						products = []domain.CandidateProduct{}
					}
					return writeJSON(cmd.OutOrStdout(), products)
				}
				renderProducts(cmd.OutOrStdout(), products)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "products per page")

	return cmd
}
