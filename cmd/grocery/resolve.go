package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakley-grocery/backend/internal/app"
	"github.com/oakley-grocery/backend/internal/domain"
)

func resolveCmd() *cobra.Command {
	var req domain.ResolveRequest

	cmd := &cobra.Command{
		Use:   "resolve [generic name]",
		Short: "Resolve one generic item to a product",
		Long: `Resolve a generic item such as "milk" to a concrete product, using learned
preferences first and the product search otherwise.

Examples:
  grocery resolve milk
  grocery resolve "full cream milk" --brand Pauls --size 2L
  grocery resolve bread --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.GenericName = strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Resolver.Resolve(ctx, req)
				if err != nil {
					return err
				}
				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				renderResolution(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.PreferBrand, "brand", "b", "", "preferred brand")
	cmd.Flags().StringVarP(&req.PreferSize, "size", "s", "", "preferred package size")
	cmd.Flags().IntVarP(&req.Quantity, "quantity", "q", 1, "quantity")

	return cmd
}

func batchCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch [generic name...]",
		Short: "Resolve a shopping list",
		Long: `Resolve several items at once. Items come from the arguments or from a JSON
file holding an array of {"generic_name", "quantity", "prefer_brand", "prefer_size"}.

Examples:
  grocery batch milk bread eggs
  grocery batch --file list.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := batchRequests(file, args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				results, batchErr := a.Resolver.ResolveBatch(ctx, reqs)
				if outputJSON {
					if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
						return err
					}
				} else {
					renderBatch(cmd.OutOrStdout(), results)
				}
				return batchErr
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the items to resolve")

	return cmd
}

// batchRequests reads items from file when given, otherwise one item per argument
func batchRequests(file string, args []string) ([]domain.ResolveRequest, error) {
	if file == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: no items given", domain.ErrInvalidRequest)
		}
		reqs := make([]domain.ResolveRequest, len(args))
		for i, name := range args {
			reqs[i] = domain.ResolveRequest{GenericName: name, Quantity: 1}
		}
		return reqs, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	var reqs []domain.ResolveRequest
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: %s has no items", domain.ErrInvalidRequest, file)
	}
	return reqs, nil
}
