package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/inventory"
	"github.com/sells-group/solar-router/internal/model"
)

var seedFile string

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Manage partner platform inventory",
}

var inventoryMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply inventory schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInventory(cmd.Context(), cfg, func(ctx context.Context, st inventory.Store) error {
			m, ok := st.(inventory.Migrator)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "driver %s has no schema\n", cfg.Inventory.Driver)
				return nil
			}
			if err := m.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate inventory")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "inventory migrations applied")
			return nil
		})
	},
}

var inventorySeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load platform definitions into the inventory store",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := seedFile
		if path == "" {
			path = cfg.Reference.PlatformsPath
		}
		return withInventory(cmd.Context(), cfg, func(ctx context.Context, st inventory.Store) error {
			n, err := inventory.Seed(ctx, st, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d platforms from %s\n", n, path)
			return nil
		})
	},
}

var inventoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show platform capacity and pricing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInventory(cmd.Context(), cfg, func(ctx context.Context, st inventory.Store) error {
			platforms, err := st.Snapshot(ctx)
			if err != nil {
				return eris.Wrap(err, "snapshot inventory")
			}
			return printPlatforms(cmd.OutOrStdout(), platforms)
		})
	},
}

var inventoryReleaseCmd = &cobra.Command{
	Use:   "release <platform>",
	Short: "Return one unit of capacity to a platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInventory(cmd.Context(), cfg, func(ctx context.Context, st inventory.Store) error {
			remaining, err := st.Release(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d remaining\n", args[0], remaining)
			return nil
		})
	},
}

var inventorySetAcceptingCmd = &cobra.Command{
	Use:   "set-accepting <platform> <true|false>",
	Short: "Pause or resume lead delivery to a platform",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		accepting, err := strconv.ParseBool(args[1])
		if err != nil {
			return eris.Wrapf(model.ErrInvalidInput, "accepting must be true or false, got %q", args[1])
		}
		return withInventory(cmd.Context(), cfg, func(ctx context.Context, st inventory.Store) error {
			if err := st.SetAccepting(ctx, args[0], accepting); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: accepting_leads=%t\n", args[0], accepting)
			return nil
		})
	},
}

func init() {
	inventorySeedCmd.Flags().StringVar(&seedFile, "file", "", "platform YAML file (default from config)")

	inventoryCmd.AddCommand(inventoryMigrateCmd)
	inventoryCmd.AddCommand(inventorySeedCmd)
	inventoryCmd.AddCommand(inventoryShowCmd)
	inventoryCmd.AddCommand(inventoryReleaseCmd)
	inventoryCmd.AddCommand(inventorySetAcceptingCmd)
	rootCmd.AddCommand(inventoryCmd)
}

// withInventory opens the configured store for the duration of fn.
func withInventory(ctx context.Context, c *config.Config, fn func(ctx context.Context, st inventory.Store) error) error {
	if err := c.Validate("inventory"); err != nil {
		return err
	}
	st, err := openInventory(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	return fn(ctx, st)
}

func printPlatforms(out io.Writer, platforms []model.PlatformState) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tACCEPTING\tCAPACITY\tCOMMISSION\tACCEPTANCE\tPRICES")
	for _, p := range platforms {
		fmt.Fprintf(w, "%s\t%t\t%d\t%.2f\t%.2f\t%s\n",
			p.PlatformCode,
			p.AcceptingLeads,
			p.CapacityRemaining,
			p.CommissionRate,
			p.AcceptanceRate,
			formatPrices(p),
		)
	}
	return w.Flush()
}

// formatPrices lists eligible tier prices, e.g. "basic=90 premium=275".
func formatPrices(p model.PlatformState) string {
	tiers := slices.Sorted(maps.Keys(p.PriceByTier))
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		if !slices.Contains(p.TierEligibility, t) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%g", t, p.PriceByTier[t]))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
