package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/geo"
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "Inspect the ZIP code market reference",
}

var marketsResolveCmd = &cobra.Command{
	Use:   "resolve <zip>",
	Short: "Print the resolved market profile for a ZIP code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadResolver(cfg)
		if err != nil {
			return err
		}
		m, err := r.Resolve(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	},
}

var marketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List served ZIP codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadResolver(cfg)
		if err != nil {
			return err
		}
		return printMarkets(cmd.OutOrStdout(), r)
	},
}

func init() {
	marketsCmd.AddCommand(marketsResolveCmd)
	marketsCmd.AddCommand(marketsListCmd)
	rootCmd.AddCommand(marketsCmd)
}

func loadResolver(c *config.Config) (*geo.Resolver, error) {
	ref, err := geo.LoadReference(c.Reference.MarketsPath)
	if err != nil {
		return nil, eris.Wrap(err, "load markets")
	}
	return geo.NewResolver(ref, c.Incentives)
}

func printMarkets(out io.Writer, r *geo.Resolver) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ZIP\tBOROUGH\tNEIGHBORHOOD\tUTILITY\tRATE\tIRRADIANCE\tCOST/W\tPOTENTIAL")
	for _, zip := range r.ZipCodes() {
		m, err := r.Resolve(zip)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%.0f\t%.2f\t%.0f\n",
			m.ZipCode,
			m.Borough,
			m.Neighborhood,
			m.UtilityCode,
			m.ElectricRatePerKWh,
			m.EffectiveIrradiance(),
			m.InstalledCostPerWatt(),
			m.SolarPotentialScore,
		)
	}
	return w.Flush()
}
