package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduseek/curator/internal/usage"
)

var (
	usagePeriod string
	usageReset  bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Report per-provider call counters and accrued cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := usage.NewSQLite(cfg.Usage.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		period := usagePeriod
		if period == "" {
			period = usage.Period(time.Now().UTC())
		}

		if usageReset {
			if err := store.Reset(cmd.Context(), period); err != nil {
				return err
			}
			fmt.Printf("usage counters reset for %s\n", period)
			return nil
		}

		counters, err := store.List(cmd.Context(), period)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tPERIOD\tCALLS\tFREE CEILING\tFAILURES\tCOST USD")
		for _, u := range counters {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.4f\n",
				u.Provider, u.Period, u.CallsMade, u.FreeCeiling, u.Failures, u.CostUSD())
		}
		return w.Flush()
	},
}

func init() {
	usageCmd.Flags().StringVar(&usagePeriod, "period", "", "billing period YYYY-MM (default current)")
	usageCmd.Flags().BoolVar(&usageReset, "reset", false, "administratively reset counters for the period")
	rootCmd.AddCommand(usageCmd)
}
