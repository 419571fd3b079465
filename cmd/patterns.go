package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eduseek/curator/internal/knowledge"
)

var patternsRegion string

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Review the learned pattern knowledge for a region",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns with usage counters and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, err := knowledge.Open(cfg.Knowledge.Dir, patternsRegion)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tEXPRESSION\tCANONICAL\tSTATUS\tUSES\tRATE\tSOURCE")
		for _, p := range ks.Patterns() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\t%s\n",
				p.ID, p.Kind, p.Expression, p.CanonicalID, p.Status, p.UsageCount, p.SuccessRate(), p.Source)
		}
		return w.Flush()
	},
}

var patternsVerifyCmd = &cobra.Command{
	Use:   "verify <pattern-id>",
	Short: "Promote a pending pattern to verified",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patternTransition(args[0], func(ks *knowledge.Store) error {
			return ks.Verify(args[0])
		})
	},
}

var patternsRejectCmd = &cobra.Command{
	Use:   "reject <pattern-id>",
	Short: "Reject a pattern so it never matches again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patternTransition(args[0], func(ks *knowledge.Store) error {
			return ks.Reject(args[0])
		})
	},
}

func patternTransition(id string, apply func(*knowledge.Store) error) error {
	ks, err := knowledge.Open(cfg.Knowledge.Dir, patternsRegion)
	if err != nil {
		return err
	}
	if err := apply(ks); err != nil {
		return err
	}
	if err := ks.Save(); err != nil {
		return err
	}
	fmt.Printf("pattern %s updated\n", id)
	return nil
}

func init() {
	patternsCmd.PersistentFlags().StringVar(&patternsRegion, "region", "", "region code (required)")
	patternsCmd.MarkPersistentFlagRequired("region")
	patternsCmd.AddCommand(patternsListCmd, patternsVerifyCmd, patternsRejectCmd)
	rootCmd.AddCommand(patternsCmd)
}
