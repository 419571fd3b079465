package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eduseek/curator/internal/region"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List loaded region profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		regions, err := region.LoadDir(cfg.Regions.Dir)
		if err != nil {
			return err
		}

		codes := regions.Codes()
		sort.Strings(codes)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tLANGUAGE\tSCRIPT\tGRADES\tSUBJECTS")
		for _, code := range codes {
			p := regions.Get(code)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
				p.Code, p.Name, p.Language, p.Script, len(p.Grades), len(p.Subjects))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}
