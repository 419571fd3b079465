package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduseek/curator/internal/model"
)

var (
	curateRegion  string
	curateGrade   string
	curateSubject string
	curateQuery   string
	curateMax     int
	curateTimeout time.Duration
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Run one curation query and print the ranked results",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("curate"); err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		if curateTimeout > 0 {
			var cancel func()
			ctx, cancel = context.WithTimeout(ctx, curateTimeout)
			defer cancel()
		}

		out, err := e.Curator.Run(ctx, model.Query{
			Text:    curateQuery,
			Region:  curateRegion,
			GradeID: curateGrade,
			Subject: curateSubject,
			MaxHits: curateMax,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	curateCmd.Flags().StringVar(&curateRegion, "region", "", "region code (required)")
	curateCmd.Flags().StringVar(&curateGrade, "grade", "", "target grade, any local spelling (required)")
	curateCmd.Flags().StringVar(&curateSubject, "subject", "", "target subject, any local spelling (required)")
	curateCmd.Flags().StringVarP(&curateQuery, "query", "q", "", "search query (required)")
	curateCmd.Flags().IntVar(&curateMax, "max", 0, "max candidates to evaluate (default from config)")
	curateCmd.Flags().DurationVar(&curateTimeout, "timeout", 0, "overall deadline for the run")
	curateCmd.MarkFlagRequired("region")
	curateCmd.MarkFlagRequired("grade")
	curateCmd.MarkFlagRequired("subject")
	curateCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(curateCmd)
}
