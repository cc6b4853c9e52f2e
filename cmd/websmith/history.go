package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pcak20/websmith-frontend-v2-sub001/perflog"
)

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var (
		since time.Duration
		limit int
		prune time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived request performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.Performance.DBPath == "" {
				return errors.New("performance.db_path is not configured")
			}

			pl, err := perflog.Open(cfg.Performance.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = pl.Close() }()

			ctx := context.Background()
			out := cmd.OutOrStdout()

			if prune > 0 {
				n, err := pl.Prune(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d entries older than %v.\n", n, prune)
			}

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			s, err := pl.Summary(ctx, from)
			if err != nil {
				return err
			}
			if s.TotalRequests == 0 {
				fmt.Fprintln(out, "No requests recorded.")
				return nil
			}
			fmt.Fprintf(out, "requests: %d  success: %.1f%%  avg: %v  min: %v  max: %v\n\n",
				s.TotalRequests, s.SuccessRate*100, s.AverageResponseTime, s.MinResponseTime, s.MaxResponseTime)

			entries, err := pl.Recent(ctx, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tMETHOD\tURL\tSTATUS\tDURATION\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%s\n",
					e.Timestamp.Format("2006-01-02T15:04:05"), e.Method, e.URL, e.Status, e.Duration, e.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "summarize entries newer than this (0 for all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of recent entries to list")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete entries older than this before reporting")
	return cmd
}
