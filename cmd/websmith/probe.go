package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	websmith "github.com/pcak20/websmith-frontend-v2-sub001"
)

func newProbeCmd(flags *globalFlags) *cobra.Command {
	var (
		repeat    int
		showStats bool
	)

	cmd := &cobra.Command{
		Use:   "probe PATH...",
		Short: "Fetch API paths through the client in batches and report the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if repeat < 1 {
				repeat = 1
			}
			reqs := make([]*websmith.Request, 0, len(args)*repeat)
			for i := 0; i < repeat; i++ {
				for _, p := range args {
					reqs = append(reqs, &websmith.Request{Path: p})
				}
			}

			result := a.client.FetchAll(ctx, reqs, func(p websmith.BatchProgress) {
				fmt.Fprintf(os.Stderr, "\r%d/%d (%.0f%%)", p.Completed, p.Total, p.Progress*100)
			})
			fmt.Fprintln(os.Stderr)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tPATH\tSTATUS\tSOURCE\tBYTES\tERROR")
			for _, r := range append(result.Results, result.Errors...) {
				status, source, size, errMsg := "-", "network", "-", ""
				if r.Success {
					status = fmt.Sprintf("%d", r.Result.StatusCode)
					size = fmt.Sprintf("%d", len(r.Result.Body))
					switch {
					case r.Result.Cached:
						source = "cache"
					case r.Result.Shared:
						source = "shared"
					}
				} else if apiErr := websmith.AsAPIError(r.Err); apiErr != nil {
					if apiErr.Status > 0 {
						status = fmt.Sprintf("%d", apiErr.Status)
					}
					errMsg = apiErr.Message
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Index, r.Item.Path, status, source, size, errMsg)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if showStats {
				printStats(cmd, a.client)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d of %d requests failed", len(result.Errors), len(reqs))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "request every path this many times")
	cmd.Flags().BoolVar(&showStats, "stats", true, "print performance and cache statistics")
	return cmd
}

func printStats(cmd *cobra.Command, client *websmith.Client) {
	out := cmd.OutOrStdout()
	stats := client.PerformanceMonitor().Stats(time.Hour)
	fmt.Fprintf(out, "\nrequests: %d  success: %.1f%%  avg: %v  min: %v  max: %v\n",
		stats.TotalRequests, stats.SuccessRate*100, stats.AverageResponseTime, stats.MinResponseTime, stats.MaxResponseTime)
	if cache := client.Cache(); cache != nil {
		cs := cache.Stats()
		fmt.Fprintf(out, "cache: size %d  hits %d  misses %d  hit rate %.1f%%\n", cs.Size, cs.Hits, cs.Misses, cs.HitRate*100)
	}
}
