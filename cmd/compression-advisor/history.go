package main

import (
	"context"
	"fmt"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/history"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/spf13/cobra"
)

var (
	// History flags
	historyLimit int
	historyType  string
	historyDays  int
	minSavings   float64
	schemeName   string
	recsLimit    int
	recsDays     int
	statsDays    int
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <schema> <table>",
		Short: "View recommendations and executions for one table",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			opts := history.TableOptions{Limit: historyLimit}
			switch historyType {
			case "":
			case "recommendation":
				opts.Type = models.RecordRecommendation
			case "execution":
				opts.Type = models.RecordExecution
			default:
				return usagef("type must be recommendation or execution")
			}
			if historyDays > 0 {
				opts.Since = time.Now().AddDate(0, 0, -historyDays)
			}

			entries, err := a.advisor.TableHistory(ctx, args[0], args[1], opts)
			if err != nil {
				return err
			}
			return a.out.DisplayHistory(ctx, entries)
		}),
	}
	cmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of entries to show")
	cmd.Flags().StringVar(&historyType, "type", "", "Entry type: recommendation, execution")
	cmd.Flags().IntVar(&historyDays, "days", 0, "Only entries from the last N days")
	return cmd
}

func newRecommendationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommendations",
		Short: "List recorded recommendations",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			f := history.RecommendationFilter{MinSavingsPercent: minSavings, Limit: recsLimit}
			if schemeName != "" {
				scheme, err := models.ParseScheme(schemeName)
				if err != nil {
					return usagef("%v", err)
				}
				f.Scheme = scheme
			}
			if recsDays > 0 {
				f.Since = time.Now().AddDate(0, 0, -recsDays)
			}

			recs, err := a.advisor.ListRecommendations(ctx, f)
			if err != nil {
				return err
			}
			return a.out.DisplayRecommendations(ctx, recs)
		}),
	}
	cmd.Flags().StringVar(&schemeName, "scheme", "", "Only this recommended scheme")
	cmd.Flags().Float64Var(&minSavings, "min-savings", 0, "Minimum expected savings percent")
	cmd.Flags().IntVar(&recsLimit, "limit", 20, "Number of recommendations to show")
	cmd.Flags().IntVar(&recsDays, "days", 0, "Only recommendations from the last N days")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize compression activity",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			summary, err := a.advisor.Statistics(ctx, statsDays)
			if err != nil {
				return err
			}
			return a.out.DisplaySummary(ctx, summary)
		}),
	}
	cmd.Flags().IntVar(&statsDays, "days", 30, "Window in days")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete history entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			removed, err := a.advisor.Purge(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history entries older than %d days\n", removed, a.cfg.RetentionDays)
			return nil
		}),
	}
}
