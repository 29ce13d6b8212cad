package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/spf13/cobra"
)

var (
	// Execute flags
	execDryRun      bool
	execOnline      bool
	execParallel    int
	approveHighRisk bool
	stepTimeout     time.Duration
	executedBy      string
)

func newExecuteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <schema> <table> [table...]",
		Short: "Apply the recommended scheme to one or more tables",
		Long: `Recommend and apply compression. Several tables in the same schema run
concurrently up to the configured batch concurrency. Failed critical steps
are rolled back and every outcome is recorded in the history.`,
		Args: cobra.MinimumNArgs(2),
		RunE: run(runExecute),
	}
	cmd.Flags().BoolVar(&execDryRun, "dry-run", false, "Print the planned statements without running them")
	cmd.Flags().BoolVar(&execOnline, "online", true, "Keep the table available during the move (default from config)")
	cmd.Flags().IntVar(&execParallel, "parallel", 0, "Parallel degree for DDL (default from config)")
	cmd.Flags().BoolVar(&approveHighRisk, "approve-high-risk", false, "Allow HIGH risk recommendations")
	cmd.Flags().DurationVar(&stepTimeout, "timeout", 0, "Timeout per step (default from config)")
	cmd.Flags().StringVar(&executedBy, "executed-by", os.Getenv("USER"), "Operator recorded with the execution")
	return cmd
}

func runExecute(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	opts := models.ExecutionOptions{
		DryRun:          execDryRun,
		Online:          a.cfg.Execution.Online,
		ParallelDegree:  execParallel,
		StepTimeout:     stepTimeout,
		ApproveHighRisk: approveHighRisk,
		ExecutedBy:      executedBy,
	}
	if cmd.Flags().Changed("online") {
		opts.Online = execOnline
	}

	schema, tables := args[0], args[1:]
	if len(tables) == 1 {
		record, err := a.advisor.ExecuteTable(ctx, schema, tables[0], opts)
		if record != nil {
			if derr := a.out.DisplayExecution(ctx, record); derr != nil {
				return errors.Join(err, derr)
			}
		}
		return err
	}

	recs := make([]*models.Recommendation, 0, len(tables))
	for _, table := range tables {
		rec, err := a.advisor.Recommend(ctx, schema, table)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}

	results, err := a.advisor.ExecuteBatch(ctx, recs, opts)
	for _, r := range results {
		if r.Record == nil {
			a.logger.Error("execution not started", "table", r.Recommendation.Ref().String(), "error", r.Err)
			continue
		}
		if derr := a.out.DisplayExecution(ctx, r.Record); derr != nil {
			return errors.Join(err, derr)
		}
	}
	return err
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <execution-id>",
		Short: "Show one execution from the journal",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			record, err := a.advisor.Status(ctx, args[0])
			if err != nil {
				return err
			}
			return a.out.DisplayExecution(ctx, record)
		}),
	}
}
