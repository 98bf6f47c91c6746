package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/skuprice/internal/app"
	"github.com/pratik-mahalle/skuprice/internal/domain/run"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and admin API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, func(a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the harvest pipeline once and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, func(a *app.App) error {
				report, err := a.Pipeline.Run(ctx, run.TriggerManual)
				if report == nil {
					return err
				}
				if perr := printReport(cmd, report); perr != nil {
					return perr
				}
				if err != nil {
					return err
				}
				if report.Status == run.StatusFailed {
					return fmt.Errorf("run %s failed", report.ID)
				}
				return nil
			})
		},
	}
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded pipeline runs",
	}
	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsGetCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				reports, total, err := a.Runs.List(cmd.Context(), run.Filter{Status: run.Status(status), Limit: limit})
				if err != nil {
					return err
				}

				if getOutputFormat() != "table" {
					return printOutput(cmd.OutOrStdout(), reports)
				}

				table := NewTable(cmd.OutOrStdout(), "ID", "TRIGGER", "STATUS", "RUN TIMESTAMP", "STAGES")
				for _, r := range reports {
					table.AddRow(
						r.ID.String(),
						string(r.Trigger),
						formatStatus(string(r.Status)),
						formatTime(r.RunTimestamp),
						strconv.Itoa(len(r.Stages)),
					)
				}
				table.Render()
				fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d runs\n", len(reports), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	return cmd
}

func newRunsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one run with its stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Runs.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printReport(cmd, report)
			})
		},
	}
}

func printReport(cmd *cobra.Command, report *run.Report) error {
	if getOutputFormat() != "table" {
		return printOutput(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", report.ID)
	fmt.Fprintf(out, "Trigger:   %s\n", report.Trigger)
	fmt.Fprintf(out, "Status:    %s\n", formatStatus(string(report.Status)))
	fmt.Fprintf(out, "Timestamp: %s\n\n", formatTime(report.RunTimestamp))

	table := NewTable(out, "STAGE", "STATUS", "ROWS", "ATTEMPTS", "DURATION", "ERROR")
	for _, s := range report.Stages {
		attempts := "-"
		if s.Attempts > 0 {
			attempts = strconv.Itoa(s.Attempts)
		}
		errText := s.ErrorCode
		if s.Error != "" {
			errText = truncate(s.ErrorCode+": "+s.Error, 60)
		}
		table.AddRow(
			s.Stage,
			formatStatus(string(s.Status)),
			strconv.Itoa(s.Rows),
			attempts,
			strconv.FormatInt(s.DurationMs, 10)+"ms",
			errText,
		)
	}
	table.Render()
	return nil
}
