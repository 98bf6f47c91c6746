package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/skuprice/internal/app"
	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
)

func newPricingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Query derived VM pricing",
	}
	cmd.AddCommand(newPricingListCmd())
	return cmd
}

func newPricingListCmd() *cobra.Command {
	var filter pricing.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vm_pricing rows ordered by location and name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				rows, total, err := a.Pricing.List(cmd.Context(), filter)
				if err != nil {
					return err
				}

				if getOutputFormat() != "table" {
					return printOutput(cmd.OutOrStdout(), rows)
				}

				table := NewTable(cmd.OutOrStdout(), "NAME", "LOCATION", "VCPUS", "MEMORY", "LINUX", "LINUX SPOT", "WINDOWS", "WINDOWS SPOT")
				for i := range rows {
					addPricingRow(table, &rows[i])
				}
				table.Render()
				fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d rows\n", len(rows), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Name, "name", "", "filter by VM size name")
	cmd.Flags().StringVar(&filter.Location, "location", "", "filter by region")
	cmd.Flags().IntVar(&filter.Limit, "limit", 100, "maximum number of rows (0 for all)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query recorded pricing snapshots",
	}
	cmd.AddCommand(newHistoryListCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var filter pricing.HistoryFilter
	var since, until string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vm_pricing_history rows, newest run first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filter.Since, err = parseTimeFlag("since", since); err != nil {
				return err
			}
			if filter.Until, err = parseTimeFlag("until", until); err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app.App) error {
				entries, total, err := a.History.List(cmd.Context(), filter)
				if err != nil {
					return err
				}

				if getOutputFormat() != "table" {
					return printOutput(cmd.OutOrStdout(), entries)
				}

				table := NewTable(cmd.OutOrStdout(), "RUN TIMESTAMP", "NAME", "LOCATION", "VCPUS", "MEMORY", "LINUX", "LINUX SPOT", "WINDOWS", "WINDOWS SPOT")
				for i := range entries {
					e := &entries[i]
					table.AddRow(append([]string{formatTime(e.RunTimestamp)}, pricingCells(&e.Row)...)...)
				}
				table.Render()
				fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d rows\n", len(entries), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Name, "name", "", "filter by VM size name")
	cmd.Flags().StringVar(&filter.Location, "location", "", "filter by region")
	cmd.Flags().StringVar(&since, "since", "", "only runs at or after this RFC3339 time")
	cmd.Flags().StringVar(&until, "until", "", "only runs at or before this RFC3339 time")
	cmd.Flags().IntVar(&filter.Limit, "limit", 100, "maximum number of rows (0 for all)")
	return cmd
}

func addPricingRow(table *Table, r *pricing.Row) {
	table.AddRow(pricingCells(r)...)
}

func pricingCells(r *pricing.Row) []string {
	vcpus := "-"
	if r.VCPUs != nil {
		vcpus = strconv.FormatInt(*r.VCPUs, 10)
	}
	return []string{
		r.Name,
		r.Location,
		vcpus,
		formatDecimal(r.InstanceMemory),
		formatDecimal(r.LinuxOnDemand),
		formatDecimal(r.LinuxSpot),
		formatDecimal(r.WindowsOnDemand),
		formatDecimal(r.WindowsSpot),
	}
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	t = t.UTC()
	return &t, nil
}
