package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/skuprice/internal/api/handlers"
	"github.com/pratik-mahalle/skuprice/internal/config"
	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	"github.com/pratik-mahalle/skuprice/internal/repository/postgres"
	"github.com/pratik-mahalle/skuprice/migrations"
)

func newSchemasCmd() *cobra.Command {
	var columns bool

	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Describe the registered resource tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas := handlers.SchemaDTOs(sku.DefaultRegistry())

			if getOutputFormat() != "table" {
				return printOutput(cmd.OutOrStdout(), schemas)
			}

			if columns {
				table := NewTable(cmd.OutOrStdout(), "TABLE", "COLUMN", "TYPE", "CAPABILITY")
				for _, s := range schemas {
					for _, c := range s.Columns {
						table.AddRow(s.Table, c.Name, c.Type, c.Capability)
					}
				}
				table.Render()
				return nil
			}

			table := NewTable(cmd.OutOrStdout(), "RESOURCE TYPE", "TABLE", "COLUMNS", "PER LOCATION")
			for _, s := range schemas {
				table.AddRow(s.ResourceType, s.Table, strconv.Itoa(len(s.Columns)), strconv.FormatBool(s.FanOutLocations))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&columns, "columns", false, "list every column")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applied, err := Migrate(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
			}
			return nil
		},
	}
}

// Migrate applies the embedded migrations to the configured database
func Migrate(ctx context.Context, cfg config.DatabaseConfig) ([]string, error) {
	db, err := postgres.New(cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return postgres.RunMigrations(ctx, db, migrations.FS())
}
