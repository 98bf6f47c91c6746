package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigListCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive first-time setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			ask := func(prompt, def string) string {
				fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]: ", prompt, def)
				v, _ := reader.ReadString('\n')
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
				return def
			}

			driver := ask("Database driver (sqlite/postgres)", "sqlite")
			viper.Set("db_driver", driver)
			if driver == "sqlite" {
				viper.Set("db_path", ask("SQLite path", "./skuprice.db"))
			} else {
				viper.Set("db_host", ask("Database host", "localhost"))
				viper.Set("db_name", ask("Database name", "skuprice"))
				viper.Set("db_user", ask("Database user", "skuprice"))
			}
			viper.Set("sku_source", ask("SKU source (azure/file)", "azure"))
			viper.Set("azure_subscription_id", ask("Azure subscription ID", ""))
			viper.Set("output", ask("Default output format (table/json/yaml)", "table"))

			path, err := writeConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ToLower(args[0])
			viper.Set(key, args[1])
			if _, err := writeConfig(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, maskValue(key, args[1]))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ToLower(args[0])
			if v, ok := lookup(strings.ToUpper(key)); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, maskValue(key, v))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: (not set)\n", key)
			}
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := viper.AllSettings()
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, maskValue(k, fmt.Sprint(settings[k])))
			}
			return nil
		},
	}
}

func maskValue(key, value string) string {
	if value == "" {
		return value
	}
	if strings.Contains(key, "password") || strings.Contains(key, "secret") {
		return "********"
	}
	return value
}

func writeConfig() (string, error) {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
