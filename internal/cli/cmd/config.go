package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/clipkeep/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ClipKeep configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfg.SystemPaths.ConfigFile
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("configuration already exists at %s\nUse --force to overwrite", configPath)
			}

			fresh := config.DefaultConfig(cfg.SystemPaths)
			if err := fresh.Save(configPath); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			GetZapLogger().Info("Configuration initialized", zap.String("config_path", configPath))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration initialized at: %s\n", configPath)
			fmt.Fprintf(out, "✓ Database path: %s\n", fresh.Storage.DBPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(cfg)
			default:
				return fmt.Errorf("unsupported format %q: want yaml or json", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cfg.SystemPaths
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", p.ConfigFile)
			fmt.Fprintf(out, "Data dir:    %s\n", p.DataDir)
			fmt.Fprintf(out, "Database:    %s\n", cfg.Storage.DBPath)
			fmt.Fprintf(out, "Logs:        %s\n", p.LogDir)
			fmt.Fprintf(out, "PID file:    %s\n", p.PIDFile())
			return nil
		},
	}
}
