package main

import (
	"fmt"

	"github.com/andrej220/netsurvey/pkg/config"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "netsurvey.yaml"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the netsurvey configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [FILE]",
		Short: "Write the default configuration as YAML",
		Long: `Writes the built-in defaults to FILE (netsurvey.yaml when omitted).
Credentials can then be edited in the file or supplied through
DEVICE_USERNAME and DEVICE_PASSWORD.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Save(path, config.Default()); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	})
	return cmd
}
