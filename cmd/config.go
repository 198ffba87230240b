package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/bnema/evdevkm/internal/config"
	"github.com/bnema/evdevkm/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage evdevkm configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, ui.FormatAppHeader("CONFIG", config.GetConfigPath()))
		fmt.Fprintf(out, "  Switch Key:        %s\n", cfg.Hotkey)
		fmt.Fprintf(out, "  Grab:              %v\n", cfg.Grab)
		fmt.Fprintf(out, "  Per-device Target: %v\n", cfg.PerDeviceTarget)
		if cfg.NoSymlink {
			fmt.Fprintf(out, "  Aliases:           disabled\n")
		} else {
			fmt.Fprintf(out, "  Aliases:           %s\n", cfg.SymlinkDir)
		}
		if cfg.User != "" {
			fmt.Fprintf(out, "  Guest Owner:       %s\n", cfg.User)
		}
		if cfg.Logging.Level != "" {
			fmt.Fprintf(out, "  Log Level:         %s\n", strings.ToUpper(cfg.Logging.Level))
		}

		if len(cfg.Devices) == 0 {
			fmt.Fprintln(out, "  Devices:           (none)")
			return nil
		}
		fmt.Fprintln(out, "  Devices:")
		for _, d := range cfg.Devices {
			fmt.Fprintf(out, "    - %s\n", d)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configPath := config.GetConfigPath()

		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				fmt.Fprintln(out, ui.FormatWarning("Configuration file already exists at: "+configPath))
				fmt.Fprintln(out, "Use --force to overwrite")
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}

		fmt.Fprintln(out, ui.FormatResult(true, "Configuration initialized at: "+configPath))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing configuration file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
