package cmd

import (
	"fmt"

	"github.com/bnema/evdevkm/internal/config"
	"github.com/bnema/evdevkm/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	printKeyCodes bool

	rootCmd = &cobra.Command{
		Use:   "evdevkm [device...]",
		Short: "evdevkm - switch input devices between host and guest",
		Long: `evdevkm relays physical input devices to one of two virtual devices,
host or guest. Pressing the switch key moves every device to the other side
once all keys are released, so a VM can own the keyboard and mouse while
the host keeps working without them.

Devices are given as arguments or in the configuration file.`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
		RunE:              runSwitch,
	}

	// viper key -> root flag
	flagKeys = map[string]string{
		"verbose":           "verbose",
		"grab":              "grab",
		"no_symlink":        "no-symlink",
		"user":              "user",
		"hotkey":            "code",
		"per_device_target": "per-device-target",
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches /etc/evdevkm, ~/.config/evdevkm and .)")

	flags := rootCmd.Flags()
	flags.BoolP("verbose", "v", false, "log every relayed event")
	flags.BoolVarP(&printKeyCodes, "print-key-codes", "p", false, "print the known key codes and exit")
	flags.BoolP("grab", "g", false, "grab the devices on the first switch")
	flags.BoolP("no-symlink", "n", false, "do not publish aliases for the virtual devices")
	flags.StringP("user", "u", "", "owner of the guest devices, uid or user name")
	flags.StringP("code", "c", "", "switch key, name or code (default KEY_RIGHTSHIFT)")
	flags.Bool("per-device-target", false, "switch every device on its own")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig loads the configuration with the root flags layered on top
func initConfig(cmd *cobra.Command, args []string) error {
	for key, name := range flagKeys {
		if err := viper.BindPFlag(key, cmd.Root().Flags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	config.SetConfigPath(cfgFile)
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	cfg := config.Get()
	if cfg.Logging.Level != "" {
		logger.SetLevel(cfg.Logging.Level)
	}
	logger.SetVerbose(cfg.Verbose)
	return nil
}
