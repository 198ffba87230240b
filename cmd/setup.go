package cmd

import (
	"fmt"

	"github.com/bnema/evdevkm/internal/config"
	"github.com/bnema/evdevkm/internal/input"
	"github.com/bnema/evdevkm/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Choose devices and switch key interactively",
	Long: `Interactively select the devices to switch, the switch key and the grab
behaviour, and save them to the configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := input.List(input.DefaultPattern)
		if err != nil {
			return err
		}

		cfg := config.Get()
		selection, err := input.SelectDevices(devices, input.Selection{
			Devices: cfg.Devices,
			Hotkey:  cfg.Hotkey,
			Grab:    cfg.Grab,
		})
		if err != nil {
			return fmt.Errorf("device setup failed: %w", err)
		}

		viper.Set("devices", selection.Devices)
		viper.Set("hotkey", selection.Hotkey)
		viper.Set("grab", selection.Grab)
		if err := config.Save(); err != nil {
			return err
		}
		if err := config.Load(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true,
			fmt.Sprintf("Saved %d device(s) to %s", len(selection.Devices), config.GetConfigPath())))
		return nil
	},
}
