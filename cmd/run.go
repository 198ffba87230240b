package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/evdevkm/internal/alias"
	"github.com/bnema/evdevkm/internal/config"
	"github.com/bnema/evdevkm/internal/device"
	"github.com/bnema/evdevkm/internal/input"
	"github.com/bnema/evdevkm/internal/keycode"
	"github.com/bnema/evdevkm/internal/logger"
	"github.com/bnema/evdevkm/internal/mux"
	"github.com/bnema/evdevkm/internal/notify"
	"github.com/bnema/evdevkm/internal/switcher"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

func runSwitch(cmd *cobra.Command, args []string) error {
	if printKeyCodes {
		out := cmd.OutOrStdout()
		for _, k := range keycode.All() {
			fmt.Fprintf(out, "%d: %s\n", k.Code, k.Name)
		}
		return nil
	}

	cfg := config.Get()
	opts, err := deviceOptions(cfg)
	if err != nil {
		return err
	}

	paths := devicePaths(cfg, args)
	if len(paths) == 0 {
		logger.Warn("No devices given, nothing to switch")
		return nil
	}

	logger.Info("Switch key", "key", keycode.Name(opts.Hotkey), "devices", len(paths))

	if err := validateAll(paths); err != nil {
		return err
	}

	registry := device.NewRegistry()
	defer registry.Shutdown()

	for _, path := range paths {
		if _, err := registry.Register(path, opts); err != nil {
			logger.Error("Failed to register device", "device", path, "error", err)
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devices := make([]mux.Device, 0, registry.Len())
	for _, d := range registry.Devices() {
		devices = append(devices, d)
	}

	loopOpts := []mux.Option{
		mux.WithFlipHook(func(path string, from, to switcher.Target) {
			notify.Target(to)
		}),
	}
	if cfg.PerDeviceTarget {
		loopOpts = append(loopOpts, mux.WithPerDeviceTarget())
	}

	every, err := notify.Ready(registry.Len())
	if err != nil {
		logger.Warn("Failed to notify systemd", "error", err)
	}
	if every > 0 {
		loopOpts = append(loopOpts, mux.WithHeartbeat(every, notify.Alive))
	}
	defer notify.Stopping()

	loop := mux.New(devices, loopOpts...)

	return loop.Run(ctx)
}

// deviceOptions turns the configuration into registration options
func deviceOptions(cfg *config.Config) (device.Options, error) {
	opts := device.DefaultOptions()

	if cfg.Hotkey != "" {
		code, err := keycode.Parse(cfg.Hotkey)
		if err != nil {
			return opts, fmt.Errorf("invalid switch key: %w", err)
		}
		opts.Hotkey = code
	}

	owner, err := alias.LookupUser(cfg.User)
	if err != nil {
		return opts, err
	}
	opts.GuestOwner = owner

	opts.Grab = cfg.Grab
	opts.Verbose = cfg.Verbose
	opts.NoSymlink = cfg.NoSymlink
	if cfg.SymlinkDir != "" {
		opts.SymlinkDir = cfg.SymlinkDir
	}
	return opts, nil
}

// devicePaths returns the arguments, or the configured devices when there
// are none, without entries that resolve to the same node twice
func devicePaths(cfg *config.Config, args []string) []string {
	candidates := cfg.Devices
	if len(args) > 0 {
		candidates = args
	}

	seen := make(map[string]string, len(candidates))
	paths := make([]string, 0, len(candidates))
	for _, path := range candidates {
		node, err := input.ResolveEventPath(path)
		if err != nil {
			// Left for validation to report
			node = path
		}
		if first, dup := seen[node]; dup {
			logger.Warn("Skipping duplicate device", "device", path, "same_as", first)
			continue
		}
		seen[node] = path
		paths = append(paths, path)
	}
	return paths
}

// validateAll reports every invalid path before anything is opened
func validateAll(paths []string) error {
	var result *multierror.Error
	for _, path := range paths {
		if err := device.Validate(path); err != nil {
			logger.Error("Invalid device", "device", path, "error", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
