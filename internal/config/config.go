// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	appName    = "evdevkm"
	systemDir  = "/etc/evdevkm"
	configFile = appName + ".toml"
)

// Config represents the application configuration
type Config struct {
	// Input devices to switch, by path
	Devices []string `mapstructure:"devices"`

	// Key name or code that flips the target
	Hotkey string `mapstructure:"hotkey"`

	// Grab the devices on the first flip
	Grab bool `mapstructure:"grab"`

	NoSymlink  bool   `mapstructure:"no_symlink"`
	SymlinkDir string `mapstructure:"symlink_dir"`

	// Owner of the guest device nodes, a uid or a user name
	User string `mapstructure:"user"`

	Verbose         bool `mapstructure:"verbose"`
	PerDeviceTarget bool `mapstructure:"per_device_target"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Devices:    []string{},
		Hotkey:     "KEY_RIGHTSHIFT",
		SymlinkDir: "/dev/input/by-path",
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName(appName)
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		// Add config paths in order of precedence
		viper.AddConfigPath(systemDir)
		viper.AddConfigPath(userConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetDefault("devices", DefaultConfig.Devices)
	viper.SetDefault("hotkey", DefaultConfig.Hotkey)
	viper.SetDefault("grab", DefaultConfig.Grab)
	viper.SetDefault("no_symlink", DefaultConfig.NoSymlink)
	viper.SetDefault("symlink_dir", DefaultConfig.SymlinkDir)
	viper.SetDefault("user", DefaultConfig.User)
	viper.SetDefault("verbose", DefaultConfig.Verbose)
	viper.SetDefault("per_device_target", DefaultConfig.PerDeviceTarget)
	viper.SetDefault("logging.level", DefaultConfig.Logging.Level)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	return Load()
}

// Load unmarshals the current viper state, including bound flags
func Load() error {
	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	cfg = c
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save writes the current configuration to GetConfigPath
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.HasPrefix(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}

	// Root and sudo runs manage devices system-wide
	if os.Getuid() == 0 || os.Getenv("SUDO_USER") != "" {
		return filepath.Join(systemDir, configFile)
	}

	return filepath.Join(userConfigDir(), configFile)
}

// userConfigDir returns the evdevkm directory under the invoking user's
// XDG config home. Under sudo that is the real user's, not root's.
func userConfigDir() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil && u.HomeDir != "" {
			return filepath.Join(u.HomeDir, ".config", appName)
		}
	}
	return filepath.Join(xdg.ConfigHome, appName)
}
