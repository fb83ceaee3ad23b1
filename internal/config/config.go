package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Minimum accepted settings values.
const (
	MinDataLimit           = 1024 * 1024 // 1 MiB
	MinCheckInterval       = 1           // seconds
	MinPersistenceInterval = 10          // seconds
)

// Default settings values.
const (
	DefaultDataLimit           = 1024 * 1024 * 1024 // 1 GiB
	DefaultCheckInterval       = 60                 // seconds
	DefaultPersistenceInterval = 300                // seconds
)

const (
	appDirName       = "dataguardian"
	configFileName   = "config"
	snapshotFileName = "usage.dat"
	envPrefix        = "DATAGUARDIAN"
)

// Settings holds the daemon configuration. The core treats it as
// immutable for the process lifetime.
type Settings struct {
	DataLimit                  uint64 `mapstructure:"data_limit"`                   // Bytes of disk I/O before alerting
	CheckIntervalSeconds       uint64 `mapstructure:"check_interval_seconds"`       // How often to sample process I/O
	PersistenceIntervalSeconds uint64 `mapstructure:"persistence_interval_seconds"` // How often to flush the ledger to disk
	DataDir                    string `mapstructure:"data_dir"`                     // Directory holding the usage snapshot
	LogLevel                   string `mapstructure:"log_level"`                    // zerolog level name
}

// Load resolves settings from defaults, then the config file (the
// given path, or the per-user default location), then environment
// variables prefixed DATAGUARDIAN_, highest precedence last. The
// result is validated; invalid settings are fatal at startup.
func Load(configFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("data_limit", DefaultDataLimit)
	v.SetDefault("check_interval_seconds", DefaultCheckInterval)
	v.SetDefault("persistence_interval_seconds", DefaultPersistenceInterval)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("log_level", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultDataDir())
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; defaults apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks the documented minimums.
func (s *Settings) Validate() error {
	if s.DataLimit < MinDataLimit {
		return fmt.Errorf("invalid data limit: %d bytes (min: %d)", s.DataLimit, MinDataLimit)
	}
	if s.CheckIntervalSeconds < MinCheckInterval {
		return fmt.Errorf("invalid check interval: %d seconds (min: %d)",
			s.CheckIntervalSeconds, MinCheckInterval)
	}
	if s.PersistenceIntervalSeconds < MinPersistenceInterval {
		return fmt.Errorf("invalid persistence interval: %d seconds (min: %d)",
			s.PersistenceIntervalSeconds, MinPersistenceInterval)
	}
	if s.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	return nil
}

// SnapshotPath returns the location of the persisted usage snapshot.
func (s *Settings) SnapshotPath() string {
	return filepath.Join(s.DataDir, snapshotFileName)
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		// Last resort; the daemon validates writability at startup.
		return filepath.Join(".", appDirName)
	}
	return filepath.Join(base, appDirName)
}
