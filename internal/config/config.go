// Package config loads tool settings from defaults, an optional YAML file,
// NETCTL_AUTO_* environment variables and command-line flags, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"x-netctl/internal/ifset"
	"x-netctl/internal/profile"
	"x-netctl/internal/supplicant"
	"x-netctl/internal/switcher"
)

const (
	// DefaultFile is read when present and no file is given explicitly
	DefaultFile = "/etc/netctl-auto.yaml"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "NETCTL_AUTO"

	BackendCtrl = "ctrl"
	BackendDBus = "dbus"

	BusSystem  = "system"
	BusSession = "session"
)

// Config is the resolved tool configuration
type Config struct {
	Backend      string        `mapstructure:"backend"`
	CtrlDir      string        `mapstructure:"ctrl_dir"`
	ProfileDir   string        `mapstructure:"profile_dir"`
	Interfaces   []string      `mapstructure:"interfaces"`
	UnitPattern  string        `mapstructure:"unit_pattern"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	LogLevel     string        `mapstructure:"log_level"`
	Bus          string        `mapstructure:"bus"`
}

// flagKeys maps flag names to config keys
var flagKeys = map[string]string{
	"backend":       "backend",
	"ctrl-dir":      "ctrl_dir",
	"profile-dir":   "profile_dir",
	"interface":     "interfaces",
	"unit-pattern":  "unit_pattern",
	"poll-interval": "poll_interval",
	"log-level":     "log_level",
	"bus":           "bus",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendCtrl)
	v.SetDefault("ctrl_dir", supplicant.DefaultCtrlDir)
	v.SetDefault("profile_dir", profile.DefaultDir)
	v.SetDefault("interfaces", []string{})
	v.SetDefault("unit_pattern", ifset.DefaultUnitPattern)
	v.SetDefault("poll_interval", switcher.DefaultPollInterval)
	v.SetDefault("log_level", "warn")
	v.SetDefault("bus", BusSystem)
}

// Load resolves the configuration. path may be empty; flags may be nil.
// Only flags the user set override file and environment values.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := newViper()

	if err := readFile(v, path); err != nil {
		return Config{}, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func readFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Validate checks enumerated values
func (c Config) Validate() error {
	switch c.Backend {
	case BackendCtrl, BackendDBus:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendCtrl, BackendDBus)
	}
	switch c.Bus {
	case BusSystem, BusSession:
	default:
		return fmt.Errorf("unknown bus %q (want %s or %s)", c.Bus, BusSystem, BusSession)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}
