package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"x-netctl/internal/config"
	"x-netctl/internal/ifset"
	"x-netctl/internal/logging"
	"x-netctl/internal/profile"
	"x-netctl/internal/supplicant"
	"x-netctl/internal/switcher"
)

type cliOptions struct {
	configPath   string
	backend      string
	ctrlDir      string
	profileDir   string
	interfaces   []string
	unitPattern  string
	pollInterval time.Duration
	logLevel     string
	debug        bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		logger: zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           "netctl-auto",
		Short:         "Switch between wireless profiles managed by wpa_supplicant",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if opts.debug {
				cfg.LogLevel = "debug"
			}
			logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Development: opts.debug})
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultFile+" when present)")
	flags.StringVar(&opts.backend, "backend", config.BackendCtrl, "supplicant transport: ctrl or dbus")
	flags.StringVar(&opts.ctrlDir, "ctrl-dir", supplicant.DefaultCtrlDir, "wpa_supplicant control socket directory")
	flags.StringVar(&opts.profileDir, "profile-dir", profile.DefaultDir, "netctl profile directory")
	flags.StringArrayVar(&opts.interfaces, "interface", nil, "interface to operate on (repeatable, default: running "+ifset.DefaultUnitPattern+" units)")
	flags.StringVar(&opts.unitPattern, "unit-pattern", ifset.DefaultUnitPattern, "systemd unit pattern naming the interface set")
	flags.DurationVar(&opts.pollInterval, "poll-interval", switcher.DefaultPollInterval, "association state poll interval")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newListCmd(&opts),
		newSwitchToCmd(&opts),
		newIsActiveCmd(&opts),
		newIsEnabledCmd(&opts),
		newEnableCmd(&opts),
		newDisableCmd(&opts),
		newEnableAllCmd(&opts),
		newDisableAllCmd(&opts),
		newServeCmd(&opts),
	)

	return root
}
