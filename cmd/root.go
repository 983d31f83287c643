package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trapwatch/trapwatch/cmd/configcmd"
	"github.com/trapwatch/trapwatch/cmd/notify"
	"github.com/trapwatch/trapwatch/cmd/serve"
	"github.com/trapwatch/trapwatch/cmd/version"
	"github.com/trapwatch/trapwatch/cmd/visits"
	"github.com/trapwatch/trapwatch/internal/buildinfo"
	"github.com/trapwatch/trapwatch/internal/conf"
	"github.com/trapwatch/trapwatch/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "trapwatch",
		Short:         "Trail camera visit service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ./, ~/.config/trapwatch, /etc/trapwatch)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	versionCmd := version.Command(info)
	configCmd := configcmd.Command()

	rootCmd.AddCommand(
		serve.Command(settings, info),
		visits.Command(settings),
		notify.Command(settings),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// these do not need a loaded configuration
		for c := cmd; c != nil; c = c.Parent() {
			switch c {
			case versionCmd, configCmd:
				return nil
			}
			if c.Name() == "help" || c.Name() == "completion" {
				return nil
			}
		}
		return initialize(settings, configFile, debug)
	}

	return rootCmd
}

// initialize loads the configuration into settings and sets up the global
// logger. It runs before every subcommand that needs settings.
func initialize(settings *conf.Settings, configFile string, debug bool) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	*settings = *loaded

	if debug {
		settings.Logging.DefaultLevel = "debug"
	}
	if settings.Logging.Timezone == "" {
		settings.Logging.Timezone = settings.Main.Timezone
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if file := settings.ConfigFile(); file != "" {
		central.Module("main").Debug("configuration loaded", logger.String("config_file", file))
	}
	return nil
}
