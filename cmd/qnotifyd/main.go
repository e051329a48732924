// Package main is the entry point for the qnotifyd notification agent.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/qnotify/internal/config"
)

const (
	appID   = "io.github.jmylchreest.qnotifyd"
	appName = "qnotifyd"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const (
	rendererGTK = "gtk"
	rendererLog = "log"
)

var opts struct {
	verbose    bool
	configPath string
	layout     string
	monitor    bool
	renderer   string
	initConfig bool
}

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Desktop notification agent",
	Long: `qnotifyd receives freedesktop notifications over D-Bus and shows them
one at a time, in arrival order.

By default it owns org.freedesktop.Notifications. With --monitor it
eavesdrops on Notify calls addressed to another notification server.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()

		if opts.renderer != rendererGTK && opts.renderer != rendererLog {
			return fmt.Errorf("invalid renderer %q, must be %q or %q", opts.renderer, rendererGTK, rendererLog)
		}

		configPath := opts.configPath
		if configPath == "" {
			configPath = config.DaemonConfigPath()
		}
		if opts.initConfig {
			if err := config.WriteDefaultDaemonConfig(configPath); err != nil {
				return err
			}
			fmt.Println(configPath)
			return nil
		}
		cfg, err := config.LoadDaemonConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if opts.monitor {
			cfg.Transport.Mode = string(config.TransportMonitor)
		}

		logger.Info("starting qnotifyd",
			"version", version,
			"mode", cfg.Mode(),
			"renderer", opts.renderer,
			"config", configPath,
		)

		if opts.renderer == rendererLog {
			return runHeadless(cfg, configPath, logger)
		}
		return runGTK(cfg, configPath, logger)
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.Flags().StringVar(&opts.configPath, "config", "",
		"Path to config file (default: ~/.config/qnotify/qnotifyd.toml)")
	rootCmd.Flags().StringVar(&opts.layout, "layout", "",
		"Display template: embedded name or path to an .xml file")
	rootCmd.Flags().BoolVar(&opts.monitor, "monitor", false,
		"Eavesdrop on another notification server instead of owning the bus name")
	rootCmd.Flags().StringVar(&opts.renderer, "renderer", rendererGTK,
		"Display backend: gtk or log")
	rootCmd.Flags().BoolVar(&opts.initConfig, "init-config", false,
		"Write the default config file and exit")
}

// setupLogger configures the global slog logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qnotifyd:", err)
		os.Exit(1)
	}
}
