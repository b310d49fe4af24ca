package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/WindowRecorder/internal/config"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	configMgr *config.Manager
	rootCmd   = &cobra.Command{
		Use:   "windowrecorder",
		Short: "WindowRecorder - Record a single X11 window to a video file",
		Long: `WindowRecorder captures the on-screen rectangle of one window at a fixed
frame rate and encodes it into an MP4 file with ffmpeg.

Features:
  • Find windows by title fragment or by clicking on them
  • Record for a fixed duration, while a command runs, or until Ctrl+C
  • The video file is always finalized, even when interrupted
  • Optional text overlay with frame counter and elapsed time
  • REST and WebSocket control API for test harnesses
  • Persistent configuration`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/windowrecorder/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "human readable log output")

	// Bind flags to viper
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log_level",
		"log-pretty": "log_pretty",
	})
}

// bindFlags binds flags to config keys so a flag given on the command line
// overrides the config file and environment
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag --%s to %s: %v", name, key, err))
		}
	}
}

// loadConfig runs before every command so each one sees the merged
// configuration and a configured logger
func loadConfig(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(cfgFile, viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configMgr = mgr

	cfg := mgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	logger.WithComponent("config").Debug().
		Str("path", mgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
