package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bryanchriswhite/WindowRecorder/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage WindowRecorder configuration",
	Long: `View and change the defaults used by record and serve.

Every key can also be overridden with an environment variable, e.g.
WINDOWRECORDER_RECORDING_FRAME_RATE=10.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Example: `  # Show configuration as YAML (default)
  windowrecorder config show

  # Show configuration as JSON
  windowrecorder config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the config file.

VALUE is parsed as the type of the key's default, see "config keys".`,
	Example: `  # Record at 10 fps by default
  windowrecorder config set recording.frame_rate 10

  # Burn the elapsed time into every frame
  windowrecorder config set overlay.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:     "get KEY",
	Short:   "Get a configuration value",
	Example: `  windowrecorder config get recording.save_dir`,
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigGet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys with their defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configGetCmd, configKeysCmd, configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	return writeConfig(cmd.OutOrStdout(), configMgr.Get(), formatFlag)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", format)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	if err := configMgr.SetString(key, value); err != nil {
		return err
	}
	if err := configMgr.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s = %v (saved to %s)\n", key, configMgr.GetViper().Get(key), configMgr.GetConfigPath())
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if _, ok := config.Default(key); !ok {
		return fmt.Errorf("unknown configuration key: %s (see 'windowrecorder config keys')", key)
	}

	fmt.Fprintln(cmd.OutOrStdout(), configMgr.GetViper().Get(key))
	return nil
}

func runConfigKeys(cmd *cobra.Command, args []string) error {
	return writeKeys(cmd.OutOrStdout())
}

func writeKeys(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE\tDEFAULT")
	for _, key := range config.Keys() {
		def, _ := config.Default(key)
		fmt.Fprintf(w, "%s\t%T\t%v\n", key, def, def)
	}
	return w.Flush()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), configMgr.GetConfigPath())
	return nil
}
