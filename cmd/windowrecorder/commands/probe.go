package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bryanchriswhite/WindowRecorder/internal/output"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe FILE",
	Short: "Show the frame count and resolution of a recording",
	Long: `Decode a video file with ffprobe and report its codec, resolution and
number of frames.`,
	Example: `  # Inspect a recording
  windowrecorder probe captures/2024_01_02_03_04_05.mp4

  # Machine readable
  windowrecorder probe run.mp4 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

var (
	probeFormat  string
	probeFFprobe string
)

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVarP(&probeFormat, "format", "f", "text", "output format (text or json)")
	probeCmd.Flags().StringVar(&probeFFprobe, "ffprobe", "ffprobe", "path to the ffprobe binary")
}

func runProbe(cmd *cobra.Command, args []string) error {
	info, err := output.Probe(cmd.Context(), probeFFprobe, args[0])
	if err != nil {
		return err
	}

	switch probeFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case "text":
		fmt.Printf("Codec:      %s\n", info.Codec)
		fmt.Printf("Resolution: %dx%d\n", info.Width, info.Height)
		fmt.Printf("Frames:     %d\n", info.Frames)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", probeFormat)
	}
}
