package commands

import (
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/bryanchriswhite/WindowRecorder/internal/display"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/spf13/cobra"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Open a solid color window to record",
	Long: `Open a plain window filled with one color and keep it open until
interrupted. Recording it produces a predictable video, which is useful for
checking a setup end to end.`,
	Example: `  # Open a red 320x240 window titled "recording-target"
  windowrecorder target

  # Then, from another terminal
  windowrecorder record --window recording-target --duration 2s`,
	Args: cobra.NoArgs,
	RunE: runTarget,
}

var (
	targetTitle string
	targetSize  string
	targetColor string
)

func init() {
	rootCmd.AddCommand(targetCmd)

	targetCmd.Flags().StringVarP(&targetTitle, "title", "t", "recording-target", "window title")
	targetCmd.Flags().StringVarP(&targetSize, "size", "s", "320x240", "window size as WIDTHxHEIGHT")
	targetCmd.Flags().StringVarP(&targetColor, "color", "c", "ff0000", "fill color as RRGGBB")
}

func runTarget(cmd *cobra.Command, args []string) error {
	width, height, err := parseSize(targetSize)
	if err != nil {
		return err
	}
	fill, err := parseColor(targetColor)
	if err != nil {
		return err
	}

	target, err := display.NewTarget(targetTitle, 0, 0, width, height)
	if err != nil {
		return err
	}
	defer target.Close()

	if err := target.Fill(fill); err != nil {
		return err
	}

	logger.WithComponent("target").Info().
		Str("title", targetTitle).
		Uint32("window_id", target.ID()).
		Msg("Target window open, press Ctrl+C to close")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan

	return nil
}

// parseSize parses WIDTHxHEIGHT
func parseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q (use WIDTHxHEIGHT)", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid width in %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid height in %q", s)
	}
	return width, height, nil
}

// parseColor parses RRGGBB, with or without a leading #
func parseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q (use RRGGBB)", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q (use RRGGBB)", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
