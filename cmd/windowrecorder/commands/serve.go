package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/WindowRecorder/internal/api"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/bryanchriswhite/WindowRecorder/internal/notify"
	"github.com/bryanchriswhite/WindowRecorder/internal/recorder"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recording control server",
	Long: `Start the WindowRecorder HTTP server.

The server exposes a REST API for starting and stopping recordings and a
WebSocket stream of recording status, for harnesses that are not written in
Go. All recordings are finalized before the server exits.`,
	Example: `  # Start server on default port (8090)
  windowrecorder serve

  # Start server on custom port
  windowrecorder serve --port 9090

  # Start a recording and stop it
  curl -X POST localhost:8090/api/recordings -d '{"windows":["Firefox"]}'
  curl -X DELETE localhost:8090/api/recordings/<id>`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "server port (default is 8090)")
	bindFlags(serveCmd.Flags(), map[string]string{"port": "server_port"})
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")
	cfg := configMgr.Get()

	fmt.Println("🎬 WindowRecorder - Control Server")
	fmt.Println("==================================")

	log.Info().Msg("Connecting to X11 server...")
	backend, err := window.NewX11Backend()
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer backend.Close()

	deps := recorder.Deps{}
	if cfg.Notify {
		notifier, err := notify.New()
		if err != nil {
			log.Warn().Err(err).Msg("Desktop notifications unavailable")
		} else {
			defer notifier.Close()
			deps.OnStart, deps.OnStop = notifier.Hooks()
		}
	}

	server := api.NewServer(backend, configMgr.RecordingOptions(), deps)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.ServerPort)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	fmt.Println()
	log.Info().Msg("✅ WindowRecorder is running!")
	log.Info().Msgf("   - API: http://localhost:%d/api", cfg.ServerPort)
	log.Info().Msg("   - Press Ctrl+C to stop")
	fmt.Println()

	select {
	case err := <-serverErr:
		if err != nil {
			server.StopAll()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		log.Info().Stringer("signal", sig).Msg("Shutting down gracefully, finalizing recordings...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
