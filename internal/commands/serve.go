package commands

import (
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/fer-stream/internal/handlers"
	"github.com/Brownie44l1/fer-stream/internal/server"
)

var serveOpts struct {
	Addr     string
	Detector string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			conf.Addr = serveOpts.Addr
		}
		if cmd.Flags().Changed("detector") {
			conf.Detector.Backend = serveOpts.Detector
		}

		if err := conf.Validate(); err != nil {
			return err
		}

		analyzer, release, err := newAnalyzer(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer release()

		h := handlers.NewHandler(analyzer, handlers.Options{
			MaxFrameBytes: conf.MaxFrameBytes,
			PingPeriod:    conf.Stream.PingPeriod,
			PongWait:      conf.Stream.PongWait,
		})

		log.Info("server: endpoints GET /health, POST /predict, GET /ws")

		return server.Start(cmd.Context(), conf.Addr, h)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.Addr, "addr", "a", "", "listen address (default :8000)")
	serveCmd.Flags().StringVarP(&serveOpts.Detector, "detector", "d", "", "face detector backend: pigo or remote")

	rootCmd.AddCommand(serveCmd)
}
