// Package commands implements the fer-stream command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/fer-stream/internal/config"
	"github.com/Brownie44l1/fer-stream/internal/event"
)

// Version is the application version.
const Version = "0.2.0"

var (
	// configPath is the optional YAML config file.
	configPath string
	// conf is loaded before any subcommand runs.
	conf *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "fer-stream",
	Short:         "Face detection and emotion recognition over HTTP and WebSocket",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if err := event.SetLevel(c.LogLevel); err != nil {
			return err
		}

		conf = c
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}
