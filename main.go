// Package main is the entry point for the BioClear application
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrcode/bioclear/internal/app"
	"github.com/mrcode/bioclear/internal/config"
	"github.com/mrcode/bioclear/internal/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bioclear",
		Short:         "Simulate drug clearance for patient cohorts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(curveCmd())
	rootCmd.AddCommand(drugsCmd())
	rootCmd.AddCommand(remoteCmd())
	rootCmd.AddCommand(autostartCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command shares
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.HTTPPort = port
			}
			if model, _ := cmd.Flags().GetString("model"); model != "" {
				cfg.ModelPath = model
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
	cmd.Flags().String("port", "", "HTTP port (overrides HTTP_PORT)")
	cmd.Flags().String("model", "", "Model artifact path (overrides MODEL_PATH)")
	return cmd
}
