package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/uploadoor/pkg/config"
	"github.com/ethpandaops/uploadoor/pkg/sink"
)

var (
	serveListen   string
	serveSpoolDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local HTTP sink that accepts uploads",
	Long: `Run a local HTTP server that accepts POSTed payloads on any path
and always answers 200. Useful as a localhost target for upload runs,
optionally spooling every payload to a directory.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l",
		config.DefaultSinkListen, "Listen address")
	serveCmd.Flags().StringVar(&serveSpoolDir, "spool-dir", "",
		"Directory to spool received payloads into (empty = discard)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("listen") {
		cfg.Sink.Listen = serveListen
	}

	if cmd.Flags().Changed("spool-dir") {
		cfg.Sink.SpoolDir = serveSpoolDir
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	srv := sink.NewServer(log, &cfg.Sink)

	if err := srv.Start(cmd.Context()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("Shutting down")
	case <-cmd.Context().Done():
	}

	return srv.Stop()
}
