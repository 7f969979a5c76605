package main

import (
	"time"

	"github.com/spf13/cobra"

	"songgraph/internal/progress"
	"songgraph/internal/server"
	"songgraph/pkg/graceful"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := graceful.Context(cmd.Context(), a.logger)
	defer cancel()

	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	registry := a.registry()
	go registry.RunSweeper(ctx, a.sweepInterval())

	o := a.orchestrator(ctx, registry, store)
	defer o.Wait()

	publisher := progress.NewPublisher(registry, time.Duration(a.cfg.Progress.PollInterval), a.logger.Named("progress"))
	srv := server.New(o, publisher, store, a.catalog(), a.logger.Named("http"))

	addr := a.cfg.Server.Addr
	if serveFlags.addr != "" {
		addr = serveFlags.addr
	}
	return srv.ListenAndServe(ctx, addr)
}
