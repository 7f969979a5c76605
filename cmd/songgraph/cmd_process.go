package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"songgraph/internal/orchestrator"
	"songgraph/pkg/graceful"
)

var processFlags struct {
	topology string
	json     bool
}

var processCmd = &cobra.Command{
	Use:   "process <playlist-url>",
	Short: "Enrich one playlist and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVar(&processFlags.topology, "topology", "", "sequential or parallel (default sequential)")
	f.BoolVar(&processFlags.json, "json", false, "print the enriched tracks as JSON")
}

func runProcess(cmd *cobra.Command, args []string) error {
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
	o := a.orchestrator(ctx, a.registry(), store)

	job, err := o.Process(ctx, orchestrator.Request{PlaylistURL: args[0], Topology: processFlags.topology})
	if err != nil {
		return fmt.Errorf("process playlist: %w", err)
	}

	out := cmd.OutOrStdout()
	if processFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(job.Tracks)
	}
	fmt.Fprintf(out, "%s (%d tracks)\n", job.PlaylistName, len(job.Tracks))
	fmt.Fprintln(out, renderTracks(job.Tracks))
	if job.OutputKey != "" {
		fmt.Fprintf(out, "Saved to %s\n", job.OutputKey)
	}
	return nil
}
