package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var playlistsCmd = &cobra.Command{
	Use:   "playlists [name]",
	Short: "List stored playlists, or show the tracks of one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlaylists,
}

func runPlaylists(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		playlist, err := store.Load(ctx, args[0])
		if err != nil {
			return fmt.Errorf("load playlist: %w", err)
		}
		fmt.Fprintf(out, "%s (%d tracks)\n", playlist.Name, len(playlist.Tracks))
		fmt.Fprintln(out, renderTracks(playlist.Tracks))
		return nil
	}

	summaries, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list playlists: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No stored playlists.")
		return nil
	}
	fmt.Fprintln(out, renderSummaries(summaries))
	return nil
}
