package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config  string
	envFile string
}

var rootCmd = &cobra.Command{
	Use:   "songgraph",
	Short: "Enrich playlists with tempo, lyrics and sentiment",
	Long: "songgraph fetches playlists, runs tempo, lyrics and sentiment enrichment\n" +
		"over bounded worker pools and streams per-track progress to observers.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "path to a TOML config file")
	pf.StringVar(&rootFlags.envFile, "env-file", "", "path to a .env file (default .env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(playlistsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
