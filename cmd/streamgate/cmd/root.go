// Package cmd implements the CLI commands for streamgate.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamgate/streamgate/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "streamgate",
	Short:   "Torrent and URL to HLS streaming gateway",
	Version: version.Short(),
	Long: `streamgate converts peer-to-peer (BitTorrent) and remote (URL) video
sources into HTTP-playable form while the source is still arriving: an
adaptive segmented HLS playlist plus a direct byte-range endpoint.

Submit a magnet URI or URL, receive a stream id and two URLs, and start
playback within seconds of the first segment being produced.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.streamgate.yaml)")
}
