// Package cli implements the fingertrain command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "fingertrain",
	Short: "Count raised fingers on a webcam and drive a train with them",
	Long: `fingertrain watches the webcam, counts how many fingers each hand
holds up and shows the counts next to a small 3D train scene. The current
state is served over HTTP and websockets and can be published over ZeroMQ.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("fingertrain version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
