package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hostd",
	Short: "helios-os host daemon",
	Long: `hostd is the helios-os host daemon: it runs the Isolate Manager, the
syscall bridge, and the virtual network fabric, and exposes them to the
simulated shell over HTTP and a WebSocket event stream.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
