// Package cmd implements the scrcpy-mcp command-line surface: a Cobra root
// command with a `serve` subcommand (the production MCP entry point) and a
// `doctor` diagnostic subcommand, following the command-per-file layout
// babelcloud-gbox/packages/cli/cmd uses.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scrcpy-mcp",
	Short: "Android device-automation bridge over ADB and scrcpy",
	Long: `scrcpy-mcp drives an Android device over the Android Debug Bridge and the
scrcpy control channel, exposing tap, swipe, text, key, clipboard, app, file,
and UI-inspection operations as MCP tools.`,
}

// Execute runs the root command, dispatching to the selected subcommand.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newDoctorCommand())
}
