// Command livemic-cli runs live sessions from a terminal and inspects the
// locally registered tools.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "livemic-cli",
		Short:         "Headless client for Gemini Live sessions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newLiveCmd(), newToolsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
