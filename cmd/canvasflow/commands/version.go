package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow/cmd/canvasflow/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.String())
		if verbose {
			fmt.Printf("  go: %s\n", runtime.Version())
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
