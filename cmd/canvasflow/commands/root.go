package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow/cmd/canvasflow/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "canvasflow",
	Short: "Stream model-generated diagrams onto a canvas",
	Long: `canvasflow - stream language-model output onto a live canvas.

The model emits a small tag grammar (nodes, groups, edges) while canvasflow
parses it incrementally, computes a stable overlap-free layout and realizes
every element the moment it is complete enough to show.

Examples:
  # Stream a generation from the configured provider into a websocket canvas
  canvasflow run --provider openai --ws ws://localhost:8787/canvas "plan a garden"

  # Dry-run against the in-memory surface and print the resulting layout
  canvasflow run --provider gemini "plan a garden"

  # Replay a saved markup file offline, chunked to exercise the parser
  canvasflow parse testdata/garden.canvas`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
