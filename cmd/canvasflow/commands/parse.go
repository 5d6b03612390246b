package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow/pkg/llmsource"
	"github.com/canvasflow/canvasflow/pkg/stream"
	"github.com/canvasflow/canvasflow/pkg/surface"
)

var parseFlags struct {
	chunk int
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Replay a markup file through the streaming pipeline",
	Long: `Parse feeds a saved markup file through the full streaming pipeline,
chunked so that split-tag handling is exercised exactly as with a live model,
and prints the resulting layout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}

		rec := surface.NewRecorder()
		sess := stream.NewSession(rec, cfg.Layout, slog.Default())

		src := &llmsource.ReaderSource{R: f, Chunk: parseFlags.chunk}
		if err := sess.Generate(cmd.Context(), src, stream.Options{}); err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), renderSurface(rec, sess))
		return nil
	},
}

func init() {
	parseCmd.Flags().IntVar(&parseFlags.chunk, "chunk", 64, "chunk size in bytes")

	rootCmd.AddCommand(parseCmd)
}
