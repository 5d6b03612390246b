package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow/pkg/canvas"
	"github.com/canvasflow/canvasflow/pkg/llmsource"
	"github.com/canvasflow/canvasflow/pkg/stream"
	"github.com/canvasflow/canvasflow/pkg/surface"
	"github.com/canvasflow/canvasflow/pkg/surface/wsbridge"

	_ "embed"
)

//go:embed system_prompt.txt
var defaultSystemPrompt string

var runFlags struct {
	provider string
	model    string
	wsURL    string
	target   string
	clear    bool
	preserve bool
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Stream a generation onto a canvas",
	Long: `Run starts a generation against the configured model provider and
streams the resulting markup onto a canvas as it arrives.

With --ws the canvas is a websocket host; without it an in-memory surface
records the layout and prints it when the stream ends.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		system := cfg.SystemPrompt
		if system == "" {
			system = defaultSystemPrompt
		}
		messages := []llmsource.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: args[0]},
		}

		var src llmsource.Source
		switch runFlags.provider {
		case "openai":
			oc := cfg.OpenAI
			if runFlags.model != "" {
				oc.Model = runFlags.model
			}
			if src, err = llmsource.NewOpenAI(ctx, oc, messages); err != nil {
				return err
			}
		case "gemini":
			gc := cfg.Gemini
			if runFlags.model != "" {
				gc.Model = runFlags.model
			}
			if src, err = llmsource.NewGemini(ctx, gc, messages); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown provider %q (want openai or gemini)", runFlags.provider)
		}

		var adapter surface.Adapter
		var rec *surface.Recorder
		if runFlags.wsURL != "" {
			bridge, err := wsbridge.Dial(ctx, runFlags.wsURL, nil)
			if err != nil {
				return err
			}
			defer bridge.Close()
			adapter = bridge
		} else {
			rec = surface.NewRecorder()
			adapter = rec
		}

		sess := stream.NewSession(adapter, cfg.Layout, slog.Default())
		sess.SetCallbacks(progressCallbacks(cmd))

		// Ctrl-C aborts cooperatively; realized elements stay in place.
		go func() {
			<-ctx.Done()
			sess.Abort()
		}()

		opts := stream.Options{
			TargetContainerID: runFlags.target,
			ClearExisting:     runFlags.clear,
			PreserveBounds:    runFlags.preserve,
		}
		if err := sess.Generate(ctx, src, opts); err != nil {
			return err
		}

		if rec != nil {
			fmt.Fprint(cmd.OutOrStdout(), renderSurface(rec, sess))
		}
		return nil
	},
}

func progressCallbacks(cmd *cobra.Command) stream.Callbacks {
	out := cmd.ErrOrStderr()
	return stream.Callbacks{
		OnStart: func() {
			fmt.Fprintln(out, "streaming...")
		},
		OnNodeCreated: func(n canvas.Node, pos canvas.Point) {
			slog.Debug("node created", "id", n.ID, "x", pos.X, "y", pos.Y)
		},
		OnProgress: func(pct int) {
			fmt.Fprintf(out, "\r%3d%%", pct)
		},
		OnComplete: func() {
			fmt.Fprintln(out, "\rdone ")
		},
		OnError: func(err error) {
			fmt.Fprintf(out, "\rfailed: %v\n", err)
		},
	}
}

func init() {
	runCmd.Flags().StringVar(&runFlags.provider, "provider", "openai", "model provider (openai, gemini)")
	runCmd.Flags().StringVar(&runFlags.model, "model", "", "override the configured model")
	runCmd.Flags().StringVar(&runFlags.wsURL, "ws", "", "websocket canvas endpoint (empty: in-memory surface)")
	runCmd.Flags().StringVar(&runFlags.target, "target", "", "regenerate into an existing container id")
	runCmd.Flags().BoolVar(&runFlags.clear, "clear", false, "clear the target container's members first")
	runCmd.Flags().BoolVar(&runFlags.preserve, "preserve-bounds", false, "reuse the target container's anchor and size")

	rootCmd.AddCommand(runCmd)
}
