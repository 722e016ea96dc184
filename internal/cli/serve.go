package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/23skdu/longbow-bodkin/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve translation over HTTP and WebSocket",
	Long: `Start the translation server. Endpoints:
  POST /translate  JSON translation
  GET  /ws         WebSocket sentence streaming
  GET  /healthz    liveness
  GET  /metrics    Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringSliceVar(&translateOpts.models, "model", nil, "scoring model file; repeat to ensemble")
	f.StringVar(&translateOpts.srcVocab, "src-vocab", "", "source dictionary (JSON word->id)")
	f.StringVar(&translateOpts.trgVocab, "trg-vocab", "", "target dictionary (JSON word->id)")
	f.IntVar(&translateOpts.beamSize, "beam-size", 12, "hypotheses retained per step")
	f.IntVar(&translateOpts.maxLen, "max-len", 100, "soft output length cap")
	f.IntVar(&translateOpts.nBest, "n-best", 1, "hypotheses reported per request")
	f.BoolVar(&translateOpts.suppress, "suppress-unk", false, "ban the unknown token from hypotheses")
	f.BoolVar(&translateOpts.lenNorm, "length-norm", false, "rank hypotheses by length-normalised score")
	f.String("listen", ":8080", "listen address")

	cobra.CheckErr(serveCmd.MarkFlagRequired("model"))
	cobra.CheckErr(serveCmd.MarkFlagRequired("src-vocab"))
	cobra.CheckErr(serveCmd.MarkFlagRequired("trg-vocab"))

	cobra.CheckErr(viper.BindPFlag("listen", f.Lookup("listen")))
	viper.SetDefault("listen", ":8080")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	t, err := buildTranslator()
	if err != nil {
		return err
	}

	srv := server.New(t)
	return srv.ListenAndServe(ctx, viper.GetString("listen"))
}
