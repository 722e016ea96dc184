package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-bodkin/internal/bleu"
)

var scoreOpts struct {
	script  string
	hyp     string
	hypMult string
	ref     string
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score hypotheses with an external evaluation script",
	Long: `Run an external factor-to-word scoring script against a hypothesis
file and a reference, printing the parsed score. A script that produces
no usable output yields 0.0 instead of failing.`,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	f := scoreCmd.Flags()
	f.StringVar(&scoreOpts.script, "script", "", "external scorer executable")
	f.StringVar(&scoreOpts.hyp, "hyp", "", "hypothesis file")
	f.StringVar(&scoreOpts.hypMult, "hyp-mult", "", "multi-hypothesis file")
	f.StringVar(&scoreOpts.ref, "ref", "", "reference file; its extension is the language tag")

	cobra.CheckErr(scoreCmd.MarkFlagRequired("script"))
	cobra.CheckErr(scoreCmd.MarkFlagRequired("hyp"))
	cobra.CheckErr(scoreCmd.MarkFlagRequired("ref"))
}

func runScore(cmd *cobra.Command, args []string) error {
	scorer := &bleu.Factors2Word{Script: scoreOpts.script}
	score, err := scorer.Compute(cmd.Context(), scoreOpts.hyp, scoreOpts.hypMult, scoreOpts.ref)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), score.String())
	return nil
}
