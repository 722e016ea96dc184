package cli

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-bodkin/internal/alignio"
	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/model"
	"github.com/23skdu/longbow-bodkin/internal/translator"
	"github.com/23skdu/longbow-bodkin/internal/vocab"
)

var translateOpts struct {
	models    []string
	srcVocab  string
	trgVocab  string
	input     string
	output    string
	alignOut  string
	flightTo  string
	beamSize  int
	maxLen    int
	nBest     int
	workers   int
	suppress  bool
	lenNorm   bool
	alignment bool
}

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a corpus, one sentence per line",
	RunE:  runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	f := translateCmd.Flags()
	f.StringSliceVar(&translateOpts.models, "model", nil, "scoring model file; repeat to ensemble")
	f.StringVar(&translateOpts.srcVocab, "src-vocab", "", "source dictionary (JSON word->id)")
	f.StringVar(&translateOpts.trgVocab, "trg-vocab", "", "target dictionary (JSON word->id)")
	f.StringVar(&translateOpts.input, "input", "-", "input corpus file, - for stdin")
	f.StringVar(&translateOpts.output, "output", "-", "output file, - for stdout")
	f.StringVar(&translateOpts.alignOut, "alignments", "", "write attention alignments to an Arrow IPC file")
	f.StringVar(&translateOpts.flightTo, "flight", "", "push alignments to an Arrow Flight endpoint (host:port)")
	f.IntVar(&translateOpts.beamSize, "beam-size", 12, "hypotheses retained per step")
	f.IntVar(&translateOpts.maxLen, "max-len", 100, "soft output length cap")
	f.IntVar(&translateOpts.nBest, "n-best", 1, "hypotheses reported per sentence")
	f.IntVar(&translateOpts.workers, "workers", 0, "concurrent sentence decodes (0 = number of CPUs)")
	f.BoolVar(&translateOpts.suppress, "suppress-unk", false, "ban the unknown token from hypotheses")
	f.BoolVar(&translateOpts.lenNorm, "length-norm", false, "rank hypotheses by length-normalised score")

	cobra.CheckErr(translateCmd.MarkFlagRequired("model"))
	cobra.CheckErr(translateCmd.MarkFlagRequired("src-vocab"))
	cobra.CheckErr(translateCmd.MarkFlagRequired("trg-vocab"))
}

func buildTranslator() (*translator.Translator, error) {
	cfg := config.Default()
	cfg.BeamSize = translateOpts.beamSize
	cfg.MaxLen = translateOpts.maxLen
	cfg.NBest = translateOpts.nBest
	cfg.SuppressUnk = translateOpts.suppress
	cfg.LengthNorm = translateOpts.lenNorm
	cfg.WithAlignments = translateOpts.alignOut != "" || translateOpts.flightTo != ""
	if translateOpts.workers > 0 {
		cfg.Workers = translateOpts.workers
	}

	src, err := vocab.Load(translateOpts.srcVocab)
	if err != nil {
		return nil, err
	}
	trg, err := vocab.Load(translateOpts.trgVocab)
	if err != nil {
		return nil, err
	}

	scorers := make([]model.Scorer, 0, len(translateOpts.models))
	for _, path := range translateOpts.models {
		sc, err := model.LoadNgram(path)
		if err != nil {
			return nil, err
		}
		scorers = append(scorers, sc)
	}
	logger.Log.Info("models loaded", "count", len(scorers), "beam_size", cfg.BeamSize)

	return translator.New(cfg, scorers, src, trg)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	t, err := buildTranslator()
	if err != nil {
		return err
	}

	in, err := openInput(translateOpts.input)
	if err != nil {
		return err
	}
	defer in.Close()

	lines, err := translator.ReadLines(in)
	if err != nil {
		return err
	}

	results, err := t.TranslateAll(cmd.Context(), lines)
	if err != nil {
		return err
	}

	out, err := openOutput(translateOpts.output)
	if err != nil {
		return err
	}
	defer out.Close()

	bw := bufio.NewWriter(out)
	for _, tr := range results {
		if _, err := fmt.Fprintln(bw, tr.Target); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if translateOpts.alignOut == "" && translateOpts.flightTo == "" {
		return nil
	}

	recs := make([]alignio.Record, len(results))
	for i, tr := range results {
		recs[i] = alignio.Record{
			Source:    tr.Source,
			Target:    tr.Target,
			Score:     tr.Score,
			Attention: tr.Alignment,
		}
	}

	if translateOpts.alignOut != "" {
		if err := alignio.WriteFile(translateOpts.alignOut, recs); err != nil {
			return err
		}
		logger.Log.Info("alignments written", "path", translateOpts.alignOut, "records", len(recs))
	}

	if translateOpts.flightTo != "" {
		host, port, err := splitHostPort(translateOpts.flightTo)
		if err != nil {
			return err
		}
		pusher := alignio.NewFlightPusher(host, port)
		if err := pusher.Connect(cmd.Context()); err != nil {
			return err
		}
		defer pusher.Close()
		if err := pusher.Push(cmd.Context(), recs); err != nil {
			return err
		}
	}
	return nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid flight address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid flight port %q: %w", portStr, err)
	}
	return host, port, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return f, nil
}
