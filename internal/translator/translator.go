package translator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/decoder"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/model"
	"github.com/23skdu/longbow-bodkin/internal/vocab"
)

// Translator turns source sentences into target sentences by running
// beam search over an ensemble of scoring models. A Translator is safe
// for concurrent use as long as its scorers are.
type Translator struct {
	cfg     config.Config
	scorers []model.Scorer
	src     *vocab.Vocab
	trg     *vocab.Vocab
}

// Candidate is one scored hypothesis of a translation n-best list.
type Candidate struct {
	Target string
	Score  float32
}

// Translation is the decoded output for one source sentence.
type Translation struct {
	Source    string
	Target    string
	TokenIDs  []int
	Score     float32
	Alignment [][]float32
	NBest     []Candidate
}

func New(cfg config.Config, scorers []model.Scorer, src, trg *vocab.Vocab) (*Translator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("translator: %w", err)
	}
	if len(scorers) == 0 {
		return nil, fmt.Errorf("translator: no scoring models")
	}
	if src == nil || trg == nil {
		return nil, fmt.Errorf("translator: missing vocabulary")
	}
	return &Translator{cfg: cfg, scorers: scorers, src: src, trg: trg}, nil
}

// Translate decodes a single source sentence and returns the best
// hypothesis plus an n-best list per the configured NBest.
func (t *Translator) Translate(ctx context.Context, line string) (*Translation, error) {
	ids := t.src.EncodeLine(line)

	hyps, err := decoder.Search(ctx, t.scorers, model.Input{Source: ids}, decoder.Options{
		BeamSize:       t.cfg.BeamSize,
		MaxLen:         t.cfg.MaxLen,
		SuppressUnk:    t.cfg.SuppressUnk,
		WithAlignments: t.cfg.WithAlignments,
	})
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	if len(hyps) == 0 {
		return &Translation{Source: line}, nil
	}

	t.rank(hyps)

	best := hyps[0]
	out := &Translation{
		Source:    line,
		Target:    t.trg.DecodeLine(best.Tokens),
		TokenIDs:  best.Tokens,
		Score:     best.Score,
		Alignment: best.Alignment,
	}
	n := t.cfg.NBest
	if n > len(hyps) {
		n = len(hyps)
	}
	if n > 1 {
		out.NBest = make([]Candidate, n)
		for i := 0; i < n; i++ {
			out.NBest[i] = Candidate{Target: t.trg.DecodeLine(hyps[i].Tokens), Score: hyps[i].Score}
		}
	}

	metrics.SentencesTranslated.Inc()
	metrics.TokensGenerated.Add(float64(len(best.Tokens)))
	return out, nil
}

// rank orders hypotheses best first, optionally normalising scores by
// hypothesis length so short outputs stop being favoured by raw
// cumulative cost.
func (t *Translator) rank(hyps []decoder.Hypothesis) {
	key := func(h decoder.Hypothesis) float32 {
		if !t.cfg.LengthNorm || len(h.Tokens) == 0 {
			return h.Score
		}
		return h.Score / float32(len(h.Tokens))
	}
	sort.SliceStable(hyps, func(i, j int) bool {
		return key(hyps[i]) < key(hyps[j])
	})
}

// TranslateAll decodes a batch of sentences with a pool of workers,
// results in input order. Each decode call owns its beam and per-model
// states exclusively, so no locking beyond the pool itself is needed.
func (t *Translator) TranslateAll(ctx context.Context, lines []string) ([]*Translation, error) {
	start := time.Now()

	results := make([]*Translation, len(lines))
	jobs := make(chan int)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	workers := t.cfg.Workers
	if workers > len(lines) {
		workers = len(lines)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				tr, err := t.Translate(ctx, lines[idx])
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("sentence %d: %w", idx, err)
						cancel()
					})
					return
				}
				results[idx] = tr
			}
		}()
	}

feed:
	for idx := range lines {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	logger.Log.Info("corpus translated",
		"sentences", len(lines),
		"workers", workers,
		"elapsed", time.Since(start).String())
	return results, nil
}

// TranslateCorpus reads one sentence per line from r and writes one
// translation per line to w, input order preserved.
func (t *Translator) TranslateCorpus(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return 0, err
	}

	results, err := t.TranslateAll(ctx, lines)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	for _, tr := range results {
		if _, err := fmt.Fprintln(bw, tr.Target); err != nil {
			return 0, fmt.Errorf("write corpus: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("write corpus: %w", err)
	}
	return len(lines), nil
}

// ReadLines slurps a corpus, one sentence per line.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return lines, nil
}
