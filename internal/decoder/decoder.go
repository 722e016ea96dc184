package decoder

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/model"
	"github.com/23skdu/longbow-bodkin/internal/vocab"
)

// Hypothesis is a finished candidate translation. Tokens never contain
// the end token; when alignments were requested, Alignment has exactly
// one attention row per token.
type Hypothesis struct {
	Tokens []int
	// Score is the cumulative negative log-likelihood under the
	// ensemble, end-token step included. Lower is better.
	Score     float32
	Alignment [][]float32
}

// Options controls a single beam search call.
type Options struct {
	// BeamSize is the number of hypotheses retained per step. Zero
	// yields an empty result without error.
	BeamSize int

	// MaxLen is a soft step cap; the effective cap is
	// max(MaxLen, 3*len(source)).
	MaxLen int

	// SuppressUnk forces the unknown-token log-probability to -Inf
	// before scoring, banning it from every hypothesis.
	SuppressUnk bool

	// WithAlignments records the model-averaged attention row for each
	// generated token.
	WithAlignments bool
}

var negInf = float32(math.Inf(-1))

// Search runs beam search over one source input, ensembling the given
// scoring models. Per-model log-probabilities are combined by summation
// (product of probabilities); attention rows are averaged arithmetically.
// All finished hypotheses are returned, both end-token terminated and
// length-capped ones; the caller picks among them.
func Search(ctx context.Context, scorers []model.Scorer, in model.Input, opts Options) ([]Hypothesis, error) {
	if len(scorers) == 0 {
		return nil, fmt.Errorf("beam search: no scoring models")
	}
	if len(in.Source) == 0 {
		return nil, fmt.Errorf("beam search: empty source input")
	}
	if opts.BeamSize < 0 {
		return nil, fmt.Errorf("beam search: negative beam size %d", opts.BeamSize)
	}
	if opts.BeamSize == 0 {
		return []Hypothesis{}, nil
	}

	start := time.Now()
	defer func() {
		metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	}()

	nModels := len(scorers)

	// One encoder pass per model: initial state plus the fixed source
	// annotations consumed unchanged at every step.
	states := make([][]model.State, nModels)
	contexts := make([]model.Context, nModels)
	aux := make([][]model.Context, nModels)
	for m, sc := range scorers {
		res, err := sc.Init(ctx, in)
		if err != nil {
			metrics.ScorerFailures.WithLabelValues("init").Inc()
			return nil, fmt.Errorf("beam search: init model %d: %w", m, err)
		}
		states[m] = []model.State{res.State}
		contexts[m] = res.Context
		aux[m] = res.Aux
	}

	maxLen := opts.MaxLen
	if n := 3 * len(in.Source); n > maxLen {
		maxLen = n
	}

	// One empty hypothesis at score 0, fed the BOS marker.
	liveBeam := opts.BeamSize
	hypTokens := [][]int{{}}
	hypAligns := [][][]float32{nil}
	hypScores := []float32{0}
	prev := []int{vocab.BOSMarker}

	var finished []Hypothesis
	vocabWidth := 0

	logProbs := make([][][]float32, nModels)
	alphas := make([][][]float32, nModels)

	for t := 0; t < maxLen; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		live := len(prev)
		metrics.LiveBeamWidth.Observe(float64(live))

		for m, sc := range scorers {
			res, err := sc.Next(ctx, &model.StepInput{
				PrevTokens: prev,
				States:     states[m],
				Context:    model.Tile(contexts[m], live),
				Aux:        aux[m],
			})
			if err != nil {
				metrics.ScorerFailures.WithLabelValues("next").Inc()
				return nil, fmt.Errorf("beam search: step %d model %d: %w", t, m, err)
			}
			w, err := model.ValidateStep(res, live, vocabWidth)
			if err != nil {
				return nil, fmt.Errorf("beam search: step %d model %d: %w", t, m, err)
			}
			vocabWidth = w

			if opts.SuppressUnk {
				for _, row := range res.LogProbs {
					row[vocab.Unk] = negInf
				}
			}

			logProbs[m] = res.LogProbs
			alphas[m] = res.Attention
			states[m] = res.States
		}

		// Candidate cost of every (hypothesis, token) extension:
		// parent cost plus the summed negative log-probability.
		cand := make([]float32, live*vocabWidth)
		for i := 0; i < live; i++ {
			row := cand[i*vocabWidth : (i+1)*vocabWidth]
			base := hypScores[i]
			for w := range row {
				row[w] = base
			}
			for m := 0; m < nModels; m++ {
				lp := logProbs[m][i]
				for w := range row {
					row[w] -= lp[w]
				}
			}
		}

		var meanAtt [][]float32
		if opts.WithAlignments {
			var err error
			meanAtt, err = meanAttention(alphas, live)
			if err != nil {
				return nil, fmt.Errorf("beam search: step %d: %w", t, err)
			}
		}

		k := liveBeam
		if k > len(cand) {
			k = len(cand)
		}
		ranks := selectLowest(cand, k)

		liveBeam = 0
		newTokens := make([][]int, 0, k)
		newAligns := make([][][]float32, 0, k)
		newScores := make([]float32, 0, k)
		parents := make([]int, 0, k)

		for _, flat := range ranks {
			ti := flat / vocabWidth
			wi := flat % vocabWidth
			cost := cand[flat]

			// An infinite cost means a zero-probability extension; the
			// selection only reached it because fewer than k finite
			// candidates exist. Dropping it keeps suppressed and
			// impossible tokens out of every hypothesis.
			if math.IsInf(float64(cost), 1) {
				continue
			}

			if wi == vocab.EOS {
				// End token found: the hypothesis is finished and leaves
				// the beam. The end token itself is not part of the
				// output, so the alignment trace stays token-aligned.
				finished = append(finished, Hypothesis{
					Tokens:    hypTokens[ti],
					Score:     cost,
					Alignment: hypAligns[ti],
				})
				metrics.HypothesesFinished.WithLabelValues(metrics.ReasonEOS).Inc()
				continue
			}

			seq := make([]int, len(hypTokens[ti])+1)
			copy(seq, hypTokens[ti])
			seq[len(seq)-1] = wi
			newTokens = append(newTokens, seq)

			if opts.WithAlignments {
				ali := make([][]float32, len(hypAligns[ti])+1)
				copy(ali, hypAligns[ti])
				ali[len(ali)-1] = meanAtt[ti]
				newAligns = append(newAligns, ali)
			} else {
				newAligns = append(newAligns, nil)
			}
			newScores = append(newScores, cost)
			parents = append(parents, ti)
			liveBeam++
		}

		metrics.DecodeSteps.Inc()

		hypTokens = newTokens
		hypAligns = newAligns
		hypScores = newScores

		if liveBeam == 0 {
			break
		}

		// Re-gather each model's states so slot j follows the parent of
		// the j-th surviving hypothesis, and re-tile contexts to the
		// shrunk beam on the next iteration.
		for m := 0; m < nModels; m++ {
			gathered := make([]model.State, liveBeam)
			for j, ti := range parents {
				gathered[j] = states[m][ti]
			}
			states[m] = gathered
		}

		prev = make([]int, liveBeam)
		for j, seq := range hypTokens {
			prev[j] = seq[len(seq)-1]
		}
	}

	// Whatever is still alive at the cap is returned as-is, scored and
	// aligned up to its current length.
	for i := range hypTokens {
		finished = append(finished, Hypothesis{
			Tokens:    hypTokens[i],
			Score:     hypScores[i],
			Alignment: hypAligns[i],
		})
		metrics.HypothesesFinished.WithLabelValues(metrics.ReasonLength).Inc()
	}

	logger.Log.Debug("beam search done",
		"models", nModels,
		"beam_size", opts.BeamSize,
		"finished", len(finished),
		"src_len", len(in.Source))

	return finished, nil
}

// meanAttention averages per-model attention rows for the live beam.
func meanAttention(alphas [][][]float32, live int) ([][]float32, error) {
	n := len(alphas)
	out := make([][]float32, live)
	for m := 0; m < n; m++ {
		if len(alphas[m]) != live {
			return nil, fmt.Errorf("attention rows model %d: got %d, want %d", m, len(alphas[m]), live)
		}
	}
	for i := 0; i < live; i++ {
		width := len(alphas[0][i])
		row := make([]float32, width)
		for m := 0; m < n; m++ {
			src := alphas[m][i]
			if len(src) != width {
				return nil, fmt.Errorf("attention width mismatch model %d row %d: got %d, want %d", m, i, len(src), width)
			}
			for j, v := range src {
				row[j] += v
			}
		}
		inv := float32(1) / float32(n)
		for j := range row {
			row[j] *= inv
		}
		out[i] = row
	}
	return out, nil
}
