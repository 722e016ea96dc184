package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/23skdu/longbow-bodkin/internal/vocab"
)

// ngramFile is the on-disk layout of a bigram scoring table.
type ngramFile struct {
	VocabSize int                           `json:"vocab_size"`
	Floor     float32                       `json:"floor"`
	Table     map[string]map[string]float32 `json:"table"`
}

// NgramScorer scores next tokens from a conditional log-probability
// table keyed by the previous token. It carries no recurrent state and
// attends uniformly over the source, which makes it a cheap stand-in
// scorer for exercising the full decode path without a neural runtime.
type NgramScorer struct {
	vocabSize int
	floor     float32
	table     map[int]map[int]float32
}

// LoadNgram reads a bigram table from a JSON file.
func LoadNgram(path string) (*NgramScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load ngram model %s: %w", path, err)
	}

	var raw ngramFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ngram model %s: %w", path, err)
	}
	if raw.VocabSize <= 0 {
		return nil, fmt.Errorf("ngram model %s: invalid vocab_size %d", path, raw.VocabSize)
	}
	if raw.Floor >= 0 {
		// log-prob floor; zero would make every unlisted token certain
		raw.Floor = -20
	}

	table := make(map[int]map[int]float32, len(raw.Table))
	for prevStr, row := range raw.Table {
		prev, err := strconv.Atoi(prevStr)
		if err != nil {
			return nil, fmt.Errorf("ngram model %s: bad table key %q", path, prevStr)
		}
		dst := make(map[int]float32, len(row))
		for tokStr, lp := range row {
			tok, err := strconv.Atoi(tokStr)
			if err != nil {
				return nil, fmt.Errorf("ngram model %s: bad token key %q", path, tokStr)
			}
			if tok < 0 || tok >= raw.VocabSize {
				return nil, fmt.Errorf("ngram model %s: token %d outside vocabulary", path, tok)
			}
			dst[tok] = lp
		}
		table[prev] = dst
	}

	return &NgramScorer{vocabSize: raw.VocabSize, floor: raw.Floor, table: table}, nil
}

// NewNgram builds a scorer directly from a table, mainly for tests.
func NewNgram(vocabSize int, floor float32, table map[int]map[int]float32) *NgramScorer {
	return &NgramScorer{vocabSize: vocabSize, floor: floor, table: table}
}

// VocabSize returns the width of the distributions this scorer emits.
func (s *NgramScorer) VocabSize() int { return s.vocabSize }

func (s *NgramScorer) Init(ctx context.Context, in Input) (*InitResult, error) {
	if len(in.Source) == 0 {
		return nil, fmt.Errorf("ngram scorer: empty source")
	}
	// 1-dim annotation per source position; enough for the uniform
	// attention this scorer produces.
	annot := make(Context, len(in.Source))
	for i, tok := range in.Source {
		annot[i] = []float32{float32(tok)}
	}
	return &InitResult{State: State{}, Context: annot}, nil
}

func (s *NgramScorer) Next(ctx context.Context, step *StepInput) (*StepResult, error) {
	live := len(step.PrevTokens)
	if live == 0 {
		return nil, fmt.Errorf("ngram scorer: empty step batch")
	}
	srcLen := 0
	if len(step.Context) > 0 {
		srcLen = len(step.Context[0])
	}
	if srcLen == 0 {
		return nil, fmt.Errorf("ngram scorer: empty context")
	}

	out := &StepResult{
		LogProbs:  make([][]float32, live),
		States:    make([]State, live),
		Attention: make([][]float32, live),
	}
	uniform := float32(1) / float32(srcLen)

	for i, prev := range step.PrevTokens {
		row := make([]float32, s.vocabSize)
		cond := s.table[prev]
		if cond == nil && prev == vocab.BOSMarker {
			// untrained sentence-initial distribution falls back to the
			// eos continuation row
			cond = s.table[vocab.EOS]
		}
		for w := range row {
			lp, ok := cond[w]
			if !ok {
				lp = s.floor
			}
			row[w] = lp
		}
		out.LogProbs[i] = row
		out.States[i] = State{}

		att := make([]float32, srcLen)
		for j := range att {
			att[j] = uniform
		}
		out.Attention[i] = att
	}
	return out, nil
}
