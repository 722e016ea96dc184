package model

import (
	"context"
	"fmt"
)

// State is the opaque per-hypothesis decoder state maintained by a
// scoring model. Its contents are only meaningful to the model that
// produced it; the search loop just re-orders states to follow the
// parent hypothesis of each surviving beam slot.
type State []float32

// Context holds the encoded source annotations, one row per source
// position. It is computed once per decode call and read-only afterwards.
type Context [][]float32

// Input carries everything a model's encoder needs for one decode call.
type Input struct {
	// Source is the eos-terminated source token id sequence.
	Source []int

	// Aux holds auxiliary modality annotations (e.g. image features for
	// multimodal models). Text-only models ignore it.
	Aux []Context
}

// InitResult is the output of a model's one-time encoder pass.
type InitResult struct {
	State   State
	Context Context
	Aux     []Context
}

// StepInput is one batched decode step over the current live beam.
type StepInput struct {
	// PrevTokens has one entry per live hypothesis. vocab.BOSMarker (-1)
	// signals "no previous token" on the first step.
	PrevTokens []int

	// States holds the per-hypothesis state, parallel to PrevTokens.
	States []State

	// Context is the source context tiled to the live beam. All rows
	// alias the same underlying annotations.
	Context []Context

	// Aux are the auxiliary contexts from Init, passed through unchanged.
	Aux []Context
}

// StepResult is the batched output of one decode step.
type StepResult struct {
	// LogProbs has one row per live hypothesis, each row a natural-log
	// probability distribution over the model's vocabulary.
	LogProbs [][]float32

	// States are the updated per-hypothesis states.
	States []State

	// Attention has one row per live hypothesis, each row a distribution
	// over source positions summing to ~1.
	Attention [][]float32
}

// Scorer is the only contract the beam search consumes. Init is called
// once per decode call, Next once per decode step batched over the
// live beam.
type Scorer interface {
	Init(ctx context.Context, in Input) (*InitResult, error)
	Next(ctx context.Context, step *StepInput) (*StepResult, error)
}

// FuncScorer adapts a pair of raw init/next functions to the Scorer
// interface. Useful for tests and for wrapping externally compiled
// scoring functions.
type FuncScorer struct {
	InitFunc func(ctx context.Context, in Input) (*InitResult, error)
	NextFunc func(ctx context.Context, step *StepInput) (*StepResult, error)
}

func (f *FuncScorer) Init(ctx context.Context, in Input) (*InitResult, error) {
	return f.InitFunc(ctx, in)
}

func (f *FuncScorer) Next(ctx context.Context, step *StepInput) (*StepResult, error) {
	return f.NextFunc(ctx, step)
}

// Tile broadcasts a single source context across n beam slots. The rows
// share the same backing annotations; models must treat them as
// read-only.
func Tile(c Context, n int) []Context {
	tiled := make([]Context, n)
	for i := range tiled {
		tiled[i] = c
	}
	return tiled
}

// ValidateStep checks a step result against the live beam width and an
// expected vocabulary width. A zero expected width accepts any uniform
// width and returns the observed one. Shape mismatches are configuration
// errors and always hard failures.
func ValidateStep(res *StepResult, live, vocabWidth int) (int, error) {
	if len(res.LogProbs) != live {
		return 0, fmt.Errorf("log-prob rows: got %d, want %d", len(res.LogProbs), live)
	}
	if len(res.States) != live {
		return 0, fmt.Errorf("state rows: got %d, want %d", len(res.States), live)
	}
	for i, row := range res.LogProbs {
		if vocabWidth == 0 {
			vocabWidth = len(row)
		}
		if len(row) != vocabWidth {
			return 0, fmt.Errorf("vocabulary width mismatch at row %d: got %d, want %d", i, len(row), vocabWidth)
		}
	}
	if vocabWidth == 0 {
		return 0, fmt.Errorf("empty log-prob distribution")
	}
	return vocabWidth, nil
}
