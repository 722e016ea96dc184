package config

import (
	"fmt"
	"runtime"
)

// Config holds the decode-time settings shared by the CLI and the
// server. Per-request overrides are applied on top of it.
type Config struct {
	BeamSize    int
	MaxLen      int
	SuppressUnk bool

	// WithAlignments keeps per-token attention traces on translations.
	WithAlignments bool

	// LengthNorm picks the best hypothesis by score divided by length
	// instead of raw cumulative score.
	LengthNorm bool

	// NBest returns up to this many hypotheses per sentence, best first.
	NBest int

	// Workers bounds concurrent sentence decodes during corpus
	// translation. Sentences are independent; nothing is shared across
	// decode calls.
	Workers int
}

func (c *Config) Validate() error {
	if c.BeamSize <= 0 {
		return fmt.Errorf("invalid beam_size: %d (must be positive)", c.BeamSize)
	}
	if c.MaxLen <= 0 {
		return fmt.Errorf("invalid max_len: %d (must be positive)", c.MaxLen)
	}
	if c.NBest <= 0 {
		return fmt.Errorf("invalid n_best: %d (must be positive)", c.NBest)
	}
	if c.NBest > c.BeamSize {
		return fmt.Errorf("invalid n_best: %d (must be <= beam_size: %d)", c.NBest, c.BeamSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("invalid workers: %d (must be positive)", c.Workers)
	}
	return nil
}

func Default() Config {
	return Config{
		BeamSize: 12,
		MaxLen:   100,
		NBest:    1,
		Workers:  runtime.NumCPU(),
	}
}
