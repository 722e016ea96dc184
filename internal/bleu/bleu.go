package bleu

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/23skdu/longbow-bodkin/internal/metrics"
)

// Score is the parsed output of an external scoring script. A zero
// Score (Valid false) is the sentinel for "the tool produced nothing
// usable"; evaluation runs treat it as 0 rather than failing.
type Score struct {
	Value   float64
	Verbose string
	Valid   bool
}

func (s Score) String() string {
	if !s.Valid {
		return "0.0"
	}
	if s.Verbose != "" {
		return s.Verbose
	}
	return strconv.FormatFloat(s.Value, 'f', 2, 64)
}

// Parse extracts a numeric score from a scorer output line. Lines in
// multi-bleu form ("BLEU = 28.1, 60.1/...") and bare numbers are both
// accepted.
func Parse(line string) Score {
	line = strings.TrimSpace(line)
	if line == "" {
		return Score{}
	}
	s := Score{Verbose: line}
	numeric := line
	if i := strings.Index(line, "="); i >= 0 {
		numeric = line[i+1:]
	}
	numeric = strings.TrimSpace(numeric)
	if i := strings.IndexAny(numeric, ", "); i >= 0 {
		numeric = numeric[:i]
	}
	v, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return Score{}
	}
	s.Value = v
	s.Valid = true
	return s
}

// Factors2Word scores factored hypotheses against a word-level
// reference by shelling out to a post-processing script. The script is
// invoked as (lang, hypFile, multiHypFile, refFile) with the hypothesis
// text piped on stdin; its last non-empty output line is the score.
type Factors2Word struct {
	Script string
}

// Compute runs the external scorer. The language tag is the reference
// file's final extension. A script that runs but emits no usable line
// yields the empty Score, not an error; a broken evaluation tool must
// not kill the run that produced the hypotheses.
func (f *Factors2Word) Compute(ctx context.Context, hypFile, multiHypFile, refFile string) (Score, error) {
	lang := refFile
	if i := strings.LastIndex(refFile, "."); i >= 0 {
		lang = refFile[i+1:]
	}

	hyp, err := os.ReadFile(hypFile)
	if err != nil {
		metrics.ExternalScorerRuns.WithLabelValues("error").Inc()
		return Score{}, fmt.Errorf("external scorer: read hypotheses: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.Script, lang, hypFile, multiHypFile, refFile)
	cmd.Stdin = bytes.NewReader(bytes.TrimRight(hyp, "\n"))

	out, err := cmd.Output()
	if err != nil {
		metrics.ExternalScorerRuns.WithLabelValues("error").Inc()
		return Score{}, fmt.Errorf("external scorer: run %s: %w", f.Script, err)
	}

	last := lastNonEmptyLine(string(out))
	score := Parse(last)
	if !score.Valid {
		metrics.ExternalScorerRuns.WithLabelValues("empty").Inc()
		return Score{}, nil
	}
	metrics.ExternalScorerRuns.WithLabelValues("ok").Inc()
	return score, nil
}

func lastNonEmptyLine(out string) string {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
