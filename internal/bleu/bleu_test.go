package bleu

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		value float64
		valid bool
	}{
		{"multi-bleu", "BLEU = 28.14, 60.1/34.2/21.9/14.6 (BP=1.000)", 28.14, true},
		{"bare number", "23.5", 23.5, true},
		{"padded", "  41.02  ", 41.02, true},
		{"empty", "", 0, false},
		{"garbage", "no score here", 0, false},
		{"equals no number", "BLEU = n/a", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.line)
			if got.Valid != tt.valid {
				t.Fatalf("Parse(%q).Valid = %v, want %v", tt.line, got.Valid, tt.valid)
			}
			if got.Valid && got.Value != tt.value {
				t.Errorf("Parse(%q).Value = %f, want %f", tt.line, got.Value, tt.value)
			}
		})
	}
}

func TestScoreString(t *testing.T) {
	if got := (Score{}).String(); got != "0.0" {
		t.Errorf("zero score renders %q, want \"0.0\"", got)
	}
	s := Score{Value: 28.14, Verbose: "BLEU = 28.14, ...", Valid: true}
	if got := s.String(); got != "BLEU = 28.14, ..." {
		t.Errorf("verbose score renders %q", got)
	}
	if got := (Score{Value: 12.3, Valid: true}).String(); got != "12.30" {
		t.Errorf("numeric score renders %q, want \"12.30\"", got)
	}
}

// writeScript drops an executable shell script into dir.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not runnable on windows")
	}
	path := filepath.Join(dir, "scorer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompute(t *testing.T) {
	dir := t.TempDir()
	hyp := filepath.Join(dir, "out.tok")
	ref := filepath.Join(dir, "ref.de")
	for _, p := range []string{hyp, ref} {
		if err := os.WriteFile(p, []byte("ein satz\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// echoes its language argument, then a log line, then the score
	script := writeScript(t, dir, `echo "lang: $1"
echo "scoring..."
echo "BLEU = 31.50, 64.0/38.0/25.0/17.0"
`)

	f := &Factors2Word{Script: script}
	score, err := f.Compute(context.Background(), hyp, hyp, ref)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !score.Valid {
		t.Fatal("expected a valid score")
	}
	if score.Value != 31.50 {
		t.Errorf("score %f, want 31.50", score.Value)
	}
}

func TestCompute_LanguageFromReference(t *testing.T) {
	dir := t.TempDir()
	hyp := filepath.Join(dir, "out.tok")
	ref := filepath.Join(dir, "ref.fr")
	for _, p := range []string{hyp, ref} {
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// score only when the language tag was derived from the reference
	script := writeScript(t, dir, `if [ "$1" = "fr" ]; then echo "10.0"; fi`)

	f := &Factors2Word{Script: script}
	score, err := f.Compute(context.Background(), hyp, hyp, ref)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !score.Valid || score.Value != 10.0 {
		t.Errorf("got %+v, want value 10.0 from lang fr", score)
	}
}

func TestCompute_EmptyOutputIsSoftFailure(t *testing.T) {
	dir := t.TempDir()
	hyp := filepath.Join(dir, "out.tok")
	ref := filepath.Join(dir, "ref.de")
	for _, p := range []string{hyp, ref} {
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	script := writeScript(t, dir, `true`)
	f := &Factors2Word{Script: script}
	score, err := f.Compute(context.Background(), hyp, hyp, ref)
	if err != nil {
		t.Fatalf("empty scorer output must not be an error: %v", err)
	}
	if score.Valid {
		t.Errorf("expected the zero score, got %+v", score)
	}
	if score.String() != "0.0" {
		t.Errorf("zero score renders %q", score.String())
	}
}

func TestCompute_HardFailures(t *testing.T) {
	dir := t.TempDir()
	hyp := filepath.Join(dir, "out.tok")
	ref := filepath.Join(dir, "ref.de")
	if err := os.WriteFile(hyp, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &Factors2Word{Script: writeScript(t, dir, `exit 3`)}
	if _, err := f.Compute(context.Background(), hyp, hyp, ref); err == nil {
		t.Error("expected error for non-zero script exit")
	}

	f = &Factors2Word{Script: filepath.Join(dir, "nonexistent.sh")}
	if _, err := f.Compute(context.Background(), hyp, hyp, ref); err == nil {
		t.Error("expected error for missing script")
	}

	f = &Factors2Word{Script: writeScript(t, dir, `echo 1.0`)}
	if _, err := f.Compute(context.Background(), filepath.Join(dir, "missing.tok"), hyp, ref); err == nil {
		t.Error("expected error for unreadable hypothesis file")
	}
}
