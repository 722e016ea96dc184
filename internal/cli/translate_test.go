package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("localhost:3000")
	if err != nil {
		t.Fatalf("splitHostPort failed: %v", err)
	}
	if host != "localhost" || port != 3000 {
		t.Errorf("got %s:%d, want localhost:3000", host, port)
	}

	for _, addr := range []string{"localhost", "host:abc", ""} {
		if _, _, err := splitHostPort(addr); err == nil {
			t.Errorf("expected error for %q", addr)
		}
	}
}

func writeTestFixtures(t *testing.T, dir string) (modelPath, srcPath, trgPath string) {
	t.Helper()

	modelPath = filepath.Join(dir, "model.json")
	srcPath = filepath.Join(dir, "src.json")
	trgPath = filepath.Join(dir, "trg.json")

	files := map[string]string{
		modelPath: `{"vocab_size": 4, "floor": -20, "table": {
			"0": {"2": -0.1, "3": -1.0},
			"2": {"3": -0.1, "0": -5},
			"3": {"0": -0.1}
		}}`,
		srcPath: `{"a": 2, "b": 3}`,
		trgPath: `{"x": 2, "y": 3}`,
	}
	for path, body := range files {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return modelPath, srcPath, trgPath
}

func TestRunTranslate(t *testing.T) {
	dir := t.TempDir()
	modelPath, srcPath, trgPath := writeTestFixtures(t, dir)

	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")
	alignPath := filepath.Join(dir, "align.arrow")
	if err := os.WriteFile(inPath, []byte("a b\nb a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	saved := translateOpts
	defer func() { translateOpts = saved }()

	translateOpts.models = []string{modelPath}
	translateOpts.srcVocab = srcPath
	translateOpts.trgVocab = trgPath
	translateOpts.input = inPath
	translateOpts.output = outPath
	translateOpts.alignOut = alignPath
	translateOpts.flightTo = ""
	translateOpts.beamSize = 3
	translateOpts.maxLen = 10
	translateOpts.nBest = 1
	translateOpts.workers = 1

	translateCmd.SetContext(context.Background())
	if err := runTranslate(translateCmd, nil); err != nil {
		t.Fatalf("runTranslate failed: %v", err)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d output lines, want 2: %q", len(lines), string(out))
	}
	if lines[0] != "x y" {
		t.Errorf("first translation %q, want \"x y\"", lines[0])
	}

	if _, err := os.Stat(alignPath); err != nil {
		t.Errorf("alignment export missing: %v", err)
	}
}

func TestRunTranslate_BadModel(t *testing.T) {
	dir := t.TempDir()
	_, srcPath, trgPath := writeTestFixtures(t, dir)

	saved := translateOpts
	defer func() { translateOpts = saved }()

	translateOpts.models = []string{filepath.Join(dir, "missing.json")}
	translateOpts.srcVocab = srcPath
	translateOpts.trgVocab = trgPath
	translateOpts.beamSize = 3
	translateOpts.maxLen = 10
	translateOpts.nBest = 1

	translateCmd.SetContext(context.Background())
	if err := runTranslate(translateCmd, nil); err == nil {
		t.Fatal("expected error for missing model file")
	}
}
