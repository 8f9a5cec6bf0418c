package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-sptok/internal/testutil"
	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
)

func TestVerify_SyntheticModel(t *testing.T) {
	path := testutil.WriteModel(t, testutil.UnigramModel())

	sum, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if sum.Pieces != 16 {
		t.Errorf("Pieces = %d, want 16", sum.Pieces)
	}
	if sum.ModelType != "UNIGRAM" {
		t.Errorf("ModelType = %q, want UNIGRAM", sum.ModelType)
	}
	if sum.Counts["CONTROL"] != 2 || sum.Counts["UNKNOWN"] != 1 {
		t.Errorf("Counts = %v", sum.Counts)
	}
	if !isSHA256Hex(sum.SHA256) {
		t.Errorf("SHA256 = %q", sum.SHA256)
	}
}

func TestVerify_Errors(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.model")
	if err := os.WriteFile(garbage, []byte("not a model"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Verify(garbage); err == nil {
		t.Error("expected parse error")
	}

	if _, err := Verify(filepath.Join(dir, "missing.model")); err == nil {
		t.Error("expected read error")
	}

	empty := testutil.WriteModel(t, testutil.NewModel(gosp.TrainerSpec_BPE, false, nil))
	if _, err := Verify(empty); !errors.Is(err, ErrEmptyVocabulary) {
		t.Errorf("expected ErrEmptyVocabulary, got: %v", err)
	}
}
