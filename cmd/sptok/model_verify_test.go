package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return data
}

func TestModelVerifyCmd(t *testing.T) {
	model := unigramModelPath(t)

	out, err := runCLI(t, "", "model", "verify", model)
	if err != nil {
		t.Fatalf("model verify: %v", err)
	}

	for _, want := range []string{"UNIGRAM model with 16 pieces", "CONTROL", "NORMAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestModelVerifyCmd_UsesConfiguredPath(t *testing.T) {
	out, err := runCLI(t, "", "--tokenizer-model", unigramModelPath(t), "model", "verify")
	if err != nil {
		t.Fatalf("model verify: %v", err)
	}

	if !strings.Contains(out, "16 pieces") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestModelVerifyCmd_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenizer.model")
	writeFile(t, path, "definitely not protobuf")

	if _, err := runCLI(t, "", "model", "verify", path); err == nil {
		t.Fatal("expected error for a malformed model")
	}
}
