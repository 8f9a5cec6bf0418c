package main

import (
	"os"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestEncodeCmd(t *testing.T) {
	model := unigramModelPath(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"args", "", []string{"encode", "hello", "world"}, "4 5"},
		{"bos and eos", "", []string{"--add-bos", "--add-eos", "encode", "hello world"}, "1 4 5 2"},
		{"reverse", "", []string{"--reverse", "encode", "hello world"}, "5 4"},
		{"pieces", "", []string{"encode", "--pieces", "hello world"}, "▁hello ▁world"},
		{"stdin", "hello world\r\n", []string{"encode"}, "4 5"},
		{"prefix token", "", []string{"--control-token", "<lang>", "--prefix-token", "<lang>", "encode", "hello"}, "16 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--tokenizer-model", model}, tt.args...)

			out, err := runCLI(t, tt.stdin, args...)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeCmd_SplitSentences(t *testing.T) {
	out, err := runCLI(t, "", "--tokenizer-model", unigramModelPath(t), "encode", "--split-sentences", "hello. world.")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
		t.Errorf("want one line per sentence, got %q", out)
	}
}

func TestEncodeCmd_EmptyInputFails(t *testing.T) {
	if _, err := runCLI(t, "  \n", "--tokenizer-model", unigramModelPath(t), "encode"); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestEncodeCmd_UnknownPrefixTokenFails(t *testing.T) {
	_, err := runCLI(t, "", "--tokenizer-model", unigramModelPath(t), "--prefix-token", "<nope>", "encode", "hello")
	if err == nil {
		t.Fatal("expected error for a prefix token outside the vocabulary")
	}
}

func TestDecodeCmd(t *testing.T) {
	model := unigramModelPath(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"args", "", []string{"decode", "1", "4", "5", "2"}, "hello world"},
		{"stdin", "4 5\n", []string{"decode"}, "hello world"},
		{"reverse", "", []string{"--reverse", "decode", "5", "4"}, "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--tokenizer-model", model}, tt.args...)

			out, err := runCLI(t, tt.stdin, args...)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeCmd_Errors(t *testing.T) {
	model := unigramModelPath(t)

	for _, args := range [][]string{
		{"decode", "abc"},
		{"decode", "999"},
	} {
		if _, err := runCLI(t, "", append([]string{"--tokenizer-model", model}, args...)...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", " 42 ", "-1"})
	if err != nil {
		t.Fatalf("parseIDs: %v", err)
	}

	if formatIDs(ids) != "1 42 -1" {
		t.Errorf("round trip = %q", formatIDs(ids))
	}

	if _, err := parseIDs([]string{"99999999999"}); err == nil {
		t.Error("expected error for an index outside int32")
	}
}
