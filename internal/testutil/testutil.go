// Package testutil provides synthetic SentencePiece models and skip helpers
// shared by the package tests.
//
// Typical usage:
//
//	func TestLookup(t *testing.T) {
//	    path := testutil.WriteModel(t, testutil.UnigramModel())
//	    m, err := tokenizer.LoadModel(path, tokenizer.NewModelOptions())
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// Indices of the fixed unigram test vocabulary.
const (
	UnigramUnk   = 0
	UnigramBOS   = 1
	UnigramEOS   = 2
	UnigramSep   = 3
	UnigramHello = 4
	UnigramWorld = 5
	UnigramBang  = 6
)

// Piece describes one vocabulary entry of a synthetic model.
type Piece struct {
	Text  string
	Score float32
	Type  gosp.ModelProto_SentencePiece_Type
}

func normal(text string, score float32) Piece {
	return Piece{Text: text, Score: score, Type: gosp.ModelProto_SentencePiece_NORMAL}
}

func control(text string) Piece {
	return Piece{Text: text, Type: gosp.ModelProto_SentencePiece_CONTROL}
}

// byteType is the BYTE piece type value.
const byteType gosp.ModelProto_SentencePiece_Type = 6

// NewModel assembles a ModelProto from pieces.
func NewModel(modelType gosp.TrainerSpec_ModelType, dummyPrefix bool, pieces []Piece) *gosp.ModelProto {
	mp := &gosp.ModelProto{
		TrainerSpec: &gosp.TrainerSpec{
			ModelType: modelType.Enum(),
			UnkId:     proto.Int32(0),
			BosId:     proto.Int32(1),
			EosId:     proto.Int32(2),
			PadId:     proto.Int32(-1),
		},
		NormalizerSpec: &gosp.NormalizerSpec{
			AddDummyPrefix:         proto.Bool(dummyPrefix),
			RemoveExtraWhitespaces: proto.Bool(false),
		},
	}

	for _, p := range pieces {
		mp.Pieces = append(mp.Pieces, &gosp.ModelProto_SentencePiece{
			Piece: proto.String(p.Text),
			Score: proto.Float32(p.Score),
			Type:  p.Type.Enum(),
		})
	}

	return mp
}

// UnigramModel is a small UNIGRAM vocabulary in which "hello world" encodes
// to [UnigramHello, UnigramWorld].
func UnigramModel() *gosp.ModelProto {
	return NewModel(gosp.TrainerSpec_UNIGRAM, true, []Piece{
		{Text: "<unk>", Type: gosp.ModelProto_SentencePiece_UNKNOWN},
		control("<s>"),
		control("</s>"),
		normal("▁", -2),
		normal("▁hello", -1),
		normal("▁world", -1),
		{Text: "<0x21>", Type: byteType},
		normal("▁he", -3),
		normal("llo", -3),
		normal("h", -5),
		normal("e", -5),
		normal("l", -5),
		normal("o", -5),
		normal("w", -5),
		normal("r", -5),
		normal("d", -5),
	})
}

// BPEModel is a small BPE vocabulary without a dummy prefix. It carries a
// <pad> control piece at index 3 and loads without a segmentation engine
// unless one is forced.
func BPEModel() *gosp.ModelProto {
	return NewModel(gosp.TrainerSpec_BPE, false, []Piece{
		{Text: "<unk>", Type: gosp.ModelProto_SentencePiece_UNKNOWN},
		control("<s>"),
		control("</s>"),
		control("<pad>"),
		normal("he", -1),
		normal("ll", -2),
		normal("hell", -3),
		normal("hello", -4),
		normal("▁w", -5),
		normal("or", -6),
		normal("▁wor", -7),
		normal("▁world", -8),
		normal("h", -9),
		normal("e", -9),
		normal("l", -9),
		normal("o", -9),
		normal("w", -9),
		normal("r", -9),
		normal("d", -9),
		normal("▁", -9),
	})
}

// ModelBytes serializes mp.
func ModelBytes(tb testing.TB, mp *gosp.ModelProto) []byte {
	tb.Helper()

	data, err := proto.Marshal(mp)
	if err != nil {
		tb.Fatalf("marshal model: %v", err)
	}

	return data
}

// WriteModel serializes mp into a fresh temp dir and returns the file path.
func WriteModel(tb testing.TB, mp *gosp.ModelProto) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "tokenizer.model")
	if err := os.WriteFile(path, ModelBytes(tb, mp), 0o600); err != nil {
		tb.Fatalf("write model: %v", err)
	}

	return path
}

// RequireTokenizerModel returns the path of a real models/tokenizer.model
// found by walking up from the working directory, or skips the test. The
// SPTOK_PATHS_TOKENIZER_MODEL environment variable overrides the search.
func RequireTokenizerModel(tb testing.TB) string {
	tb.Helper()

	if p := os.Getenv("SPTOK_PATHS_TOKENIZER_MODEL"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}

		tb.Skipf("tokenizer model not found at SPTOK_PATHS_TOKENIZER_MODEL=%q", p)

		return ""
	}

	dir, err := filepath.Abs(".")
	if err != nil {
		tb.Skipf("abs path: %v", err)
		return ""
	}

	for {
		candidate := filepath.Join(dir, "models", "tokenizer.model")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	tb.Skipf("models/tokenizer.model not found; run `sptok model download`")

	return ""
}
