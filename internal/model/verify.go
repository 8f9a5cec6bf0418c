package model

import (
	"errors"
	"fmt"
	"os"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// ErrEmptyVocabulary is returned for a ModelProto without pieces.
var ErrEmptyVocabulary = errors.New("sentencepiece model has no pieces")

// Summary describes a serialized SentencePiece model without starting an
// engine for it.
type Summary struct {
	Path      string
	SHA256    string
	Pieces    int
	ModelType string
	Counts    map[string]int
}

// Verify parses path as a SentencePiece ModelProto.
func Verify(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("read model: %w", err)
	}

	var mp gosp.ModelProto
	if err := proto.Unmarshal(data, &mp); err != nil {
		return Summary{}, fmt.Errorf("parse model %s: %w", path, err)
	}

	if len(mp.GetPieces()) == 0 {
		return Summary{}, fmt.Errorf("%s: %w", path, ErrEmptyVocabulary)
	}

	sum, err := fileSHA256(path)
	if err != nil {
		return Summary{}, err
	}

	counts := make(map[string]int)
	for _, p := range mp.GetPieces() {
		counts[p.GetType().String()]++
	}

	return Summary{
		Path:      path,
		SHA256:    sum,
		Pieces:    len(mp.GetPieces()),
		ModelType: mp.GetTrainerSpec().GetModelType().String(),
		Counts:    counts,
	}, nil
}
