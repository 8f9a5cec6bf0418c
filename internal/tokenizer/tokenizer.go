// Package tokenizer wraps pure-Go SentencePiece engines behind a model handle
// that owns the loaded processor, plus an encoder and decoder built on top of
// it. Segmentation itself is delegated to go-sentencepiece-encoder. BPE
// models load for lookups and decoding but have no segmentation engine.
package tokenizer

// Tokenizer encodes text into SentencePiece token indices.
type Tokenizer interface {
	// Encode tokenizes text and returns vocabulary indices.
	Encode(text string) ([]int32, error)
}

// Detokenizer turns vocabulary indices back into text.
type Detokenizer interface {
	Decode(ids []int32) (string, error)
}

var (
	_ Tokenizer   = (*Encoder)(nil)
	_ Detokenizer = (*Decoder)(nil)
)
