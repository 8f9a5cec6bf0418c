package tokenizer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/example/go-sptok/internal/text"
)

// ErrUnknownToken is returned when a prefix or suffix token is not in the
// vocabulary.
var ErrUnknownToken = errors.New("token not in vocabulary")

// EncoderOptions adds fixed tokens around every encoded sequence, typically
// control tokens registered through ModelOptions.WithControlToken.
type EncoderOptions struct {
	PrefixTokens []string
	SuffixTokens []string
}

// Encoder turns text into vocabulary indices using a Model's engine and
// options.
type Encoder struct {
	model  *Model
	prefix []int32
	suffix []int32
}

// NewEncoder resolves the prefix and suffix tokens against m.
func NewEncoder(m *Model, opts EncoderOptions) (*Encoder, error) {
	prefix, err := resolveTokens(m, opts.PrefixTokens)
	if err != nil {
		return nil, fmt.Errorf("prefix: %w", err)
	}

	suffix, err := resolveTokens(m, opts.SuffixTokens)
	if err != nil {
		return nil, fmt.Errorf("suffix: %w", err)
	}

	return &Encoder{model: m, prefix: prefix, suffix: suffix}, nil
}

func resolveTokens(m *Model, tokens []string) ([]int32, error) {
	ids := make([]int32, 0, len(tokens))
	for _, tok := range tokens {
		idx := m.TokenToIndex(tok)
		if idx == m.UnkIdx() && tok != m.proc.pieces[idx] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, tok)
		}

		ids = append(ids, idx)
	}

	return ids, nil
}

// Encode returns the indices for s. The engine output is reversed first when
// the model was loaded with WithReverse, then BOS and EOS are placed at the
// ends, then the prefix and suffix tokens wrap the whole sequence. Models
// loaded without an engine fail with ErrNoEngine for non-empty s.
func (e *Encoder) Encode(s string) ([]int32, error) {
	var body []int32
	if s != "" {
		var err error
		body, err = e.model.proc.segment(text.NFKC(s))
		if err != nil {
			return nil, err
		}
	}

	opts := e.model.opts
	if opts.Reverse() {
		slices.Reverse(body)
	}

	out := make([]int32, 0, len(e.prefix)+len(body)+len(e.suffix)+2)
	out = append(out, e.prefix...)

	if opts.AddBOS() && e.model.BOSIdx() >= 0 {
		out = append(out, e.model.BOSIdx())
	}

	out = append(out, body...)

	if opts.AddEOS() && e.model.EOSIdx() >= 0 {
		out = append(out, e.model.EOSIdx())
	}

	out = append(out, e.suffix...)

	return out, nil
}

// EncodeAsPieces is Encode with every index mapped to its piece.
func (e *Encoder) EncodeAsPieces(s string) ([]string, error) {
	ids, err := e.Encode(s)
	if err != nil {
		return nil, err
	}

	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i], err = e.model.IndexToToken(id)
		if err != nil {
			return nil, err
		}
	}

	return pieces, nil
}
