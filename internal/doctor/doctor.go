// Package doctor provides preflight checks for a tokenizer setup.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/example/go-sptok/internal/model"
	"github.com/example/go-sptok/internal/text"
	"github.com/example/go-sptok/internal/tokenizer"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// DefaultSample is the text used for the round-trip check.
const DefaultSample = "Hello world."

// Config holds the inputs of each doctor check.
type Config struct {
	// ModelPath is the SentencePiece model to check.
	ModelPath string
	// Options are the load options the model will run with.
	Options tokenizer.ModelOptions
	// Encoder carries the configured prefix and suffix tokens.
	Encoder tokenizer.EncoderOptions
	// Sample overrides DefaultSample.
	Sample string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(w io.Writer, check string, err error) {
	r.failures = append(r.failures, fmt.Sprintf("%s: %v", check, err))
	fmt.Fprintf(w, "%s %s: %v\n", FailMark, check, err)
}

// Run executes the checks in order and writes human-readable output to w.
// Checks that depend on a failed one are not attempted.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- model file -------------------------------------------------------
	if cfg.ModelPath == "" {
		res.fail(w, "tokenizer model", tokenizer.ErrEmptyPath)
		return res
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		res.fail(w, "tokenizer model", err)
		return res
	}

	sum, err := model.Verify(cfg.ModelPath)
	if err != nil {
		res.fail(w, "tokenizer model", err)
		return res
	}

	fmt.Fprintf(w, "%s tokenizer model: %s (%s, %d pieces, sha256=%s)\n",
		PassMark, sum.Path, sum.ModelType, sum.Pieces, sum.SHA256[:12])

	// ---- engine -----------------------------------------------------------
	m, err := tokenizer.LoadModel(cfg.ModelPath, cfg.Options)
	if err != nil {
		res.fail(w, "engine", err)
		return res
	}

	fmt.Fprintf(w, "%s engine: %s (vocabulary size %d)\n", PassMark, m.Engine(), m.VocabularySize())

	// ---- reserved indices -------------------------------------------------
	if err := checkReserved(m); err != nil {
		res.fail(w, "reserved indices", err)
	} else {
		fmt.Fprintf(w, "%s reserved indices: unk=%d bos=%d eos=%d pad=%d\n",
			PassMark, m.UnkIdx(), m.BOSIdx(), m.EOSIdx(), m.PadIdx())
	}

	// ---- round trip -------------------------------------------------------
	enc, err := tokenizer.NewEncoder(m, cfg.Encoder)
	if err != nil {
		res.fail(w, "encoder", err)
		return res
	}

	if m.Engine() == tokenizer.EngineNone {
		fmt.Fprintf(w, "%s round trip: skipped (no segmentation engine for %s model)\n", PassMark, m.ModelType())
		return res
	}

	sample := cfg.Sample
	if sample == "" {
		sample = DefaultSample
	}

	if err := roundTrip(enc, tokenizer.NewDecoder(m), sample); err != nil {
		res.fail(w, "round trip", err)
	} else {
		fmt.Fprintf(w, "%s round trip: %q\n", PassMark, sample)
	}

	return res
}

// checkReserved verifies that every reserved index is inside the vocabulary
// and that enabled BOS/EOS insertion has a piece to insert.
func checkReserved(m *tokenizer.Model) error {
	size := int32(m.VocabularySize())

	for name, idx := range map[string]int32{"unk": m.UnkIdx(), "bos": m.BOSIdx(), "eos": m.EOSIdx(), "pad": m.PadIdx()} {
		if idx >= size || idx < -1 {
			return fmt.Errorf("%s index %d outside vocabulary of %d", name, idx, size)
		}
	}

	if m.Options().AddBOS() && m.BOSIdx() < 0 {
		return errors.New("add_bos is set but the model has no begin-of-sequence piece")
	}

	if m.Options().AddEOS() && m.EOSIdx() < 0 {
		return errors.New("add_eos is set but the model has no end-of-sequence piece")
	}

	return nil
}

func roundTrip(enc *tokenizer.Encoder, dec *tokenizer.Decoder, sample string) error {
	ids, err := enc.Encode(sample)
	if err != nil {
		return err
	}

	got, err := dec.Decode(ids)
	if err != nil {
		return err
	}

	if want := text.NFKC(sample); got != want {
		return fmt.Errorf("decode(encode(%q)) = %q", want, got)
	}

	return nil
}
