package tokenizer

import (
	"errors"
	"fmt"
	"iter"
	"os"
)

var (
	// ErrEmptyPath is returned when LoadModel is called with an empty path.
	ErrEmptyPath = errors.New("tokenizer model path must not be empty")
	// ErrEmptyData is returned when LoadModelFromBytes is called without data.
	ErrEmptyData = errors.New("tokenizer model data must not be empty")
	// ErrIndexOutOfRange is returned for indices outside [0, VocabularySize).
	ErrIndexOutOfRange = errors.New("token index out of range")
)

// noCopy makes go vet's copylocks check flag copies of the struct that
// embeds it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Model is a handle to a loaded SentencePiece model. It owns its processor
// exclusively and must only be used through the pointer returned by
// LoadModel. All methods are read-only and safe for concurrent use.
type Model struct {
	_    noCopy
	proc *processor
	opts ModelOptions
}

// LoadModel reads a serialized SentencePiece model from path.
func LoadModel(path string, opts ModelOptions) (*Model, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model %q: %w", path, err)
	}

	proc, err := newProcessor(path, data, opts)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model %q: %w", path, err)
	}

	return &Model{proc: proc, opts: opts}, nil
}

// LoadModelFromBytes loads a model from its serialized ModelProto bytes.
func LoadModelFromBytes(data []byte, opts ModelOptions) (*Model, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	proc, err := newProcessor("", data, opts)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model: %w", err)
	}

	return &Model{proc: proc, opts: opts}, nil
}

// TokenToIndex returns the index of token, or UnkIdx if the vocabulary does
// not contain it.
func (m *Model) TokenToIndex(token string) int32 {
	return m.proc.pieceToID(token)
}

// IndexToToken returns the piece stored at idx.
func (m *Model) IndexToToken(idx int32) (string, error) {
	if idx < 0 || int(idx) >= m.proc.size() {
		return "", fmt.Errorf("%w: %d (vocabulary size %d)", ErrIndexOutOfRange, idx, m.proc.size())
	}

	return m.proc.pieces[idx], nil
}

// UnkIdx returns the index of the unknown piece.
func (m *Model) UnkIdx() int32 { return m.proc.unk }

// BOSIdx returns the begin-of-sequence index, or -1 if the model has none.
func (m *Model) BOSIdx() int32 { return m.proc.bos }

// EOSIdx returns the end-of-sequence index, or -1 if the model has none.
func (m *Model) EOSIdx() int32 { return m.proc.eos }

// PadIdx returns the padding index, or -1 if the model has none.
func (m *Model) PadIdx() int32 { return m.proc.pad }

// VocabularySize includes control tokens added at load time.
func (m *Model) VocabularySize() int { return m.proc.size() }

// Options returns the options the model was loaded with.
func (m *Model) Options() ModelOptions { return m.opts }

// Engine reports the backend actually in use, never EngineAuto.
func (m *Model) Engine() Engine { return m.proc.engineName() }

// ModelType is the trainer's model type, e.g. "UNIGRAM" or "BPE".
func (m *Model) ModelType() string { return m.proc.modelType }

// Kind reports the piece kind at idx.
func (m *Model) Kind(idx int32) (PieceKind, error) {
	if idx < 0 || int(idx) >= m.proc.size() {
		return "", fmt.Errorf("%w: %d (vocabulary size %d)", ErrIndexOutOfRange, idx, m.proc.size())
	}

	return m.proc.kinds[idx], nil
}

// IsControl reports whether idx is a control piece. Out-of-range indices are
// not control pieces.
func (m *Model) IsControl(idx int32) bool {
	k, err := m.Kind(idx)
	return err == nil && k == KindControl
}

// Piece is one vocabulary entry.
type Piece struct {
	Index int32
	Text  string
	Kind  PieceKind
}

// Pieces iterates over the vocabulary in index order.
func (m *Model) Pieces() iter.Seq[Piece] {
	return func(yield func(Piece) bool) {
		for i, text := range m.proc.pieces {
			if !yield(Piece{Index: int32(i), Text: text, Kind: m.proc.kinds[i]}) {
				return
			}
		}
	}
}
