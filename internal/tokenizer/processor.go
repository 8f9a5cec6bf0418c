package tokenizer

import (
	"errors"
	"fmt"
	"os"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// ErrNoUnknownPiece is returned for models without an UNKNOWN piece.
var ErrNoUnknownPiece = errors.New("sentencepiece model has no unknown piece")

// ErrNoEngine is returned when text is encoded with a model that was loaded
// without a segmentation engine: BPE models under EngineAuto, or any model
// under EngineNone.
var ErrNoEngine = errors.New("model has no segmentation engine")

// PieceKind classifies a vocabulary entry.
type PieceKind string

const (
	KindNormal      PieceKind = "normal"
	KindUnknown     PieceKind = "unknown"
	KindControl     PieceKind = "control"
	KindUserDefined PieceKind = "user_defined"
	KindByte        PieceKind = "byte"
	KindUnused      PieceKind = "unused"
)

// pieceTypeByte is the BYTE piece type (6); older generated protos do not
// name it.
const pieceTypeByte gosp.ModelProto_SentencePiece_Type = 6

func kindOf(t gosp.ModelProto_SentencePiece_Type) PieceKind {
	switch t {
	case gosp.ModelProto_SentencePiece_UNKNOWN:
		return KindUnknown
	case gosp.ModelProto_SentencePiece_CONTROL:
		return KindControl
	case gosp.ModelProto_SentencePiece_USER_DEFINED:
		return KindUserDefined
	case gosp.ModelProto_SentencePiece_UNUSED:
		return KindUnused
	case pieceTypeByte:
		return KindByte
	default:
		return KindNormal
	}
}

// engine is the segmentation backend a processor delegates to.
type engine interface {
	encode(text string) ([]int32, error)
	name() Engine
}

type unigramEngine struct {
	sp gosp.Sentencepiece
}

func (e *unigramEngine) encode(text string) ([]int32, error) {
	return e.sp.TokenizeToIDs(text), nil
}

func (e *unigramEngine) name() Engine { return EngineUnigram }

// processor is the loaded vocabulary plus the engine that segments text
// against it. It is never shared between two Model values.
type processor struct {
	pieces      []string
	kinds       []PieceKind
	index       map[string]int32
	unk         int32
	bos         int32
	eos         int32
	pad         int32
	modelType   string
	dummyPrefix bool
	engine      engine // nil under EngineNone
}

// newProcessor parses a serialized ModelProto, appends the requested control
// tokens and starts the engine. path is the file data was read from, or empty
// when the model only exists in memory.
func newProcessor(path string, data []byte, opts ModelOptions) (*processor, error) {
	var mp gosp.ModelProto
	if err := proto.Unmarshal(data, &mp); err != nil {
		return nil, fmt.Errorf("unmarshal sentencepiece model: %w", err)
	}

	modified := appendControlTokens(&mp, opts.ControlTokens())

	p := &processor{
		pieces:      make([]string, len(mp.GetPieces())),
		kinds:       make([]PieceKind, len(mp.GetPieces())),
		index:       make(map[string]int32, len(mp.GetPieces())),
		unk:         -1,
		modelType:   mp.GetTrainerSpec().GetModelType().String(),
		dummyPrefix: mp.GetNormalizerSpec().GetAddDummyPrefix(),
	}

	for i, piece := range mp.GetPieces() {
		p.pieces[i] = piece.GetPiece()
		p.kinds[i] = kindOf(piece.GetType())

		if _, dup := p.index[piece.GetPiece()]; !dup {
			p.index[piece.GetPiece()] = int32(i)
		}

		if p.kinds[i] == KindUnknown && p.unk < 0 {
			p.unk = int32(i)
		}
	}

	if p.unk < 0 {
		return nil, ErrNoUnknownPiece
	}

	ts := mp.GetTrainerSpec()
	p.bos = p.controlIndex(ts.GetBosPiece())
	p.eos = p.controlIndex(ts.GetEosPiece())
	p.pad = p.controlIndex(ts.GetPadPiece())

	kind, err := resolveEngine(opts.Engine(), mp.GetTrainerSpec().GetModelType())
	if err != nil {
		return nil, err
	}

	if kind == EngineNone {
		return p, nil
	}

	if modified || path == "" {
		out, err := proto.Marshal(&mp)
		if err != nil {
			return nil, fmt.Errorf("marshal sentencepiece model: %w", err)
		}

		p.engine, err = withTempModel(out, startUnigram)
		if err != nil {
			return nil, err
		}

		return p, nil
	}

	p.engine, err = startUnigram(path)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// appendControlTokens adds each token not already in the vocabulary as a
// CONTROL piece and reports whether the model changed.
func appendControlTokens(mp *gosp.ModelProto, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}

	seen := make(map[string]struct{}, len(mp.GetPieces())+len(tokens))
	for _, piece := range mp.GetPieces() {
		seen[piece.GetPiece()] = struct{}{}
	}

	modified := false

	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}

		seen[tok] = struct{}{}
		mp.Pieces = append(mp.Pieces, &gosp.ModelProto_SentencePiece{
			Piece: proto.String(tok),
			Score: proto.Float32(0),
			Type:  gosp.ModelProto_SentencePiece_CONTROL.Enum(),
		})
		modified = true
	}

	return modified
}

// resolveEngine maps the requested engine to the one to start. BPE merges
// are not implemented by the unigram engine, so auto leaves BPE models
// without one; an explicit EngineUnigram still forces it.
func resolveEngine(want Engine, modelType gosp.TrainerSpec_ModelType) (Engine, error) {
	switch want {
	case EngineAuto, "":
		if modelType == gosp.TrainerSpec_BPE {
			return EngineNone, nil
		}

		return EngineUnigram, nil
	case EngineUnigram, EngineNone:
		return want, nil
	default:
		return "", fmt.Errorf("invalid engine %q", want)
	}
}

func startUnigram(path string) (engine, error) {
	sp, err := gosp.NewSentencepieceFromFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("start unigram engine: %w", err)
	}

	return &unigramEngine{sp: sp}, nil
}

// withTempModel writes data to a temporary file for the duration of fn.
// The engine only exposes a file-path constructor.
func withTempModel(data []byte, fn func(path string) (engine, error)) (engine, error) {
	f, err := os.CreateTemp("", "sp-*.model")
	if err != nil {
		return nil, fmt.Errorf("create temp sentencepiece file: %w", err)
	}

	defer func() { _ = os.Remove(f.Name()) }() // best-effort temp file cleanup

	_, err = f.Write(data)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write tokenizer model bytes: %w", err)
	}

	err = f.Close()
	if err != nil {
		return nil, fmt.Errorf("close tokenizer temp file: %w", err)
	}

	return fn(f.Name())
}

// controlIndex returns the index of piece if it is a CONTROL piece, else -1.
func (p *processor) controlIndex(piece string) int32 {
	idx, ok := p.index[piece]
	if !ok || p.kinds[idx] != KindControl {
		return -1
	}

	return idx
}

func (p *processor) pieceToID(piece string) int32 {
	if idx, ok := p.index[piece]; ok {
		return idx
	}

	return p.unk
}

func (p *processor) size() int { return len(p.pieces) }

// ErrEnginePanic wraps a panic raised inside the segmentation engine.
var ErrEnginePanic = errors.New("segmentation engine panicked")

// segment runs the engine on text. A panic inside the engine is returned as
// ErrEnginePanic.
func (p *processor) segment(text string) (ids []int32, err error) {
	if p.engine == nil {
		return nil, fmt.Errorf("%w (model type %s)", ErrNoEngine, p.modelType)
	}

	defer func() {
		if r := recover(); r != nil {
			ids, err = nil, fmt.Errorf("%w: %s: %v", ErrEnginePanic, p.engine.name(), r)
		}
	}()

	return p.engine.encode(text)
}

func (p *processor) engineName() Engine {
	if p.engine == nil {
		return EngineNone
	}

	return p.engine.name()
}
