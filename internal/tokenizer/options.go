package tokenizer

import (
	"fmt"
	"slices"
	"strings"
)

// Engine selects the segmentation backend used by a Model.
type Engine string

// EngineAuto runs UNIGRAM, CHAR and WORD models on the unigram engine and
// loads BPE models without one. EngineNone loads the vocabulary for lookups
// and decoding only.
const (
	EngineAuto    Engine = "auto"
	EngineUnigram Engine = "unigram"
	EngineNone    Engine = "none"
)

// ParseEngine normalizes an engine name. An empty string means EngineAuto.
func ParseEngine(raw string) (Engine, error) {
	e := Engine(strings.ToLower(strings.TrimSpace(raw)))
	switch e {
	case "":
		return EngineAuto, nil
	case EngineAuto, EngineUnigram, EngineNone:
		return e, nil
	default:
		return "", fmt.Errorf("invalid engine %q (expected %s|%s|%s)", raw, EngineAuto, EngineUnigram, EngineNone)
	}
}

// ModelOptions configures how a Model is loaded and how its encoder shapes
// output sequences. It is a value type: every With* method returns an updated
// copy and never mutates the receiver, so options can be chained and shared.
//
// Nothing is validated here. Unknown engines and unusable control tokens are
// reported by LoadModel.
type ModelOptions struct {
	controlTokens []string
	addBOS        bool
	addEOS        bool
	reverse       bool
	engine        Engine
}

// NewModelOptions returns options with no control tokens, all flags off and
// automatic engine selection.
func NewModelOptions() ModelOptions {
	return ModelOptions{engine: EngineAuto}
}

// WithControlToken appends a control token. Order is kept and duplicates are
// allowed.
func (o ModelOptions) WithControlToken(token string) ModelOptions {
	// Clip so that appending never writes into a backing array shared with
	// another copy of o.
	o.controlTokens = append(slices.Clip(o.controlTokens), token)
	return o
}

// WithAddBOS toggles prepending the begin-of-sequence index on encode.
func (o ModelOptions) WithAddBOS(v bool) ModelOptions {
	o.addBOS = v
	return o
}

// WithAddEOS toggles appending the end-of-sequence index on encode.
func (o ModelOptions) WithAddEOS(v bool) ModelOptions {
	o.addEOS = v
	return o
}

// WithReverse toggles reversing the encoded token order.
func (o ModelOptions) WithReverse(v bool) ModelOptions {
	o.reverse = v
	return o
}

// WithEngine selects the segmentation backend.
func (o ModelOptions) WithEngine(e Engine) ModelOptions {
	o.engine = e
	return o
}

// ControlTokens returns a copy of the control tokens in insertion order.
func (o ModelOptions) ControlTokens() []string {
	return slices.Clone(o.controlTokens)
}

func (o ModelOptions) AddBOS() bool  { return o.addBOS }
func (o ModelOptions) AddEOS() bool  { return o.addEOS }
func (o ModelOptions) Reverse() bool { return o.reverse }

// Engine returns the configured engine, EngineAuto when unset.
func (o ModelOptions) Engine() Engine {
	if o.engine == "" {
		return EngineAuto
	}
	return o.engine
}
