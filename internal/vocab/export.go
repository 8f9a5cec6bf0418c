// Package vocab serializes a loaded tokenizer vocabulary for inspection.
package vocab

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/example/go-sptok/internal/tokenizer"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// ParseFormat normalizes an export format name. Empty means JSON.
func ParseFormat(raw string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(raw))
	switch f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML, FormatTOML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid format %q (expected %s|%s|%s)", raw, FormatJSON, FormatYAML, FormatTOML)
	}
}

// Document is the exported form of a vocabulary.
type Document struct {
	ModelType string  `json:"model_type" yaml:"model_type" toml:"model_type"`
	Engine    string  `json:"engine" yaml:"engine" toml:"engine"`
	Size      int     `json:"size" yaml:"size" toml:"size"`
	Unk       int32   `json:"unk" yaml:"unk" toml:"unk"`
	BOS       int32   `json:"bos" yaml:"bos" toml:"bos"`
	EOS       int32   `json:"eos" yaml:"eos" toml:"eos"`
	Pad       int32   `json:"pad" yaml:"pad" toml:"pad"`
	Pieces    []Entry `json:"pieces" yaml:"pieces" toml:"pieces"`
}

type Entry struct {
	Index int32  `json:"index" yaml:"index" toml:"index"`
	Piece string `json:"piece" yaml:"piece" toml:"piece"`
	Kind  string `json:"kind" yaml:"kind" toml:"kind"`
}

// Build collects m's vocabulary into a Document.
func Build(m *tokenizer.Model) Document {
	doc := Document{
		ModelType: m.ModelType(),
		Engine:    string(m.Engine()),
		Size:      m.VocabularySize(),
		Unk:       m.UnkIdx(),
		BOS:       m.BOSIdx(),
		EOS:       m.EOSIdx(),
		Pad:       m.PadIdx(),
		Pieces:    make([]Entry, 0, m.VocabularySize()),
	}

	for p := range m.Pieces() {
		doc.Pieces = append(doc.Pieces, Entry{Index: p.Index, Piece: p.Text, Kind: string(p.Kind)})
	}

	return doc
}

// Export writes m's vocabulary to w in the given format.
func Export(w io.Writer, m *tokenizer.Model, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}

	doc := Build(m)

	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}

		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	}
}
