package tokenizer

import (
	"slices"
	"strconv"
	"strings"
)

const (
	wordSep    = "\u2581" // SentencePiece word-start marker
	unkSurface = " ⁇ "
)

// Decoder turns vocabulary indices back into text.
type Decoder struct {
	model *Model
}

// NewDecoder returns a decoder for m. It works for every model, including
// those loaded without a segmentation engine.
func NewDecoder(m *Model) *Decoder {
	return &Decoder{model: m}
}

// Decode drops control pieces, undoes the model's reverse option and joins
// the remaining pieces. Byte pieces (<0xNN>) are reassembled into raw bytes.
func (d *Decoder) Decode(ids []int32) (string, error) {
	kept := make([]int32, 0, len(ids))
	for _, id := range ids {
		kind, err := d.model.Kind(id)
		if err != nil {
			return "", err
		}

		if kind == KindControl {
			continue
		}

		kept = append(kept, id)
	}

	if d.model.opts.Reverse() {
		slices.Reverse(kept)
	}

	var b strings.Builder
	for _, id := range kept {
		piece := d.model.proc.pieces[id]

		switch d.model.proc.kinds[id] {
		case KindUnknown:
			b.WriteString(unkSurface)
		case KindByte:
			if v, ok := parseBytePiece(piece); ok {
				b.WriteByte(v)
				continue
			}

			b.WriteString(piece)
		case KindUnused:
		default:
			b.WriteString(piece)
		}
	}

	out := strings.ReplaceAll(b.String(), wordSep, " ")
	if d.model.proc.dummyPrefix {
		out = strings.TrimPrefix(out, " ")
	}

	return out, nil
}

// parseBytePiece decodes "<0xNN>".
func parseBytePiece(piece string) (byte, bool) {
	if len(piece) != 6 || !strings.HasPrefix(piece, "<0x") || piece[5] != '>' {
		return 0, false
	}

	v, err := strconv.ParseUint(piece[3:5], 16, 8)
	if err != nil {
		return 0, false
	}

	return byte(v), true
}
