package tokenizer

import (
	"errors"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// PieceType mirrors sentencepiece.ModelProto.SentencePiece.Type.
type PieceType int32

// SentencePiece piece types.
const (
	PieceNormal      PieceType = 1
	PieceUnknown     PieceType = 2
	PieceControl     PieceType = 3
	PieceUserDefined PieceType = 4
	PieceUnused      PieceType = 5
	PieceByte        PieceType = 6
)

// ModelType mirrors sentencepiece.TrainerSpec.ModelType.
type ModelType int32

// SentencePiece model types.
const (
	ModelUnigram ModelType = 1
	ModelBPE     ModelType = 2
	ModelWord    ModelType = 3
	ModelChar    ModelType = 4
)

// Field numbers from sentencepiece_model.proto.
const (
	fieldModelPieces      protowire.Number = 1
	fieldModelTrainerSpec protowire.Number = 2

	fieldPiecePiece protowire.Number = 1
	fieldPieceScore protowire.Number = 2
	fieldPieceType  protowire.Number = 3

	fieldTrainerModelType protowire.Number = 3
)

// Piece represents a vocabulary piece from the model.
type Piece struct {
	Piece string
	Score float32
	Type  PieceType
}

// Model represents a loaded SentencePiece model.
type Model struct {
	Pieces    []Piece
	ModelType ModelType
}

// LoadModel loads a SentencePiece model from a .model file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("parsing protobuf: %w", err)
	}
	return m, nil
}

// ParseModel decodes a serialized sentencepiece.ModelProto.
// Only the fields the tokenizer needs are kept; the rest are skipped.
func ParseModel(data []byte) (*Model, error) {
	m := &Model{ModelType: ModelUnigram}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldModelPieces && typ == protowire.BytesType:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			p, err := parsePiece(b)
			if err != nil {
				return nil, fmt.Errorf("piece %d: %w", len(m.Pieces), err)
			}
			m.Pieces = append(m.Pieces, p)
			data = data[n:]

		case num == fieldModelTrainerSpec && typ == protowire.BytesType:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			mt, err := parseModelType(b)
			if err != nil {
				return nil, fmt.Errorf("trainer_spec: %w", err)
			}
			m.ModelType = mt
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}

	if len(m.Pieces) == 0 {
		return nil, errors.New("model has no pieces")
	}
	return m, nil
}

func parsePiece(data []byte) (Piece, error) {
	p := Piece{Type: PieceNormal}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Piece{}, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldPiecePiece && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return Piece{}, protowire.ParseError(n)
			}
			p.Piece = s
			data = data[n:]
		case num == fieldPieceScore && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return Piece{}, protowire.ParseError(n)
			}
			p.Score = math.Float32frombits(v)
			data = data[n:]
		case num == fieldPieceType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Piece{}, protowire.ParseError(n)
			}
			p.Type = PieceType(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Piece{}, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}

	return p, nil
}

func parseModelType(data []byte) (ModelType, error) {
	mt := ModelUnigram
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		data = data[n:]

		if num == fieldTrainerModelType && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			mt = ModelType(v)
			data = data[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		data = data[n:]
	}
	return mt, nil
}

// MarshalModel encodes pieces as a minimal sentencepiece.ModelProto.
// It is the inverse of ParseModel for the fields ParseModel reads.
func MarshalModel(m *Model) []byte {
	var out []byte
	for _, p := range m.Pieces {
		var b []byte
		b = protowire.AppendTag(b, fieldPiecePiece, protowire.BytesType)
		b = protowire.AppendString(b, p.Piece)
		b = protowire.AppendTag(b, fieldPieceScore, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(p.Score))
		b = protowire.AppendTag(b, fieldPieceType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Type))

		out = protowire.AppendTag(out, fieldModelPieces, protowire.BytesType)
		out = protowire.AppendBytes(out, b)
	}

	var spec []byte
	spec = protowire.AppendTag(spec, fieldTrainerModelType, protowire.VarintType)
	spec = protowire.AppendVarint(spec, uint64(m.ModelType))
	out = protowire.AppendTag(out, fieldModelTrainerSpec, protowire.BytesType)
	out = protowire.AppendBytes(out, spec)

	return out
}
