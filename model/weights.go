package model

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"
)

// WeightsFile is the file name of native weights inside an artifact.
const WeightsFile = "weights.pb"

// nativeArch tags the layout written by MarshalNative.
const nativeArch = "bow-dense-tanh-v2"

// weights.pb is a protobuf message:
//
//	message Weights {
//	  string arch = 1;
//	  uint64 rows = 2;
//	  uint64 dim = 3;
//	  uint64 hidden = 4;
//	  repeated Tensor tensors = 5;
//	}
//	message Tensor {
//	  string name = 1;
//	  repeated float data = 2 [packed = true];
//	}
const (
	fieldWeightsArch    protowire.Number = 1
	fieldWeightsRows    protowire.Number = 2
	fieldWeightsDim     protowire.Number = 3
	fieldWeightsHidden  protowire.Number = 4
	fieldWeightsTensors protowire.Number = 5

	fieldTensorName protowire.Number = 1
	fieldTensorData protowire.Number = 2
)

// MarshalNative encodes the classifier sizes and tensors.
func MarshalNative(n *Native) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldWeightsArch, protowire.BytesType)
	out = protowire.AppendString(out, nativeArch)
	for _, f := range []struct {
		num protowire.Number
		v   int
	}{
		{fieldWeightsRows, n.cfg.Rows},
		{fieldWeightsDim, n.cfg.Dim},
		{fieldWeightsHidden, n.cfg.Hidden},
	} {
		out = protowire.AppendTag(out, f.num, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(f.v))
	}

	snap := n.Snapshot()
	for _, name := range tensorNames() {
		var packed []byte
		for _, v := range snap[name] {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}

		var tb []byte
		tb = protowire.AppendTag(tb, fieldTensorName, protowire.BytesType)
		tb = protowire.AppendString(tb, name)
		tb = protowire.AppendTag(tb, fieldTensorData, protowire.BytesType)
		tb = protowire.AppendBytes(tb, packed)

		out = protowire.AppendTag(out, fieldWeightsTensors, protowire.BytesType)
		out = protowire.AppendBytes(out, tb)
	}
	return out
}

// UnmarshalNative decodes weights written by MarshalNative.
func UnmarshalNative(data []byte) (*Native, error) {
	var (
		arch    string
		cfg     NativeConfig
		tensors = Snapshot{}
	)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrInvalidModel, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldWeightsArch && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidModel, protowire.ParseError(n))
			}
			arch = s
			data = data[n:]

		case (num == fieldWeightsRows || num == fieldWeightsDim || num == fieldWeightsHidden) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidModel, protowire.ParseError(n))
			}
			switch num {
			case fieldWeightsRows:
				cfg.Rows = int(v)
			case fieldWeightsDim:
				cfg.Dim = int(v)
			default:
				cfg.Hidden = int(v)
			}
			data = data[n:]

		case num == fieldWeightsTensors && typ == protowire.BytesType:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidModel, protowire.ParseError(n))
			}
			name, values, err := parseTensor(b)
			if err != nil {
				return nil, fmt.Errorf("%w: tensor %d: %w", ErrInvalidModel, len(tensors), err)
			}
			tensors[name] = values
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidModel, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if arch != nativeArch {
		return nil, fmt.Errorf("%w: unsupported architecture %q", ErrInvalidModel, arch)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := checkShapes(cfg, tensors); err != nil {
		return nil, err
	}

	nat := newNative(cfg)
	if err := nat.Restore(tensors); err != nil {
		return nil, err
	}
	return nat, nil
}

// checkShapes verifies every tensor against the declared sizes, so header
// values are trusted only once the data backing them has been read.
func checkShapes(cfg NativeConfig, tensors Snapshot) error {
	for i, name := range layerNames {
		in, out := cfg.shape(i)
		kernel := tensors[name+".kernel"]
		if in > len(kernel)/out || in*out != len(kernel) {
			return fmt.Errorf("%w: %s.kernel has %d values, want %dx%d", ErrInvalidModel, name, len(kernel), in, out)
		}
		if bias := tensors[name+".bias"]; len(bias) != out {
			return fmt.Errorf("%w: %s.bias has %d values, want %d", ErrInvalidModel, name, len(bias), out)
		}
	}
	return nil
}

func parseTensor(data []byte) (string, []float32, error) {
	var (
		name   string
		values []float32
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldTensorName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			name = s
			data = data[n:]
		case num == fieldTensorData && typ == protowire.BytesType:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			if len(b)%4 != 0 {
				return "", nil, errors.New("packed data is not a multiple of 4 bytes")
			}
			values = make([]float32, 0, len(b)/4)
			for len(b) > 0 {
				v, m := protowire.ConsumeFixed32(b)
				if m < 0 {
					return "", nil, protowire.ParseError(m)
				}
				values = append(values, math.Float32frombits(v))
				b = b[m:]
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	if name == "" {
		return "", nil, errors.New("tensor has no name")
	}
	return name, values, nil
}

// Save writes weights.pb into dir.
func (n *Native) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, WeightsFile)
	if err := os.WriteFile(path, MarshalNative(n), 0o644); err != nil {
		return fmt.Errorf("writing weights: %w", err)
	}
	return nil
}

// LoadNative reads a Native classifier from a weights.pb file.
func LoadNative(path string) (*Native, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}
	return UnmarshalNative(data)
}
