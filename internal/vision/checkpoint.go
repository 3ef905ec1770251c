package vision

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// Checkpoints are onnx exports of the trained classifiers. The export keeps
// the torch parameter names as graph initializer names, so the initializer
// list doubles as a weight manifest that can be inspected without running the
// graph. Only the field numbers used below are decoded, everything else is
// skipped.
const (
	modelGraphField protowire.Number = 7 // ModelProto.graph

	graphInitializerField protowire.Number = 5 // GraphProto.initializer

	tensorDimsField protowire.Number = 1 // TensorProto.dims
	tensorNameField protowire.Number = 8 // TensorProto.name
)

// WeightTensor is one named parameter from the checkpoint's weight manifest.
type WeightTensor struct {
	Name string
	Dims []int64
}

type Checkpoint struct {
	path    string
	data    []byte
	weights []WeightTensor
}

// Checkpoint files come in two shapes: a model envelope with the weight graph
// nested inside it, or a bare weight graph at the top level. Extraction walks
// this list in order and keeps the first interpretation that yields weights.
type extraction struct {
	name    string
	extract func(data []byte) ([]WeightTensor, error)
}

var extractions = []extraction{
	{name: "model envelope", extract: extractEnvelopeWeights},
	{name: "bare graph", extract: extractGraphWeights},
}

func ReadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read checkpoint: %w", err)
	}
	return parseCheckpoint(path, data)
}

func parseCheckpoint(path string, data []byte) (*Checkpoint, error) {
	for _, ext := range extractions {
		weights, err := ext.extract(data)
		if err != nil {
			slog.Debug("checkpoint interpretation failed", "file", filepath.Base(path), "format", ext.name, "error", err)
			continue
		}
		if len(weights) == 0 {
			continue
		}
		return &Checkpoint{path: path, data: data, weights: weights}, nil
	}
	return nil, fmt.Errorf("no weight manifest found in %s", filepath.Base(path))
}

func (c *Checkpoint) Path() string { return c.path }

func (c *Checkpoint) Name() string { return filepath.Base(c.path) }

// Data returns the raw checkpoint bytes, suitable for creating a session.
func (c *Checkpoint) Data() []byte { return c.data }

func (c *Checkpoint) Weights() []WeightTensor { return c.weights }

// FinalLayerUnits reports the output width of the classifier head by looking
// up the final layer weight under its conventional parameter names. The
// second return is false when no such weight exists in the manifest.
func (c *Checkpoint) FinalLayerUnits() (int, bool) {
	for _, suffix := range []string{"classifier.6.weight", "fc.weight"} {
		for _, w := range c.weights {
			if strings.HasSuffix(w.Name, suffix) && len(w.Dims) > 0 {
				return int(w.Dims[0]), true
			}
		}
	}
	return 0, false
}

// extractEnvelopeWeights reads the weight graph nested inside a model
// envelope. Returns no weights when the envelope has no graph field, which
// hands over to the bare graph interpretation.
func extractEnvelopeWeights(data []byte) ([]WeightTensor, error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		if num == modelGraphField && typ == protowire.BytesType {
			graph, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			return extractGraphWeights(graph)
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil, nil
}

func extractGraphWeights(data []byte) ([]WeightTensor, error) {
	var weights []WeightTensor
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		if num == graphInitializerField && typ == protowire.BytesType {
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]

			w, err := parseWeightTensor(raw)
			if err != nil {
				return nil, err
			}
			if w.Name != "" {
				weights = append(weights, w)
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
	}
	return weights, nil
}

// parseWeightTensor decodes the name and dims of one initializer. Dims are
// accepted in both packed and unpacked encodings since exporters differ.
func parseWeightTensor(data []byte) (WeightTensor, error) {
	var w WeightTensor
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return w, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == tensorDimsField && typ == protowire.VarintType:
			dim, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return w, protowire.ParseError(n)
			}
			data = data[n:]
			w.Dims = append(w.Dims, int64(dim))

		case num == tensorDimsField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return w, protowire.ParseError(n)
			}
			data = data[n:]
			for len(packed) > 0 {
				dim, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return w, protowire.ParseError(n)
				}
				packed = packed[n:]
				w.Dims = append(w.Dims, int64(dim))
			}

		case num == tensorNameField && typ == protowire.BytesType:
			name, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return w, protowire.ParseError(n)
			}
			data = data[n:]
			w.Name = string(name)

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return w, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return w, nil
}
