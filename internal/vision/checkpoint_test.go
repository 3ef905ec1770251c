package vision_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"medix-backend/internal/vision"
)

// The builders below assemble minimal onnx checkpoints on the wire, enough
// for the weight manifest parser: tensors with names and dims, a graph
// holding them as initializers, and optionally a model envelope around the
// graph.

func tensorBytes(name string, dims ...int64) []byte {
	var b []byte
	for _, d := range dims {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d))
	}
	b = protowire.AppendTag(b, 2, protowire.VarintType) // data_type, skipped by the parser
	b = protowire.AppendVarint(b, 1)
	if name != "" {
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(name))
	}
	return b
}

func packedDimsTensorBytes(name string, dims ...int64) []byte {
	var packed []byte
	for _, d := range dims {
		packed = protowire.AppendVarint(packed, uint64(d))
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	b = protowire.AppendTag(b, 8, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(name))
	return b
}

func graphBytes(tensors ...[]byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, 2, protowire.BytesType) // graph name
	b = protowire.AppendBytes(b, []byte("torch_jit"))
	for _, t := range tensors {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, t)
	}
	return b
}

func modelBytes(graph []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType) // ir_version
	b = protowire.AppendVarint(b, 8)
	b = protowire.AppendTag(b, 7, protowire.BytesType)
	b = protowire.AppendBytes(b, graph)
	return b
}

func writeCheckpoint(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestReadCheckpointModelEnvelope(t *testing.T) {
	data := modelBytes(graphBytes(
		tensorBytes("features.0.0.weight", 32, 3, 3, 3),
		tensorBytes("fc.weight", 2, 2048),
		tensorBytes("fc.bias", 2),
	))
	path := writeCheckpoint(t, t.TempDir(), "model.onnx", data)

	ckpt, err := vision.ReadCheckpoint(path)
	require.NoError(t, err)

	assert.Equal(t, "model.onnx", ckpt.Name())
	assert.Equal(t, data, ckpt.Data())
	require.Len(t, ckpt.Weights(), 3)
	assert.Equal(t, "features.0.0.weight", ckpt.Weights()[0].Name)
	assert.Equal(t, []int64{32, 3, 3, 3}, ckpt.Weights()[0].Dims)
	assert.Equal(t, "fc.weight", ckpt.Weights()[1].Name)
	assert.Equal(t, []int64{2, 2048}, ckpt.Weights()[1].Dims)
}

func TestReadCheckpointBareGraph(t *testing.T) {
	data := graphBytes(
		tensorBytes("layer4.1.conv2.weight", 512, 512, 3, 3),
		tensorBytes("fc.weight", 6, 512),
	)
	path := writeCheckpoint(t, t.TempDir(), "bare.onnx", data)

	ckpt, err := vision.ReadCheckpoint(path)
	require.NoError(t, err)

	require.Len(t, ckpt.Weights(), 2)
	assert.Equal(t, "fc.weight", ckpt.Weights()[1].Name)
}

func TestReadCheckpointPackedDims(t *testing.T) {
	data := modelBytes(graphBytes(packedDimsTensorBytes("classifier.6.weight", 13, 256)))
	path := writeCheckpoint(t, t.TempDir(), "packed.onnx", data)

	ckpt, err := vision.ReadCheckpoint(path)
	require.NoError(t, err)

	require.Len(t, ckpt.Weights(), 1)
	assert.Equal(t, []int64{13, 256}, ckpt.Weights()[0].Dims)
}

func TestReadCheckpointSkipsAnonymousTensors(t *testing.T) {
	data := modelBytes(graphBytes(
		tensorBytes("", 4, 4),
		tensorBytes("fc.weight", 5, 128),
	))
	path := writeCheckpoint(t, t.TempDir(), "anon.onnx", data)

	ckpt, err := vision.ReadCheckpoint(path)
	require.NoError(t, err)

	require.Len(t, ckpt.Weights(), 1)
	assert.Equal(t, "fc.weight", ckpt.Weights()[0].Name)
}

func TestReadCheckpointRejectsGarbage(t *testing.T) {
	dir := t.TempDir()

	for name, data := range map[string][]byte{
		"truncated.onnx": {0xff, 0xff, 0xff},
		"empty.onnx":     {},
		"no_weights.onnx": func() []byte {
			var b []byte
			b = protowire.AppendTag(b, 1, protowire.VarintType)
			b = protowire.AppendVarint(b, 8)
			return b
		}(),
	} {
		path := writeCheckpoint(t, dir, name, data)
		_, err := vision.ReadCheckpoint(path)
		assert.Error(t, err, name)
	}
}

func TestReadCheckpointMissingFile(t *testing.T) {
	_, err := vision.ReadCheckpoint(filepath.Join(t.TempDir(), "nope.onnx"))
	assert.Error(t, err)
}

func TestFinalLayerUnits(t *testing.T) {
	t.Run("classifier head", func(t *testing.T) {
		data := modelBytes(graphBytes(
			tensorBytes("model.classifier.6.weight", 13, 256),
			tensorBytes("model.classifier.6.bias", 13),
		))
		ckpt, err := vision.ReadCheckpoint(writeCheckpoint(t, t.TempDir(), "c.onnx", data))
		require.NoError(t, err)

		units, ok := ckpt.FinalLayerUnits()
		assert.True(t, ok)
		assert.Equal(t, 13, units)
	})

	t.Run("fc head", func(t *testing.T) {
		data := modelBytes(graphBytes(tensorBytes("fc.weight", 2, 2048)))
		ckpt, err := vision.ReadCheckpoint(writeCheckpoint(t, t.TempDir(), "f.onnx", data))
		require.NoError(t, err)

		units, ok := ckpt.FinalLayerUnits()
		assert.True(t, ok)
		assert.Equal(t, 2, units)
	})

	t.Run("classifier head wins over fc", func(t *testing.T) {
		data := modelBytes(graphBytes(
			tensorBytes("backbone.fc.weight", 1000, 2048),
			tensorBytes("classifier.6.weight", 14, 256),
		))
		ckpt, err := vision.ReadCheckpoint(writeCheckpoint(t, t.TempDir(), "b.onnx", data))
		require.NoError(t, err)

		units, ok := ckpt.FinalLayerUnits()
		assert.True(t, ok)
		assert.Equal(t, 14, units)
	})

	t.Run("no recognizable head", func(t *testing.T) {
		data := modelBytes(graphBytes(tensorBytes("classifier.1.weight", 5, 1536)))
		ckpt, err := vision.ReadCheckpoint(writeCheckpoint(t, t.TempDir(), "n.onnx", data))
		require.NoError(t, err)

		_, ok := ckpt.FinalLayerUnits()
		assert.False(t, ok)
	})
}
