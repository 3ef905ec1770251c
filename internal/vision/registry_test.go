package vision_test

import (
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medix-backend/internal/vision"
)

type stubSession struct {
	outputs   []float32
	inputLens []int
	released  bool
}

func (s *stubSession) Run(input []float32) ([]float32, error) {
	s.inputLens = append(s.inputLens, len(input))
	out := make([]float32, len(s.outputs))
	copy(out, s.outputs)
	return out, nil
}

func (s *stubSession) Release() { s.released = true }

// stubRuntime hands out canned outputs keyed by checkpoint file name, so
// tests can drive the scoring policies without onnxruntime.
type stubRuntime struct {
	outputs  map[string][]float32
	failing  map[string]bool
	sessions []*stubSession
}

func (rt *stubRuntime) OpenSession(ckpt *vision.Checkpoint, numClasses int) (vision.Session, error) {
	if rt.failing[ckpt.Name()] {
		return nil, errors.New("session init failed")
	}
	outputs := rt.outputs[ckpt.Name()]
	if outputs == nil {
		outputs = make([]float32, numClasses)
	}
	session := &stubSession{outputs: outputs}
	rt.sessions = append(rt.sessions, session)
	return session, nil
}

func boneCheckpoint(numClasses int64) []byte {
	return modelBytes(graphBytes(
		tensorBytes("conv1.weight", 64, 3, 7, 7),
		tensorBytes("fc.weight", numClasses, 2048),
		tensorBytes("fc.bias", numClasses),
	))
}

func eyeCheckpoint() []byte {
	return modelBytes(graphBytes(
		tensorBytes("features.0.0.weight", 40, 3, 3, 3),
		tensorBytes("classifier.1.weight", 5, 1536),
	))
}

func chestCheckpoint(numClasses int64) []byte {
	return modelBytes(graphBytes(
		tensorBytes("features.0.0.weight", 32, 3, 3, 3),
		tensorBytes("classifier.6.weight", numClasses, 256),
		tensorBytes("classifier.6.bias", numClasses),
	))
}

func writeModelDir(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		writeCheckpoint(t, dir, name, data)
	}
	return dir
}

func TestLoadRegistrySingleModel(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{"bone_fracture_model.onnx": boneCheckpoint(2)})

	reg := vision.LoadRegistry(dir, &stubRuntime{})
	defer reg.Release()

	assert.Equal(t, []string{"bone"}, reg.Available())
	assert.True(t, reg.Has("bone"))
	assert.False(t, reg.Has("skin"))

	info := reg.Describe()
	require.Contains(t, info, "bone")
	assert.True(t, info["bone"].Loaded)
	assert.Equal(t, "ResNet-50", info["bone"].Architecture)
	assert.Equal(t, 2, info["bone"].NumClasses)
	assert.Equal(t, []string{"Not Fractured", "Fractured"}, info["bone"].Classes)
	assert.Equal(t, "bone_fracture_model.onnx", info["bone"].SourceFile)
}

func TestLoadRegistryEmptyDir(t *testing.T) {
	reg := vision.LoadRegistry(t.TempDir(), &stubRuntime{})
	defer reg.Release()

	assert.Empty(t, reg.Available())
}

func TestLoadRegistryPrefersFirstCandidate(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{
		"eye_disease_model.onnx":           eyeCheckpoint(),
		"eye_disease_efficientnet_b3.onnx": eyeCheckpoint(),
	})

	reg := vision.LoadRegistry(dir, &stubRuntime{})
	defer reg.Release()

	assert.Equal(t, "eye_disease_model.onnx", reg.Describe()["eye"].SourceFile)
}

func TestLoadRegistryFallsBackPastCorruptCheckpoint(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{
		"bone_fracture_model.onnx":      {0xff, 0xff, 0xff},
		"best_bone_fracture_model.onnx": boneCheckpoint(2),
	})

	reg := vision.LoadRegistry(dir, &stubRuntime{})
	defer reg.Release()

	require.True(t, reg.Has("bone"))
	assert.Equal(t, "best_bone_fracture_model.onnx", reg.Describe()["bone"].SourceFile)
}

func TestLoadRegistryFallsBackPastWrongHead(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{
		"bone_fracture_model.onnx":      boneCheckpoint(5),
		"best_bone_fracture_model.onnx": boneCheckpoint(2),
	})

	reg := vision.LoadRegistry(dir, &stubRuntime{})
	defer reg.Release()

	require.True(t, reg.Has("bone"))
	assert.Equal(t, "best_bone_fracture_model.onnx", reg.Describe()["bone"].SourceFile)
}

func TestLoadRegistryFallsBackPastFailedSession(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{
		"bone_fracture_model.onnx":      boneCheckpoint(2),
		"best_bone_fracture_model.onnx": boneCheckpoint(2),
	})
	rt := &stubRuntime{failing: map[string]bool{"bone_fracture_model.onnx": true}}

	reg := vision.LoadRegistry(dir, rt)
	defer reg.Release()

	require.True(t, reg.Has("bone"))
	assert.Equal(t, "best_bone_fracture_model.onnx", reg.Describe()["bone"].SourceFile)
}

func TestLoadRegistrySkipsModelWithNoUsableCheckpoint(t *testing.T) {
	// The only bone checkpoint has the wrong head width, so bone must be
	// absent while nothing else is affected.
	dir := writeModelDir(t, map[string][]byte{
		"bone_fracture_model.onnx": boneCheckpoint(5),
		"eye_disease_model.onnx":   eyeCheckpoint(),
	})

	reg := vision.LoadRegistry(dir, &stubRuntime{})
	defer reg.Release()

	assert.Equal(t, []string{"eye"}, reg.Available())
}

func TestChestClassCountDetection(t *testing.T) {
	t.Run("13 class checkpoint", func(t *testing.T) {
		dir := writeModelDir(t, map[string][]byte{"chest_xray_model.onnx": chestCheckpoint(13)})
		reg := vision.LoadRegistry(dir, &stubRuntime{})
		defer reg.Release()

		info := reg.Describe()["chest"]
		assert.Equal(t, 13, info.NumClasses)
		assert.Equal(t, "Pleural_Thickening", info.Classes[len(info.Classes)-1])
	})

	t.Run("14 class checkpoint", func(t *testing.T) {
		dir := writeModelDir(t, map[string][]byte{"chest_xray_model.onnx": chestCheckpoint(14)})
		reg := vision.LoadRegistry(dir, &stubRuntime{})
		defer reg.Release()

		info := reg.Describe()["chest"]
		assert.Equal(t, 14, info.NumClasses)
		assert.Equal(t, "Hernia", info.Classes[len(info.Classes)-1])
	})

	t.Run("undetectable head defaults to 14", func(t *testing.T) {
		data := modelBytes(graphBytes(tensorBytes("features.0.0.weight", 32, 3, 3, 3)))
		dir := writeModelDir(t, map[string][]byte{"chest_xray_model.onnx": data})
		reg := vision.LoadRegistry(dir, &stubRuntime{})
		defer reg.Release()

		assert.Equal(t, 14, reg.Describe()["chest"].NumClasses)
	})
}

func TestPredictUnknownModel(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{"bone_fracture_model.onnx": boneCheckpoint(2)})
	reg := vision.LoadRegistry(dir, &stubRuntime{})
	defer reg.Release()

	_, err := reg.Predict("skin", pngPayload(t, color.White))
	require.ErrorIs(t, err, vision.ErrModelUnavailable)
	assert.Contains(t, err.Error(), "bone")
}

func TestPredictInvalidImage(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{"bone_fracture_model.onnx": boneCheckpoint(2)})
	reg := vision.LoadRegistry(dir, &stubRuntime{})
	defer reg.Release()

	_, err := reg.Predict("bone", "!!! not base64 !!!")
	assert.ErrorIs(t, err, vision.ErrInvalidImage)
}

func TestPredictSingleLabel(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{"eye_disease_model.onnx": eyeCheckpoint()})
	rt := &stubRuntime{outputs: map[string][]float32{
		"eye_disease_model.onnx": {0.1, 3.0, 0.5, 3.0, -1.0},
	}}
	reg := vision.LoadRegistry(dir, rt)
	defer reg.Release()

	preds, err := reg.Predict("eye", pngPayload(t, color.White))
	require.NoError(t, err)

	// Top 3 of 5, ties broken by class order.
	require.Len(t, preds, 3)
	assert.Equal(t, "Conjunctivitis", preds[0].Disease)
	assert.Equal(t, "Normal", preds[1].Disease)
	assert.Equal(t, "Eyelid", preds[2].Disease)
	assert.Equal(t, preds[0].Confidence, preds[1].Confidence)
	assert.Greater(t, preds[1].Confidence, preds[2].Confidence)

	var total float64
	for _, p := range preds {
		total += p.Confidence
	}
	assert.Less(t, total, 1.0)

	// The session saw a full normalized input tensor.
	require.Len(t, rt.sessions, 1)
	assert.Equal(t, []int{3 * vision.InputSize * vision.InputSize}, rt.sessions[0].inputLens)
}

func TestPredictFewerClassesThanTopK(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{"bone_fracture_model.onnx": boneCheckpoint(2)})
	rt := &stubRuntime{outputs: map[string][]float32{
		"bone_fracture_model.onnx": {2.0, -2.0},
	}}
	reg := vision.LoadRegistry(dir, rt)
	defer reg.Release()

	preds, err := reg.Predict("bone", pngPayload(t, color.White))
	require.NoError(t, err)

	require.Len(t, preds, 2)
	assert.Equal(t, "Not Fractured", preds[0].Disease)
	assert.InDelta(t, 0.982, preds[0].Confidence, 0.001)
	assert.InDelta(t, 1.0, preds[0].Confidence+preds[1].Confidence, 1e-9)
}

func TestPredictMultiLabelThreshold(t *testing.T) {
	outputs := make([]float32, 13)
	for i := range outputs {
		outputs[i] = -3.0
	}
	outputs[0] = 2.0 // Atelectasis
	outputs[5] = 0.5 // Nodule

	dir := writeModelDir(t, map[string][]byte{"chest_xray_model.onnx": chestCheckpoint(13)})
	rt := &stubRuntime{outputs: map[string][]float32{"chest_xray_model.onnx": outputs}}
	reg := vision.LoadRegistry(dir, rt)
	defer reg.Release()

	preds, err := reg.Predict("chest", pngPayload(t, color.White))
	require.NoError(t, err)

	require.Len(t, preds, 2)
	assert.Equal(t, "Atelectasis", preds[0].Disease)
	assert.Equal(t, "Nodule", preds[1].Disease)
	for _, p := range preds {
		assert.Greater(t, p.Confidence, 0.3)
	}
}

func TestPredictMultiLabelFallback(t *testing.T) {
	outputs := make([]float32, 14)
	for i := range outputs {
		outputs[i] = -3.0
	}

	dir := writeModelDir(t, map[string][]byte{"chest_xray_model.onnx": chestCheckpoint(14)})
	rt := &stubRuntime{outputs: map[string][]float32{"chest_xray_model.onnx": outputs}}
	reg := vision.LoadRegistry(dir, rt)
	defer reg.Release()

	preds, err := reg.Predict("chest", pngPayload(t, color.White))
	require.NoError(t, err)

	// Nothing clears the threshold, so the top 3 come back regardless.
	require.Len(t, preds, 3)
	assert.Equal(t, "Atelectasis", preds[0].Disease)
	assert.Equal(t, "Cardiomegaly", preds[1].Disease)
	assert.Equal(t, "Effusion", preds[2].Disease)
	for _, p := range preds {
		assert.Less(t, p.Confidence, 0.3)
	}
}

func TestPredictDeterministic(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{"eye_disease_model.onnx": eyeCheckpoint()})
	rt := &stubRuntime{outputs: map[string][]float32{
		"eye_disease_model.onnx": {0.3, 1.7, -0.2, 0.9, 0.4},
	}}
	reg := vision.LoadRegistry(dir, rt)
	defer reg.Release()

	payload := pngPayload(t, color.RGBA{R: 90, G: 140, B: 40, A: 255})
	first, err := reg.Predict("eye", payload)
	require.NoError(t, err)
	second, err := reg.Predict("eye", payload)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReleaseDestroysSessions(t *testing.T) {
	dir := writeModelDir(t, map[string][]byte{
		"bone_fracture_model.onnx": boneCheckpoint(2),
		"eye_disease_model.onnx":   eyeCheckpoint(),
	})
	rt := &stubRuntime{}

	reg := vision.LoadRegistry(dir, rt)
	reg.Release()

	require.Len(t, rt.sessions, 2)
	for _, s := range rt.sessions {
		assert.True(t, s.released)
	}
}
