package vision

import (
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"
)

// Session runs forward passes for one loaded classifier. Input is NCHW
// float32 data for a single image, output is the raw per-class vector.
// Implementations must be safe for concurrent Run calls.
type Session interface {
	Run(input []float32) ([]float32, error)
	Release()
}

// Runtime turns parsed checkpoints into inference sessions.
type Runtime interface {
	OpenSession(ckpt *Checkpoint, numClasses int) (Session, error)
}

// OnnxRuntime backs sessions with ONNX Runtime. The shared library must be
// initialized by the caller before any session is opened.
type OnnxRuntime struct{}

func NewOnnxRuntime() *OnnxRuntime {
	return &OnnxRuntime{}
}

func (rt *OnnxRuntime) OpenSession(ckpt *Checkpoint, numClasses int) (Session, error) {
	// Exports name their graph tensors inconsistently, so prefer whatever the
	// graph metadata reports and only fall back to the conventional names.
	inputName, outputName := "input", "output"
	inputs, outputs, err := ort.GetInputOutputInfo(ckpt.Path())
	if err != nil || len(inputs) == 0 || len(outputs) == 0 {
		slog.Warn("could not read graph tensor names, using defaults", "file", ckpt.Name(), "error", err)
	} else {
		inputName, outputName = inputs[0].Name, outputs[0].Name
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		ckpt.Data(),
		[]string{inputName},
		[]string{outputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", ckpt.Name(), err)
	}

	return &onnxSession{session: session, numClasses: numClasses}, nil
}

type onnxSession struct {
	session    *ort.DynamicAdvancedSession
	numClasses int
}

func (s *onnxSession) Run(input []float32) ([]float32, error) {
	inT, err := ort.NewTensor(ort.NewShape(1, 3, InputSize, InputSize), input)
	if err != nil {
		return nil, err
	}
	defer inT.Destroy()

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(s.numClasses)))
	if err != nil {
		return nil, err
	}
	defer outT.Destroy()

	if err := s.session.Run([]ort.Value{inT}, []ort.Value{outT}); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}

	out := make([]float32, s.numClasses)
	copy(out, outT.GetData())
	return out, nil
}

func (s *onnxSession) Release() {
	s.session.Destroy()
}
