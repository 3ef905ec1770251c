package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrModelUnavailable means the requested classifier is not in the
	// registry, either because it was never configured or because no
	// checkpoint for it could be loaded.
	ErrModelUnavailable = errors.New("model not available")

	// ErrInvalidImage means the submitted payload could not be decoded into
	// an image.
	ErrInvalidImage = errors.New("invalid image payload")
)

// ModelInfo describes one loaded classifier for the models endpoint.
type ModelInfo struct {
	Loaded       bool     `json:"loaded"`
	Architecture string   `json:"architecture"`
	NumClasses   int      `json:"num_classes"`
	Classes      []string `json:"classes"`
	Description  string   `json:"description"`
	SourceFile   string   `json:"source_file"`
}

type loadedModel struct {
	desc    Descriptor
	labels  []string
	session Session
	source  string
}

// Registry holds the classifiers that loaded successfully. Membership is the
// only availability signal: a model that failed to load is simply absent and
// every other model still works. The registry is immutable after LoadRegistry
// and safe for concurrent use.
type Registry struct {
	models map[string]*loadedModel
	ids    []string
}

// EmptyRegistry returns a registry with no models, for deployments that run
// without an inference runtime. Every Predict call fails with
// ErrModelUnavailable.
func EmptyRegistry() *Registry {
	return &Registry{models: make(map[string]*loadedModel)}
}

// LoadRegistry probes every descriptor's candidate checkpoints under modelDir
// and returns a registry of those that loaded. Load failures are logged and
// skipped, never propagated: a deployment with a single usable checkpoint
// still serves that one model.
func LoadRegistry(modelDir string, runtime Runtime) *Registry {
	reg := &Registry{models: make(map[string]*loadedModel)}

	for _, desc := range Descriptors() {
		model := loadModel(modelDir, desc, runtime)
		if model == nil {
			slog.Error("no loadable checkpoint for model, skipping", "model", desc.ID, "candidates", desc.CheckpointFiles)
			continue
		}
		reg.models[desc.ID] = model
		reg.ids = append(reg.ids, desc.ID)
	}

	sort.Strings(reg.ids)
	slog.Info("model registry loaded", "available", reg.ids)
	return reg
}

func loadModel(modelDir string, desc Descriptor, runtime Runtime) *loadedModel {
	for _, filename := range desc.CheckpointFiles {
		path := filepath.Join(modelDir, filename)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		ckpt, err := ReadCheckpoint(path)
		if err != nil {
			slog.Warn("failed to load checkpoint", "model", desc.ID, "file", filename, "error", err)
			continue
		}

		labels, err := resolveLabels(desc, ckpt)
		if err != nil {
			slog.Warn("failed to load checkpoint", "model", desc.ID, "file", filename, "error", err)
			continue
		}

		session, err := runtime.OpenSession(ckpt, len(labels))
		if err != nil {
			slog.Warn("failed to load checkpoint", "model", desc.ID, "file", filename, "error", err)
			continue
		}

		slog.Info("loaded model", "model", desc.ID, "file", filename, "classes", len(labels))
		return &loadedModel{desc: desc, labels: labels, session: session, source: filename}
	}
	return nil
}

// resolveLabels fixes the class list for a checkpoint. Fixed-width models are
// cross-checked against the checkpoint's final layer when it is discoverable,
// dynamic models delegate to their resolver.
func resolveLabels(desc Descriptor, ckpt *Checkpoint) ([]string, error) {
	if desc.ResolveLabels != nil {
		return desc.ResolveLabels(ckpt), nil
	}

	if units, ok := ckpt.FinalLayerUnits(); ok && units != len(desc.Labels) {
		return nil, fmt.Errorf("checkpoint has %d output units, expected %d", units, len(desc.Labels))
	}
	return desc.Labels, nil
}

// Available returns the loaded model ids in sorted order.
func (r *Registry) Available() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

func (r *Registry) Has(modelID string) bool {
	_, ok := r.models[modelID]
	return ok
}

// Describe reports details for every loaded model, keyed by model id.
func (r *Registry) Describe() map[string]ModelInfo {
	info := make(map[string]ModelInfo, len(r.models))
	for id, m := range r.models {
		info[id] = ModelInfo{
			Loaded:       true,
			Architecture: m.desc.Architecture,
			NumClasses:   len(m.labels),
			Classes:      m.labels,
			Description:  m.desc.Description,
			SourceFile:   m.source,
		}
	}
	return info
}

// Predict decodes the base64 image payload, runs it through the named
// classifier, and scores the outputs with the model's policy. The result is
// never empty on success.
func (r *Registry) Predict(modelID string, imagePayload string) ([]Prediction, error) {
	model, ok := r.models[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: model type '%s' not available, available models: [%s]",
			ErrModelUnavailable, modelID, strings.Join(r.ids, ", "))
	}

	img, err := DecodeImage(imagePayload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	outputs, err := model.session.Run(Preprocess(img))
	if err != nil {
		return nil, fmt.Errorf("inference failed for model %s: %w", modelID, err)
	}

	if model.desc.Multilabel {
		return scoreMultiLabel(outputs, model.labels), nil
	}
	return scoreSingleLabel(outputs, model.labels), nil
}

// Release destroys every session. The registry must not be used afterwards.
func (r *Registry) Release() {
	for _, m := range r.models {
		m.session.Release()
	}
}
