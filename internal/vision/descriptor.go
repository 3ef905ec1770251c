package vision

import "log/slog"

// Descriptor defines one classifier the registry knows how to load: which
// checkpoint files to probe (in preference order), the class list, and how raw
// outputs are scored.
type Descriptor struct {
	ID           string
	Architecture string
	Description  string

	// Labels is the fixed class list. Classifiers whose class count depends on
	// the checkpoint leave this nil and set ResolveLabels instead.
	Labels        []string
	ResolveLabels func(ckpt *Checkpoint) []string

	// Multilabel selects sigmoid + threshold scoring instead of softmax top-k.
	Multilabel bool

	CheckpointFiles []string
}

func Descriptors() []Descriptor {
	return []Descriptor{
		{
			ID:              "nail",
			Architecture:    "EfficientNet-B0",
			Description:     "Nail disease detection - Analyzes nail conditions including fungus, trauma, psoriasis (6 conditions)",
			Labels:          nailClasses,
			CheckpointFiles: []string{"nail_disease_model.onnx", "nail_disease_classifier_best.onnx"},
		},
		{
			ID:              "skin",
			Architecture:    "EfficientNet-B3",
			Description:     "Skin disease analysis - Detects various skin conditions using DenseNet architecture (22 conditions)",
			Labels:          skinClasses,
			CheckpointFiles: []string{"skin_disease_classifier.onnx", "resnet_efficientnet_skin_disease.onnx", "densenet_efficient_skin_disease.onnx"},
		},
		{
			ID:              "oral",
			Architecture:    "ResNet-50",
			Description:     "Oral health assessment - Identifies dental and gum diseases (6 conditions)",
			Labels:          oralClasses,
			CheckpointFiles: []string{"oral_disease_model.onnx", "oral_disease_model_final.onnx"},
		},
		{
			ID:              "eye",
			Architecture:    "EfficientNet-B3",
			Description:     "Eye disease detection - Diagnoses eye conditions like cataract, conjunctivitis (5 conditions)",
			Labels:          eyeClasses,
			CheckpointFiles: []string{"eye_disease_model.onnx", "eye_disease_efficientnet_b3.onnx"},
		},
		{
			ID:              "bone",
			Architecture:    "ResNet-50",
			Description:     "Bone fracture detection - Binary classification for X-ray fracture analysis",
			Labels:          boneClasses,
			CheckpointFiles: []string{"bone_fracture_model.onnx", "best_bone_fracture_model.onnx"},
		},
		{
			ID:              "chest",
			Architecture:    "MobileNet-V2",
			Description:     "Chest X-ray analysis - Multi-label detection of chest conditions (14 conditions)",
			ResolveLabels:   chestLabels,
			Multilabel:      true,
			CheckpointFiles: []string{"chest_xray_model.onnx", "chest_xray_pytorch_model.onnx"},
		},
	}
}

// chestLabels picks the 13 or 14 class list based on the checkpoint's final
// layer width. Checkpoints that expose no final layer weight default to 14.
func chestLabels(ckpt *Checkpoint) []string {
	units, ok := ckpt.FinalLayerUnits()
	if !ok {
		slog.Warn("could not determine chest class count from checkpoint, defaulting to 14", "file", ckpt.Name())
		return chestClasses14
	}

	slog.Info("detected chest checkpoint class count", "file", ckpt.Name(), "classes", units)

	if units == len(chestClasses13) {
		return chestClasses13
	}
	if units != len(chestClasses14) {
		slog.Warn("unexpected chest class count, using 14 class list", "file", ckpt.Name(), "classes", units)
	}
	return chestClasses14
}
