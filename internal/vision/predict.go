package vision

import (
	"math"
	"sort"
)

const (
	// Multi-label predictions below this score are dropped unless nothing
	// clears it.
	multilabelThreshold = 0.3

	topK = 3
)

// Prediction is one scored class from a classifier run.
type Prediction struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

func softmax(logits []float32) []float64 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	exps := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		exps[i] = math.Exp(float64(v - maxLogit))
		sum += exps[i]
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}

func sigmoid(x float32) float64 {
	return 1.0 / (1.0 + math.Exp(-float64(x)))
}

// scoreSingleLabel softmaxes the logits and keeps the top classes. The sort
// is stable so equal scores keep class list order.
func scoreSingleLabel(logits []float32, labels []string) []Prediction {
	probs := softmax(logits)

	preds := make([]Prediction, len(labels))
	for i, label := range labels {
		preds[i] = Prediction{Disease: label, Confidence: probs[i]}
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Confidence > preds[j].Confidence })

	if len(preds) > topK {
		preds = preds[:topK]
	}
	return preds
}

// scoreMultiLabel sigmoids each class independently and keeps everything
// strictly above the threshold. When nothing clears it, the top classes are
// returned instead so the caller always gets a ranking.
func scoreMultiLabel(logits []float32, labels []string) []Prediction {
	all := make([]Prediction, len(labels))
	for i, label := range labels {
		all[i] = Prediction{Disease: label, Confidence: sigmoid(logits[i])}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Confidence > all[j].Confidence })

	var preds []Prediction
	for _, p := range all {
		if p.Confidence > multilabelThreshold {
			preds = append(preds, p)
		}
	}
	if len(preds) > 0 {
		return preds
	}

	if len(all) > topK {
		all = all[:topK]
	}
	return all
}
