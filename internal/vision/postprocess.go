package vision

import (
	"math"
	"sort"
)

const (
	// TopK is how many ranked candidates a model pass keeps (best + alternatives).
	TopK = 3
	// ConfidenceThreshold gates model output: a best score below it is not a prediction.
	ConfidenceThreshold = 0.5
)

// Source tells where a prediction came from.
type Source string

const (
	SourceModel        Source = "model"
	SourceModelRotated Source = "model_rotated"
	SourceReference    Source = "reference"
	SourceGuess        Source = "guess"
	SourceDegraded     Source = "degraded"
)

// Candidate is one ranked label from a score vector.
type Candidate struct {
	Label      string  `json:"label"`
	Index      int     `json:"index"`
	Confidence float32 `json:"confidence"`
}

// Prediction is the identification result handed to callers.
type Prediction struct {
	Label        string      `json:"label"`
	Confidence   float32     `json:"confidence"`
	Alternatives []Candidate `json:"alternatives,omitempty"`
	Source       Source      `json:"source"`
}

// PostProcess ranks scores against labels and applies the confidence gate. It returns nil
// when there is nothing to rank or the best score is below ConfidenceThreshold.
// Equal scores keep their index order.
func PostProcess(scores []float32, labels []string) *Prediction {
	n := len(scores)
	if len(labels) < n {
		n = len(labels)
	}
	if n == 0 {
		return nil
	}

	ranked := make([]Candidate, n)
	for i := 0; i < n; i++ {
		ranked[i] = Candidate{Label: labels[i], Index: i, Confidence: scores[i]}
	}
	// NaN ranks below every number so it can never take the top slot.
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Confidence, ranked[j].Confidence
		if isNaN(b) {
			return !isNaN(a)
		}
		return a > b
	})

	k := TopK
	if k > n {
		k = n
	}
	top := ranked[:k]
	if !(top[0].Confidence >= ConfidenceThreshold) {
		return nil
	}

	p := &Prediction{
		Label:      top[0].Label,
		Confidence: top[0].Confidence,
		Source:     SourceModel,
	}
	if k > 1 {
		p.Alternatives = append([]Candidate(nil), top[1:]...)
	}
	return p
}

func isNaN(f float32) bool {
	return math.IsNaN(float64(f))
}
