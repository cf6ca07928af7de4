package vision

import (
	"math"
	"testing"
)

func TestPostProcessConfident(t *testing.T) {
	scores := []float32{0.9, 0.05, 0.02, 0, 0, 0, 0, 0, 0, 0.03}
	p := PostProcess(scores, DefaultLabels)
	if p == nil {
		t.Fatal("expected a prediction")
	}
	if p.Label != "Common Green Darner" || p.Confidence != 0.9 {
		t.Errorf("got %s %.2f, want Common Green Darner 0.90", p.Label, p.Confidence)
	}
	if p.Source != SourceModel {
		t.Errorf("source = %s", p.Source)
	}

	want := []Candidate{
		{Label: "Blue Dasher", Index: 1, Confidence: 0.05},
		{Label: "Twelve-spotted Skimmer", Index: 9, Confidence: 0.03},
	}
	if len(p.Alternatives) != len(want) {
		t.Fatalf("alternatives = %+v", p.Alternatives)
	}
	for i := range want {
		if p.Alternatives[i] != want[i] {
			t.Errorf("alternative %d = %+v, want %+v", i, p.Alternatives[i], want[i])
		}
	}
}

func TestPostProcessConfidenceGate(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		want   float32 // 0 means absent
	}{
		{"below threshold", []float32{0.49, 0.3, 0.2}, 0},
		{"all zero", make([]float32, 10), 0},
		{"negative logits", []float32{-1, -2, -0.5}, 0},
		{"exactly threshold", []float32{0.1, 0.5, 0.2}, 0.5},
		{"above threshold", []float32{0.2, 0.1, 0.7}, 0.7},
		{"unnormalized", []float32{3.5, 8.25, 1}, 8.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PostProcess(tt.scores, DefaultLabels)
			if tt.want == 0 {
				if p != nil {
					t.Errorf("expected absent, got %+v", p)
				}
				return
			}
			if p == nil {
				t.Fatal("expected a prediction")
			}
			if p.Confidence != tt.want {
				t.Errorf("confidence = %v, want %v", p.Confidence, tt.want)
			}
		})
	}
}

func TestPostProcessTiesKeepIndexOrder(t *testing.T) {
	scores := []float32{0.2, 0.6, 0.6, 0.2, 0.6}
	p := PostProcess(scores, DefaultLabels)
	if p == nil {
		t.Fatal("expected a prediction")
	}
	if p.Label != DefaultLabels[1] {
		t.Errorf("best = %s, want %s", p.Label, DefaultLabels[1])
	}
	if len(p.Alternatives) != 2 || p.Alternatives[0].Index != 2 || p.Alternatives[1].Index != 4 {
		t.Errorf("alternatives = %+v, want indices 2 and 4", p.Alternatives)
	}
	for i := 1; i < len(p.Alternatives); i++ {
		if p.Alternatives[i].Confidence > p.Alternatives[i-1].Confidence {
			t.Errorf("alternatives not non-increasing: %+v", p.Alternatives)
		}
	}
}

func TestPostProcessShortInputs(t *testing.T) {
	if p := PostProcess(nil, DefaultLabels); p != nil {
		t.Errorf("empty scores: got %+v", p)
	}
	if p := PostProcess([]float32{0.9}, nil); p != nil {
		t.Errorf("empty labels: got %+v", p)
	}

	p := PostProcess([]float32{0.8}, []string{"Only"})
	if p == nil || p.Label != "Only" || len(p.Alternatives) != 0 {
		t.Errorf("single label: got %+v", p)
	}

	p = PostProcess([]float32{0.1, 0.8}, []string{"A", "B"})
	if p == nil || p.Label != "B" || len(p.Alternatives) != 1 || p.Alternatives[0].Label != "A" {
		t.Errorf("two labels: got %+v", p)
	}
}

func TestPostProcessDoesNotMutateInput(t *testing.T) {
	scores := []float32{0.1, 0.9, 0.5}
	PostProcess(scores, DefaultLabels)
	if scores[0] != 0.1 || scores[1] != 0.9 || scores[2] != 0.5 {
		t.Errorf("scores mutated: %v", scores)
	}
}

func TestPostProcessNaNRanksLast(t *testing.T) {
	nan := float32(math.NaN())

	p := PostProcess([]float32{nan, 0.9, 0.2, nan}, []string{"A", "B", "C", "D"})
	if p == nil || p.Label != "B" || p.Confidence != 0.9 {
		t.Fatalf("got %+v, want B at 0.9", p)
	}
	if len(p.Alternatives) != 2 || p.Alternatives[0].Label != "C" || p.Alternatives[1].Label != "A" {
		t.Errorf("alternatives = %+v", p.Alternatives)
	}

	if p := PostProcess([]float32{nan, nan}, []string{"A", "B"}); p != nil {
		t.Errorf("all NaN: got %+v", p)
	}
}
