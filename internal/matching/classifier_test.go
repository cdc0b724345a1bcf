package matching

import (
	"math"
	"testing"

	"github.com/siddu28/Erflog/internal/catalog"
)

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(0.80, 0.40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		score float64
		want  catalog.Tier
	}{
		{name: "perfect", score: 1, want: catalog.TierReady},
		{name: "exactly ready", score: 0.80, want: catalog.TierReady},
		{name: "just below ready", score: math.Nextafter(0.80, 0), want: catalog.TierGap},
		{name: "middle", score: 0.65, want: catalog.TierGap},
		{name: "exactly discard", score: 0.40, want: catalog.TierGap},
		{name: "just below discard", score: math.Nextafter(0.40, 0), want: catalog.TierDiscard},
		{name: "zero", score: 0, want: catalog.TierDiscard},
		{name: "negative", score: -0.3, want: catalog.TierDiscard},
		{name: "nan", score: math.NaN(), want: catalog.TierDiscard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.score); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
			}
			if again := c.Classify(tt.score); again != c.Classify(tt.score) {
				t.Fatalf("Classify is not deterministic")
			}
		})
	}
}

func TestClassifyAllExample(t *testing.T) {
	matches := []catalog.Match{{Score: 0.92}, {Score: 0.65}, {Score: 0.30}}

	got := DefaultClassifier().ClassifyAll(matches)
	want := []catalog.Tier{catalog.TierReady, catalog.TierGap, catalog.TierDiscard}
	for i := range want {
		if got[i].Tier != want[i] {
			t.Fatalf("match %d: expected %s, got %s", i, want[i], got[i].Tier)
		}
	}
}

func TestNewClassifierRejectsInvertedThresholds(t *testing.T) {
	t.Parallel()

	for _, th := range [][2]float64{{0.4, 0.8}, {0.5, 0.5}, {1.2, 0.4}, {0.8, -0.1}, {math.NaN(), 0.1}} {
		if _, err := NewClassifier(th[0], th[1]); err == nil {
			t.Fatalf("expected error for ready=%v discard=%v", th[0], th[1])
		}
	}
}
