// Package matching retrieves catalog candidates for a user vector and sorts
// them into readiness tiers.
package matching

import (
	"fmt"
	"math"

	"github.com/siddu28/Erflog/internal/catalog"
)

const (
	// DefaultReadyThreshold is the minimum similarity for a match to need no roadmap.
	DefaultReadyThreshold = 0.80
	// DefaultDiscardThreshold is the similarity below which a match is dropped.
	DefaultDiscardThreshold = 0.40
)

// Classifier maps similarity scores to tiers using two fixed thresholds.
type Classifier struct {
	ready   float64
	discard float64
}

// NewClassifier validates 0 <= discard < ready <= 1.
func NewClassifier(ready, discard float64) (*Classifier, error) {
	if math.IsNaN(ready) || math.IsNaN(discard) {
		return nil, fmt.Errorf("thresholds must be numbers")
	}
	if discard < 0 || ready > 1 {
		return nil, fmt.Errorf("thresholds must lie within [0, 1], got ready=%v discard=%v", ready, discard)
	}
	if discard >= ready {
		return nil, fmt.Errorf("discard threshold %v must be below ready threshold %v", discard, ready)
	}
	return &Classifier{ready: ready, discard: discard}, nil
}

// DefaultClassifier uses DefaultReadyThreshold and DefaultDiscardThreshold.
func DefaultClassifier() *Classifier {
	return &Classifier{ready: DefaultReadyThreshold, discard: DefaultDiscardThreshold}
}

// Classify is inclusive on the lower bound of each tier. NaN scores are discarded.
func (c *Classifier) Classify(score float64) catalog.Tier {
	switch {
	case math.IsNaN(score):
		return catalog.TierDiscard
	case score >= c.ready:
		return catalog.TierReady
	case score >= c.discard:
		return catalog.TierGap
	default:
		return catalog.TierDiscard
	}
}

// ClassifyAll tiers every match, keeping input order.
func (c *Classifier) ClassifyAll(matches []catalog.Match) []catalog.MatchResult {
	out := make([]catalog.MatchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, catalog.MatchResult{Match: m, Tier: c.Classify(m.Score)})
	}
	return out
}

func (c *Classifier) Thresholds() (ready, discard float64) {
	return c.ready, c.discard
}
