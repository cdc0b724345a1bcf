package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/catalog"
)

// ErrRetrievalUnavailable is returned when the similarity index cannot be reached.
// The whole run is aborted and retried on the next cycle.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// Index is the similarity index holding catalog vectors.
// Implementations may return fewer than topK matches, in any order.
type Index interface {
	Query(ctx context.Context, vector []float32, namespace catalog.Namespace, topK int) ([]catalog.Match, error)
}

// Retriever ranks index results deterministically.
type Retriever struct {
	index  Index
	logger *zap.Logger
}

func NewRetriever(index Index, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{index: index, logger: logger}
}

// Retrieve returns at most limit matches ordered by score descending, then
// by recency, then by id.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32, namespace catalog.Namespace, limit int) ([]catalog.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	if r.index == nil {
		return nil, fmt.Errorf("%w: no index configured", ErrRetrievalUnavailable)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("user vector is empty")
	}

	matches, err := r.index.Query(ctx, vector, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrRetrievalUnavailable, namespace, err)
	}

	for i := range matches {
		if matches[i].Item.Namespace == "" {
			matches[i].Item.Namespace = namespace
		}
	}

	Rank(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	r.logger.Debug("retrieved candidates",
		zap.String("namespace", namespace.String()),
		zap.Int("limit", limit),
		zap.Int("count", len(matches)),
	)

	return matches, nil
}

// Rank sorts matches in place: score desc, published desc, id asc.
// NaN scores sort after every real score.
func Rank(matches []catalog.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		aNaN, bNaN := math.IsNaN(a.Score), math.IsNaN(b.Score)
		if aNaN != bNaN {
			return bNaN
		}
		if !aNaN && a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Item.PublishedAt.Equal(b.Item.PublishedAt) {
			return a.Item.PublishedAt.After(b.Item.PublishedAt)
		}
		return a.Item.ID < b.Item.ID
	})
}
