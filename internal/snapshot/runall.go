package snapshot

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siddu28/Erflog/internal/logger"
)

const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
	StatusNoUsers        = "no_users"
)

// Summary reports the outcome of RunAll. Processed counts freshly committed
// snapshots and Cached counts users whose snapshot already existed.
type Summary struct {
	Status    string            `json:"status"`
	Total     int               `json:"total"`
	Processed int               `json:"processed"`
	Cached    int               `json:"cached"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// RunAll runs the non-forced daily run for every user. A failing user does
// not stop the others.
func (o *Orchestrator) RunAll(ctx context.Context, userIDs []string) *Summary {
	sum := &Summary{Total: len(userIDs)}
	if len(userIDs) == 0 {
		sum.Status = StatusNoUsers
		o.logger.Info("scheduled run skipped, no users")
		return sum
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.cfg.UserWorkers)
	for _, userID := range userIDs {
		g.Go(func() error {
			out, err := o.Run(ctx, userID, false)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				sum.Failed++
				if sum.Errors == nil {
					sum.Errors = make(map[string]string)
				}
				sum.Errors[userID] = err.Error()
			case out.Cached:
				sum.Cached++
			default:
				sum.Processed++
			}
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case sum.Failed == 0:
		sum.Status = StatusSuccess
	case sum.Failed == sum.Total:
		sum.Status = StatusFailed
	default:
		sum.Status = StatusPartialSuccess
	}

	o.logger.Info("scheduled run finished",
		zap.String("status", sum.Status),
		zap.Int("total", sum.Total),
		zap.Int("processed", sum.Processed),
		zap.Int("cached", sum.Cached),
		zap.Int("failed", sum.Failed),
	)
	for userID, msg := range sum.Errors {
		o.logger.Warn("user run failed", zap.String(logger.FieldUserID, userID), zap.String("error", msg))
	}
	return sum
}
