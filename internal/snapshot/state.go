package snapshot

import (
	"time"

	"go.uber.org/zap"
)

// State is the stage a run is in.
type State string

const (
	StateIdle        State = "IDLE"
	StateRetrieving  State = "RETRIEVING"
	StateClassifying State = "CLASSIFYING"
	StateEnriching   State = "ENRICHING"
	StateAggregating State = "AGGREGATING"
	StateCommitted   State = "COMMITTED"
	StateFailed      State = "FAILED"
)

// run tracks one execution for one user and day.
type run struct {
	id      string
	userID  string
	date    string
	state   State
	started time.Time
	logger  *zap.Logger
}

func (r *run) enter(next State) {
	r.logger.Debug("run state changed",
		zap.String("from", string(r.state)),
		zap.String("to", string(next)),
	)
	r.state = next
}

func (r *run) fail(err error) {
	r.logger.Error("run failed",
		zap.String("state", string(r.state)),
		zap.Duration("elapsed", time.Since(r.started)),
		zap.Error(err),
	)
	r.state = StateFailed
}
