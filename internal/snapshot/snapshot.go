// Package snapshot builds and commits the daily snapshot of each user.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/compose"
	"github.com/siddu28/Erflog/internal/filtering"
	"github.com/siddu28/Erflog/internal/lock"
	"github.com/siddu28/Erflog/internal/logger"
	"github.com/siddu28/Erflog/internal/matching"
	"github.com/siddu28/Erflog/internal/profile"
	"github.com/siddu28/Erflog/internal/roadmap"
	"github.com/siddu28/Erflog/internal/store"
	"github.com/siddu28/Erflog/internal/utils"
)

// ErrNoUser is returned when Run is called without a user id.
var ErrNoUser = errors.New("user id is required")

const (
	defaultWorkers       = 4
	defaultUserWorkers   = 1
	defaultRunTimeout    = 5 * time.Minute
	defaultItemTimeout   = 90 * time.Second
	defaultCommitRetries = 3
	commitBackoffBase    = 200 * time.Millisecond
	commitBackoffMax     = 2 * time.Second
)

// DefaultLimits is the number of matches retrieved per namespace.
var DefaultLimits = map[string]int{
	catalog.NamespaceJobs.String():     10,
	catalog.NamespaceContests.String(): 10,
	catalog.NamespaceNews.String():     5,
}

var wait = utils.WaitFor

// Store persists committed snapshots.
type Store interface {
	GetSnapshot(ctx context.Context, userID, date string) (*store.Snapshot, error)
	ReplaceSnapshot(ctx context.Context, s *store.Snapshot) error
}

type ProfileResolver interface {
	Resolve(ctx context.Context, userID string) (*profile.UserProfile, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, namespace catalog.Namespace, limit int) ([]catalog.Match, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req roadmap.Request) (roadmap.Result, error)
}

type Composer interface {
	Compose(ctx context.Context, p *profile.UserProfile, item catalog.Item) (*compose.Bundle, error)
}

// Config controls concurrency, deadlines and retrieval sizes of a run.
type Config struct {
	Workers       int            `mapstructure:"workers" validate:"gte=0"`
	UserWorkers   int            `mapstructure:"user-workers" validate:"gte=0"`
	RunTimeout    time.Duration  `mapstructure:"run-timeout" validate:"gte=0"`
	ItemTimeout   time.Duration  `mapstructure:"item-timeout" validate:"gte=0"`
	CommitRetries int            `mapstructure:"commit-retries" validate:"gte=0"`
	Limits        map[string]int `mapstructure:"limits"`
	Timezone      string         `mapstructure:"timezone"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.UserWorkers <= 0 {
		c.UserWorkers = defaultUserWorkers
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaultRunTimeout
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = defaultItemTimeout
	}
	if c.CommitRetries <= 0 {
		c.CommitRetries = defaultCommitRetries
	}
	limits := make(map[string]int, len(DefaultLimits))
	for ns, n := range DefaultLimits {
		limits[ns] = n
	}
	for name, n := range c.Limits {
		if ns, err := catalog.ParseNamespace(name); err == nil {
			limits[ns.String()] = n
		}
	}
	c.Limits = limits
	return c
}

// Deps are the collaborators of an Orchestrator. Saved and Filters are
// optional; nil Filters means filtering.Default.
type Deps struct {
	Store        Store
	Profiles     ProfileResolver
	Retriever    Retriever
	Classifier   *matching.Classifier
	Synthesizer  Synthesizer
	Composer     Composer
	Locker       lock.Locker
	Saved        filtering.SavedLister
	Filters      func() []filtering.Filter
	FilterConfig *filtering.Config
	Logger       *zap.Logger
}

// Outcome is the result of Run. Cached is set when an existing snapshot for
// the day was returned without recomputation.
type Outcome struct {
	Snapshot *store.Snapshot
	Cached   bool
}

type Orchestrator struct {
	deps     Deps
	cfg      Config
	location *time.Location
	now      func() time.Time
	newRunID func() string
	logger   *zap.Logger
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("snapshot store is required")
	case deps.Profiles == nil:
		return nil, errors.New("profile resolver is required")
	case deps.Retriever == nil:
		return nil, errors.New("retriever is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("roadmap synthesizer is required")
	case deps.Composer == nil:
		return nil, errors.New("application composer is required")
	}

	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
	}

	if deps.Classifier == nil {
		deps.Classifier = matching.DefaultClassifier()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Filters == nil {
		deps.Filters = filtering.Default
	}
	if deps.FilterConfig == nil {
		deps.FilterConfig = &filtering.Config{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Orchestrator{
		deps:     deps,
		cfg:      cfg.withDefaults(),
		location: loc,
		now:      time.Now,
		newRunID: uuid.NewString,
		logger:   deps.Logger,
	}, nil
}

// Today returns the snapshot date for the current instant.
func (o *Orchestrator) Today() string {
	return o.now().In(o.location).Format(store.DateLayout)
}

func runLockKey(userID string) string {
	return "run:" + userID
}

// Run returns today's snapshot of userID. Unless force is set an already
// committed snapshot is returned unchanged; otherwise the snapshot is rebuilt
// and replaces the stored one. Runs of the same user are serialized.
func (o *Orchestrator) Run(ctx context.Context, userID string, force bool) (*Outcome, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNoUser
	}

	unlock, err := o.deps.Locker.Lock(ctx, runLockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("acquire run lock for %s: %w", userID, err)
	}
	defer unlock()

	date := o.Today()
	if !force {
		cached, err := o.deps.Store.GetSnapshot(ctx, userID, date)
		switch {
		case err == nil:
			o.logger.Info("returning cached snapshot",
				zap.String(logger.FieldUserID, userID),
				zap.String("date", date),
				zap.String(logger.FieldRunID, cached.RunID),
			)
			return &Outcome{Snapshot: cached, Cached: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("load snapshot for %s: %w", userID, err)
		}
	}

	r := &run{
		id:      o.newRunID(),
		userID:  userID,
		date:    date,
		state:   StateIdle,
		started: o.now(),
	}
	r.logger = logger.ForRun(o.logger, r.id, userID)
	r.logger.Info("run started", zap.String("date", date), zap.Bool("force", force))

	snap, err := o.execute(ctx, r)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	return &Outcome{Snapshot: snap}, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (*store.Snapshot, error) {
	r.enter(StateRetrieving)
	p, err := o.deps.Profiles.Resolve(ctx, r.userID)
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}

	matches, err := o.retrieve(ctx, p.Vector)
	if err != nil {
		return nil, err
	}

	r.enter(StateClassifying)
	var (
		classified []catalog.MatchResult
		discarded  int
	)
	for _, batch := range matches {
		for _, mr := range o.deps.Classifier.ClassifyAll(batch) {
			if mr.Tier == catalog.TierDiscard {
				discarded++
			}
			classified = append(classified, mr)
		}
	}

	deps := filtering.Deps{Logger: r.logger, UserID: r.userID, Saved: o.deps.Saved}
	steps := o.deps.Filters()
	kept, err := filtering.Run(ctx, o.deps.FilterConfig, deps, steps, filtering.NewResults(classified))
	if err != nil {
		return nil, fmt.Errorf("filter matches: %w", err)
	}
	for _, st := range filtering.Describe(steps) {
		if !st.Enabled {
			r.logger.Debug("filter skipped", zap.String("name", st.Name), zap.String("reason", st.Reason))
		}
	}
	r.logger.Info("matches classified",
		zap.Int("retrieved", len(classified)),
		zap.Int("discarded", discarded),
		zap.Int("retained", kept.Len()),
	)

	r.enter(StateEnriching)
	items, failures := o.enrichAll(ctx, r, p, kept.Items)

	r.enter(StateAggregating)
	snap := o.aggregate(r, items, failures, discarded)

	if err := o.commit(ctx, r, snap); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	r.enter(StateCommitted)
	r.logger.Info("snapshot committed",
		zap.String("date", snap.Date),
		zap.Int("retained", snap.Stats.Retained),
		zap.Int("ready", snap.Stats.Ready),
		zap.Int("gap", snap.Stats.Gap),
		zap.Int("with_roadmap", snap.Stats.WithRoadmap),
		zap.Int("roadmap_pending", snap.Stats.RoadmapPending),
		zap.Int("failures", len(snap.Failures)),
		zap.Duration("elapsed", time.Since(r.started)),
	)
	return snap, nil
}

// retrieve queries every namespace concurrently. Any failure aborts the run.
func (o *Orchestrator) retrieve(ctx context.Context, vector []float32) ([][]catalog.Match, error) {
	namespaces := catalog.Namespaces()
	out := make([][]catalog.Match, len(namespaces))

	g, gctx := errgroup.WithContext(ctx)
	for i, ns := range namespaces {
		g.Go(func() error {
			matches, err := o.deps.Retriever.Retrieve(gctx, vector, ns, o.cfg.Limits[ns.String()])
			if err != nil {
				return fmt.Errorf("retrieve %s: %w", ns, err)
			}
			out[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// commit writes snap, retrying when a concurrent writer wins the race.
func (o *Orchestrator) commit(ctx context.Context, r *run, snap *store.Snapshot) error {
	var err error
	for attempt := 1; attempt <= o.cfg.CommitRetries; attempt++ {
		err = o.deps.Store.ReplaceSnapshot(ctx, snap)
		if err == nil || !errors.Is(err, store.ErrConflict) {
			return err
		}
		r.logger.Warn("snapshot write conflict", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == o.cfg.CommitRetries {
			break
		}
		if werr := wait(ctx, utils.Backoff(attempt, commitBackoffBase, commitBackoffMax)); werr != nil {
			return werr
		}
	}
	return err
}
