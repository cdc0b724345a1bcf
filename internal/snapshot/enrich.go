package snapshot

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siddu28/Erflog/internal/ai"
	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/compose"
	"github.com/siddu28/Erflog/internal/logger"
	"github.com/siddu28/Erflog/internal/profile"
	"github.com/siddu28/Erflog/internal/roadmap"
	"github.com/siddu28/Erflog/internal/store"
)

const summaryLen = 280

// enriched is the outcome of one item, delivered to the coordinator.
type enriched struct {
	index    int
	item     store.SnapshotItem
	failures []store.Failure
}

// enrichAll runs enrichment for every retained match on a bounded pool.
// Workers never touch the result slice; only this coordinator does. Items
// that have not reported back by the run deadline are degraded and any late
// result is discarded.
func (o *Orchestrator) enrichAll(ctx context.Context, r *run, p *profile.UserProfile, results []catalog.MatchResult) ([]store.SnapshotItem, []store.Failure) {
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	items := make([]store.SnapshotItem, len(results))
	failures := make([][]store.Failure, len(results))
	done := make([]bool, len(results))

	// Buffered for every item so late workers never block after the
	// coordinator has moved on.
	out := make(chan enriched, len(results))

	go func() {
		var g errgroup.Group
		g.SetLimit(o.cfg.Workers)
		for i, mr := range results {
			if runCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				item, fs := o.enrich(runCtx, r, p, mr)
				out <- enriched{index: i, item: item, failures: fs}
				return nil
			})
		}
		_ = g.Wait()
	}()

	received := 0
collect:
	for received < len(results) {
		select {
		case res := <-out:
			items[res.index] = res.item
			failures[res.index] = res.failures
			done[res.index] = true
			received++
		case <-runCtx.Done():
			break collect
		}
	}

	if received < len(results) {
		r.logger.Warn("run deadline reached, degrading unfinished items",
			zap.Int("unfinished", len(results)-received),
			zap.Duration("run_timeout", o.cfg.RunTimeout),
		)
		deadline := fmt.Errorf("%w: run deadline exceeded", ai.ErrGenerationTimeout)
		for i, mr := range results {
			if !done[i] {
				items[i], failures[i] = degraded(mr, p, deadline)
			}
		}
	}

	var flat []store.Failure
	for _, f := range failures {
		flat = append(flat, f...)
	}
	return items, flat
}

func baseItem(mr catalog.MatchResult) store.SnapshotItem {
	return store.SnapshotItem{
		ID:               mr.Item.ID,
		Namespace:        mr.Item.Namespace,
		Title:            mr.Item.Title,
		Org:              mr.Item.Org,
		Link:             mr.Item.Link,
		Source:           mr.Item.Source,
		Location:         mr.Item.Location,
		Summary:          clip(mr.Item.Description, summaryLen),
		Score:            mr.Score,
		Tier:             mr.Tier,
		NeedsImprovement: mr.Tier == catalog.TierGap,
	}
}

// degraded is an item whose enrichment did not finish: no roadmap, no
// bundle, and a failure for each stage that was owed.
func degraded(mr catalog.MatchResult, p *profile.UserProfile, err error) (store.SnapshotItem, []store.Failure) {
	item := baseItem(mr)
	var failures []store.Failure
	if mr.Tier == catalog.TierGap {
		item.RoadmapPending = true
		item.MissingSkills = roadmap.MissingSkills(mr.Item.Skills, p.Skills)
		failures = append(failures, failure(mr, store.StageRoadmap, err))
	}
	failures = append(failures, failure(mr, store.StageApplication, err))
	return item, failures
}

func failure(mr catalog.MatchResult, stage string, err error) store.Failure {
	return store.Failure{
		ItemID:    mr.Item.ID,
		Namespace: mr.Item.Namespace,
		Stage:     stage,
		Error:     err.Error(),
	}
}

type planOutcome struct {
	result roadmap.Result
	err    error
}

type bundleOutcome struct {
	bundle *compose.Bundle
	err    error
}

// enrich builds the roadmap (Gap only) and the application bundle for one
// match. Both are generated concurrently and fail independently; a stage that
// has not answered by the item deadline is failed with a timeout.
func (o *Orchestrator) enrich(ctx context.Context, r *run, p *profile.UserProfile, mr catalog.MatchResult) (store.SnapshotItem, []store.Failure) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ItemTimeout)
	defer cancel()

	log := logger.ForItem(r.logger, mr.Item.Namespace.String(), mr.Item.ID)
	slot := baseItem(mr)
	gap := mr.Tier == catalog.TierGap

	planCh := make(chan planOutcome, 1)
	if gap {
		go func() {
			var res roadmap.Result
			err := guard(func() error {
				var err error
				res, err = o.deps.Synthesizer.Synthesize(ctx, roadmap.Request{
					UserSkills: p.Skills,
					Item:       mr.Item,
					Score:      mr.Score,
				})
				return err
			})
			planCh <- planOutcome{result: res, err: err}
		}()
	}

	bundleCh := make(chan bundleOutcome, 1)
	go func() {
		var bundle *compose.Bundle
		err := guard(func() error {
			var err error
			bundle, err = o.deps.Composer.Compose(ctx, p, mr.Item)
			return err
		})
		bundleCh <- bundleOutcome{bundle: bundle, err: err}
	}()

	timeout := func() error {
		return fmt.Errorf("%w: %v", ai.ErrGenerationTimeout, ctx.Err())
	}

	var failures []store.Failure
	record := func(stage string, err error) {
		log.Warn("item enrichment degraded", zap.String("stage", stage), zap.Error(err))
		failures = append(failures, failure(mr, stage, err))
	}

	if gap {
		var plan planOutcome
		select {
		case plan = <-planCh:
		case <-ctx.Done():
			select {
			case plan = <-planCh:
			default:
				plan = planOutcome{
					result: roadmap.Result{MissingSkills: roadmap.MissingSkills(mr.Item.Skills, p.Skills), Pending: true},
					err:    timeout(),
				}
			}
		}

		slot.MissingSkills = plan.result.MissingSkills
		switch {
		case plan.err != nil:
			slot.RoadmapPending = true
			record(store.StageRoadmap, plan.err)
		case plan.result.Roadmap == nil:
			slot.RoadmapPending = true
			record(store.StageRoadmap, fmt.Errorf("synthesizer returned no roadmap"))
		default:
			slot.Roadmap = plan.result.Roadmap
		}
	}

	var composed bundleOutcome
	select {
	case composed = <-bundleCh:
	case <-ctx.Done():
		select {
		case composed = <-bundleCh:
		default:
			composed = bundleOutcome{err: timeout()}
		}
	}
	if composed.err != nil {
		record(store.StageApplication, composed.err)
	} else {
		slot.ApplicationText = composed.bundle
	}

	log.Debug("item enriched",
		zap.String("tier", string(mr.Tier)),
		zap.Bool("roadmap", slot.Roadmap != nil),
		zap.Bool("application_text", slot.ApplicationText != nil),
	)
	return slot, failures
}

// guard runs fn and reports a panic as an error.
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
