package snapshot

import (
	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/store"
)

func (o *Orchestrator) aggregate(r *run, items []store.SnapshotItem, failures []store.Failure, discarded int) *store.Snapshot {
	snap := &store.Snapshot{
		UserID:      r.userID,
		Date:        r.date,
		RunID:       r.id,
		GeneratedAt: o.now().UTC(),
		Jobs:        []store.SnapshotItem{},
		Contests:    []store.SnapshotItem{},
		News:        []store.SnapshotItem{},
		Failures:    failures,
	}

	for _, item := range items {
		switch item.Namespace {
		case catalog.NamespaceJobs:
			snap.Jobs = append(snap.Jobs, item)
		case catalog.NamespaceContests:
			snap.Contests = append(snap.Contests, item)
		case catalog.NamespaceNews:
			snap.News = append(snap.News, item)
		}
	}

	snap.Stats = ComputeStats(snap, discarded)
	return snap
}

// ComputeStats counts the items of s. Discarded matches never reach the
// snapshot, so their number is passed in.
func ComputeStats(s *store.Snapshot, discarded int) store.Stats {
	stats := store.Stats{
		Discarded:     discarded,
		JobsCount:     len(s.Jobs),
		ContestsCount: len(s.Contests),
		NewsCount:     len(s.News),
	}
	for _, item := range s.Items() {
		stats.Retained++
		switch item.Tier {
		case catalog.TierReady:
			stats.Ready++
		case catalog.TierGap:
			stats.Gap++
		}
		if item.Roadmap != nil {
			stats.WithRoadmap++
		}
		if item.RoadmapPending {
			stats.RoadmapPending++
		}
		if item.ApplicationText != nil {
			stats.WithApplicationText++
		}
	}
	return stats
}
