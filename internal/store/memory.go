package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siddu28/Erflog/internal/profile"
	"github.com/siddu28/Erflog/internal/roadmap"
)

type snapshotKey struct {
	userID string
	date   string
}

// Memory is an in-process store with the same semantics as DB. Values are
// deep-copied on the way in and out so callers never share state with it.
type Memory struct {
	mu        sync.Mutex
	now       func() time.Time
	snapshots map[snapshotKey]*Snapshot
	saved     map[string]*SavedItem
	progress  map[string]*ProgressRecord
	profiles  map[string]*profile.UserProfile
	merged    map[string]*MergedRoadmap
}

func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		snapshots: make(map[snapshotKey]*Snapshot),
		saved:     make(map[string]*SavedItem),
		progress:  make(map[string]*ProgressRecord),
		profiles:  make(map[string]*profile.UserProfile),
		merged:    make(map[string]*MergedRoadmap),
	}
}

func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func (m *Memory) ReplaceSnapshot(_ context.Context, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshotKey{s.UserID, s.Date}] = clone(s)
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, userID, date string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[snapshotKey{userID, date}]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Memory) LatestSnapshot(_ context.Context, userID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Snapshot
	for key, s := range m.snapshots {
		if key.userID != userID {
			continue
		}
		if latest == nil || s.Date > latest.Date {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return clone(latest), nil
}

func (m *Memory) SaveItem(_ context.Context, item *SavedItem) (*SavedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.saved {
		if existing.UserID == item.UserID && existing.ItemID == item.ItemID {
			return clone(existing), nil
		}
	}
	rec := clone(item)
	rec.ID = uuid.NewString()
	rec.CreatedAt = m.now().UTC()
	m.saved[rec.ID] = rec
	return clone(rec), nil
}

func (m *Memory) GetSavedItem(_ context.Context, id string) (*SavedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.saved[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(item), nil
}

func (m *Memory) ListSavedItems(_ context.Context, userID string) ([]SavedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []SavedItem
	for _, item := range m.saved {
		if item.UserID == userID {
			items = append(items, *clone(item))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (m *Memory) FindSavedItem(_ context.Context, userID, itemID string) (*SavedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.saved {
		if item.UserID == userID && item.ItemID == itemID {
			return clone(item), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) DeleteSavedItem(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.saved[id]
	if !ok || item.UserID != userID {
		return ErrNotFound
	}
	delete(m.saved, id)
	delete(m.progress, id)
	return nil
}

func (m *Memory) SavedItemIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, item := range m.saved {
		if item.UserID == userID {
			ids = append(ids, item.ItemID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) GetProgress(_ context.Context, savedItemID string) (*ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.progress[savedItemID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

func (m *Memory) SaveProgress(_ context.Context, rec *ProgressRecord, expected int64) (*ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.progress[rec.SavedItemID]
	switch {
	case expected == 0 && ok:
		return nil, ErrConflict
	case expected != 0 && (!ok || current.Version != expected):
		return nil, ErrConflict
	}

	next := clone(rec)
	next.Version = expected + 1
	if ok {
		next.CompletionTriggered = current.CompletionTriggered
		next.CompletedAt = current.CompletedAt
	} else {
		next.CompletionTriggered = false
		next.CompletedAt = nil
	}
	m.progress[rec.SavedItemID] = next
	return clone(next), nil
}

func (m *Memory) TriggerCompletion(_ context.Context, savedItemID, userID string, skills []string) (*CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.progress[savedItemID]
	if !ok || rec.CompletionTriggered {
		return &CompletionResult{}, nil
	}
	now := m.now().UTC()
	rec.CompletionTriggered = true
	rec.CompletedAt = &now

	p, ok := m.profiles[userID]
	if !ok {
		p = &profile.UserProfile{ID: userID}
		m.profiles[userID] = p
	}
	merged, added := roadmap.MergeSkills(p.Skills, skills)
	p.Skills = merged
	return &CompletionResult{Fired: true, Added: added, TotalSkills: len(merged)}, nil
}

func (m *Memory) GetProfile(_ context.Context, userID string) (*profile.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, profile.ErrNotFound
	}
	out := clone(p)
	out.Vector = append([]float32(nil), p.Vector...)
	return out, nil
}

func (m *Memory) UpsertProfile(_ context.Context, p *profile.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := clone(p)
	stored.Vector = append([]float32(nil), p.Vector...)
	m.profiles[p.ID] = stored
	return nil
}

func (m *Memory) ActiveUserIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) SaveMergedRoadmap(_ context.Context, r *MergedRoadmap) (*MergedRoadmap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := clone(r)
	rec.ID = uuid.NewString()
	rec.CreatedAt = m.now().UTC()
	m.merged[rec.ID] = rec
	return clone(rec), nil
}

func (m *Memory) GetMergedRoadmap(_ context.Context, id string) (*MergedRoadmap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.merged[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r), nil
}

func (m *Memory) ListMergedRoadmaps(_ context.Context, userID string) ([]MergedRoadmap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MergedRoadmap
	for _, r := range m.merged {
		if r.UserID == userID {
			out = append(out, *clone(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteMergedRoadmap(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.merged[id]
	if !ok || r.UserID != userID {
		return ErrNotFound
	}
	delete(m.merged, id)
	return nil
}
