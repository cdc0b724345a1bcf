package filtering

import "github.com/siddu28/Erflog/internal/catalog"

// Results is the mutable list of matches flowing through the filters.
type Results struct {
	Items []catalog.MatchResult
}

func NewResults(items []catalog.MatchResult) *Results {
	return &Results{Items: items}
}

func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

// Exclude removes every item for which drop reports true and returns the removed ids.
func (r *Results) Exclude(drop func(catalog.MatchResult) bool) []string {
	kept := r.Items[:0]
	var removed []string
	for _, item := range r.Items {
		if drop(item) {
			removed = append(removed, item.Item.ID)
			continue
		}
		kept = append(kept, item)
	}
	r.Items = kept
	return removed
}

// ExcludeIDs removes items whose id is in ids.
func (r *Results) ExcludeIDs(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return r.Exclude(func(m catalog.MatchResult) bool {
		_, ok := set[m.Item.ID]
		return ok
	})
}
