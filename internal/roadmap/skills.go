package roadmap

import "strings"

func skillKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MissingSkills returns the entries of required not present in have,
// compared case-insensitively, keeping the first spelling and order.
func MissingSkills(required, have []string) []string {
	owned := make(map[string]struct{}, len(have))
	for _, s := range have {
		owned[skillKey(s)] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{}, len(required))
	for _, s := range required {
		key := skillKey(s)
		if key == "" {
			continue
		}
		if _, ok := owned[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// MergeSkills appends the entries of add that existing lacks and returns the
// merged list together with what was actually added.
func MergeSkills(existing, add []string) (merged, added []string) {
	merged = append(merged, existing...)
	added = MissingSkills(add, existing)
	merged = append(merged, added...)
	return merged, added
}
