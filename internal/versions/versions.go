// Package versions orders game version ids.
package versions

import (
	"sort"

	"github.com/blang/semver/v4"
)

// Sort orders ids oldest first. Ids that parse as tolerant semver
// ("1.8.9", "1.20", "1.20.1-forge") sort by version; the rest follow in
// lexical order.
func Sort(ids []string) []string {
	type entry struct {
		id  string
		ver semver.Version
		ok  bool
	}
	entries := make([]entry, len(ids))
	for i, id := range ids {
		v, err := semver.ParseTolerant(id)
		entries[i] = entry{id: id, ver: v, ok: err == nil}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.ok && b.ok:
			if c := a.ver.Compare(b.ver); c != 0 {
				return c < 0
			}
			return a.id < b.id
		case a.ok != b.ok:
			return a.ok
		default:
			return a.id < b.id
		}
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}

// Latest returns the newest semver-like id, or "" when none parse.
func Latest(ids []string) string {
	var best string
	var bestVer semver.Version
	for _, id := range ids {
		v, err := semver.ParseTolerant(id)
		if err != nil {
			continue
		}
		if best == "" || v.GT(bestVer) {
			best, bestVer = id, v
		}
	}
	return best
}
