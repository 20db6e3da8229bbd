package driver

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Select picks the version to install from candidates ordered by descending
// recency: the second entry when there are at least two, the only entry when
// there is one, fallback otherwise.
func Select(candidates []string, fallback string) string {
	switch len(candidates) {
	case 0:
		return fallback
	case 1:
		return candidates[0]
	default:
		return candidates[1]
	}
}

// SortCandidates extracts versions from package names of the form
// <prefix><number>, drops variants and unparsable names, removes duplicates
// and orders the result newest first.
func SortCandidates(packages []string, prefix string) []string {
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `([0-9]+(\.[0-9]+)*)$`)

	seen := make(map[string]bool)
	type candidate struct {
		raw string
		v   *semver.Version
	}
	var found []candidate
	for _, pkg := range packages {
		m := pattern.FindStringSubmatch(strings.TrimSpace(pkg))
		if m == nil || seen[m[1]] {
			continue
		}
		v, err := semver.NewVersion(m[1])
		if err != nil {
			continue
		}
		seen[m[1]] = true
		found = append(found, candidate{raw: m[1], v: v})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].v.GreaterThan(found[j].v)
	})

	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.raw
	}
	return out
}
