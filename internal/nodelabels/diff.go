package nodelabels

import (
	"fmt"
	"sort"
	"strings"

	"github.com/imamik/proxk8s/internal/util/labels"
)

// Set is a node's label map.
type Set map[string]string

// String renders the set in sorted key=value form.
func (s Set) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + s[k]
	}
	return strings.Join(parts, ",")
}

// Diff is the change needed to bring a node's owned labels to the desired set.
type Diff struct {
	ToAdd    Set
	ToRemove []string
}

// Empty reports whether the diff changes nothing.
func (d Diff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// String summarises the diff for diagnostics.
func (d Diff) String() string {
	return fmt.Sprintf("add[%s] remove[%s]", d.ToAdd, strings.Join(d.ToRemove, ","))
}

// Compute returns toAdd = desired - current (missing or differing value) and
// toRemove = current - desired, both restricted to unprotected keys.
func Compute(desired, current Set, protected []string) Diff {
	d := Diff{ToAdd: Set{}}
	for k, v := range desired {
		if labels.IsProtected(k, protected) {
			continue
		}
		if cur, ok := current[k]; !ok || cur != v {
			d.ToAdd[k] = v
		}
	}
	for k := range current {
		if labels.IsProtected(k, protected) {
			continue
		}
		if _, ok := desired[k]; !ok {
			d.ToRemove = append(d.ToRemove, k)
		}
	}
	sort.Strings(d.ToRemove)
	return d
}

// Apply returns a copy of current with d applied.
func (d Diff) Apply(current map[string]string) map[string]string {
	out := make(map[string]string, len(current)+len(d.ToAdd))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range d.ToAdd {
		out[k] = v
	}
	for _, k := range d.ToRemove {
		delete(out, k)
	}
	return out
}
