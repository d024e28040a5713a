// Package bom compares component inventories.
package bom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// DiffItem holds, for one identifier, the components only in the target
// inventory, only in the source inventory, and in both.
type DiffItem struct {
	Added     []model.Component `json:"added"`
	Removed   []model.Component `json:"removed"`
	Unchanged []model.Component `json:"unchanged"`
}

func (d *DiffItem) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

type DiffResult struct {
	Diffs map[string]*DiffItem `json:"diffs"`
}

func (r *DiffResult) HasChanges() bool {
	for _, item := range r.Diffs {
		if item.HasChanges() {
			return true
		}
	}
	return false
}

// Identifiers returns the diffed identifiers in lexical order.
func (r *DiffResult) Identifiers() []string {
	ids := make([]string, 0, len(r.Diffs))
	for id := range r.Diffs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Item returns the entry for id, or an empty one.
func (r *DiffResult) Item(id string) *DiffItem {
	if item, ok := r.Diffs[id]; ok {
		return item
	}
	return &DiffItem{}
}

func (r *DiffResult) item(id string) *DiffItem {
	item, ok := r.Diffs[id]
	if !ok {
		item = &DiffItem{}
		r.Diffs[id] = item
	}
	return item
}

// Identifier groups all versions of a component. Components without a group
// are identified by name alone.
func Identifier(c model.Component) string {
	return strings.TrimPrefix(c.Group+":"+c.Name, ":")
}

// Diff compares two inventories. Components are the same only when group,
// name and version all match; a version change shows up as one removed and
// one added component under the same identifier. Duplicates match one to one.
// Each list is ordered by version, then purl.
func Diff(from, to []model.Component) *DiffResult {
	result := &DiffResult{Diffs: map[string]*DiffItem{}}

	remaining := make([]model.Component, len(to))
	copy(remaining, to)

	for _, c := range from {
		j := indexOf(remaining, c)
		if j < 0 {
			result.item(Identifier(c)).Removed = append(result.item(Identifier(c)).Removed, c)
			continue
		}
		result.item(Identifier(c)).Unchanged = append(result.item(Identifier(c)).Unchanged, c)
		remaining = append(remaining[:j], remaining[j+1:]...)
	}

	for _, c := range remaining {
		result.item(Identifier(c)).Added = append(result.item(Identifier(c)).Added, c)
	}

	for _, item := range result.Diffs {
		sortComponents(item.Added)
		sortComponents(item.Removed)
		sortComponents(item.Unchanged)
	}
	return result
}

func sortComponents(components []model.Component) {
	sort.SliceStable(components, func(i, j int) bool {
		if components[i].Version != components[j].Version {
			return components[i].Version < components[j].Version
		}
		return components[i].PackageUrl < components[j].PackageUrl
	})
}

func indexOf(components []model.Component, c model.Component) int {
	for i, other := range components {
		if other.SameIdentity(c) {
			return i
		}
	}
	return -1
}

func (r *DiffResult) String() string {
	var b strings.Builder
	b.WriteString("--- Diff ---")
	if !r.HasChanges() {
		b.WriteString("\n- No changes")
		return b.String()
	}
	for _, id := range r.Identifiers() {
		item := r.Diffs[id]
		if !item.HasChanges() {
			continue
		}
		fmt.Fprintf(&b, "\n%s", id)
		for _, c := range item.Removed {
			fmt.Fprintf(&b, "\n  - %s", c.Version)
		}
		for _, c := range item.Added {
			fmt.Fprintf(&b, "\n  + %s", c.Version)
		}
	}
	return b.String()
}
