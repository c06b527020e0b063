package reconcile

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// WarningKind classifies a recoverable anomaly.
type WarningKind string

const (
	// WarnNoFiles means the input directory holds no files.
	WarnNoFiles WarningKind = "no_files"
	// WarnDuplicatePart means a part number occurs more than once in a group.
	WarnDuplicatePart WarningKind = "duplicate_part"
	// WarnMissingPart means a part number between 1 and the highest part is absent.
	WarnMissingPart WarningKind = "missing_part"
	// WarnUnnumberedIgnored means unnumbered files were left out of a numbered group.
	WarnUnnumberedIgnored WarningKind = "unnumbered_ignored"
	// WarnAmbiguousOrder means several unnumbered files were merged by path order.
	WarnAmbiguousOrder WarningKind = "ambiguous_order"
)

// Warning is a recoverable anomaly found during a run.
type Warning struct {
	Kind  WarningKind
	Group string // output path relative to the output root; empty for WarnNoFiles
	Part  int    // for WarnDuplicatePart and WarnMissingPart
	Count int    // for WarnUnnumberedIgnored and WarnAmbiguousOrder
	Files []string
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnNoFiles:
		return "no files found in input directory"
	case WarnDuplicatePart:
		return fmt.Sprintf("duplicate part number %d for %s", w.Part, w.Group)
	case WarnMissingPart:
		return fmt.Sprintf("missing part number %d for %s", w.Part, w.Group)
	case WarnUnnumberedIgnored:
		return fmt.Sprintf("ignoring %d unnumbered file(s) for %s: %s", w.Count, w.Group, strings.Join(w.Files, ", "))
	case WarnAmbiguousOrder:
		return fmt.Sprintf("multiple files for %s, merging by path order: %s", w.Group, strings.Join(w.Files, ", "))
	default:
		return string(w.Kind)
	}
}

// Plan is the resolved merge order for one group.
type Plan struct {
	Key      GroupKey
	Entries  []FileEntry
	Warnings []Warning
}

// PlanGroup resolves the merge order of g and validates its part sequence.
//
// Groups with numbered parts merge those parts by ascending number;
// duplicates keep their scan order. Unnumbered files in such a group are
// dropped. Groups without numbered parts merge every file sorted by path.
func PlanGroup(g *Group) Plan {
	plan := Plan{Key: g.Key}
	name := g.Key.String()

	if !g.numbered() {
		entries := slices.Clone(g.Entries)
		slices.SortFunc(entries, func(a, b FileEntry) int {
			return strings.Compare(a.Path, b.Path)
		})
		if len(entries) > 1 {
			plan.Warnings = append(plan.Warnings, Warning{
				Kind:  WarnAmbiguousOrder,
				Group: name,
				Count: len(entries),
				Files: relPaths(entries),
			})
		}
		plan.Entries = entries
		return plan
	}

	var parts, unnumbered []FileEntry
	for _, e := range g.Entries {
		if e.Numbered {
			parts = append(parts, e)
		} else {
			unnumbered = append(unnumbered, e)
		}
	}

	if len(unnumbered) > 0 {
		plan.Warnings = append(plan.Warnings, Warning{
			Kind:  WarnUnnumberedIgnored,
			Group: name,
			Count: len(unnumbered),
			Files: relPaths(unnumbered),
		})
	}

	slices.SortStableFunc(parts, func(a, b FileEntry) int {
		return cmp.Compare(a.Part, b.Part)
	})

	seen := make(map[int]bool, len(parts))
	for _, e := range parts {
		if seen[e.Part] {
			plan.Warnings = append(plan.Warnings, Warning{
				Kind:  WarnDuplicatePart,
				Group: name,
				Part:  e.Part,
				Files: []string{e.Rel},
			})
		}
		seen[e.Part] = true
	}

	maxPart := parts[len(parts)-1].Part
	for i := 1; i <= maxPart; i++ {
		if !seen[i] {
			plan.Warnings = append(plan.Warnings, Warning{
				Kind:  WarnMissingPart,
				Group: name,
				Part:  i,
			})
		}
	}

	plan.Entries = parts
	return plan
}

func relPaths(entries []FileEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Rel
	}
	return paths
}
