// Package metadata provides ordering and comparison helpers for property lists
package metadata

import (
	"sort"
	"strings"
)

func propertyNames(props []*Property) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.name
	}
	return names
}

func formatProperties(props []*Property) string {
	return "{" + strings.Join(propertyNames(props), ", ") + "}"
}

func formatNames(names []string) string {
	return "{" + strings.Join(names, ", ") + "}"
}

func hasDuplicateProperties(props []*Property) bool {
	seen := make(map[*Property]bool, len(props))
	for _, p := range props {
		if seen[p] {
			return true
		}
		seen[p] = true
	}
	return false
}

func containsProperty(props []*Property, p *Property) bool {
	for _, existing := range props {
		if existing == p {
			return true
		}
	}
	return false
}

// compareNameLists orders property lists by count ascending, then by names
func compareNameLists(a, b []string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	for i := range a {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func sortKeys(keys []*Key) []*Key {
	sorted := append([]*Key(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareNameLists(propertyNames(sorted[i].properties), propertyNames(sorted[j].properties)) < 0
	})
	return sorted
}

func sortForeignKeys(fks []*ForeignKey) []*ForeignKey {
	sorted := append([]*ForeignKey(nil), fks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareNameLists(propertyNames(sorted[i].properties), propertyNames(sorted[j].properties))
		if c != 0 {
			return c < 0
		}
		if c = compareNameLists(propertyNames(sorted[i].principalKey.properties), propertyNames(sorted[j].principalKey.properties)); c != 0 {
			return c < 0
		}
		return sorted[i].principalType.name < sorted[j].principalType.name
	})
	return sorted
}

func sortIndexes(indexes []*Index) []*Index {
	sorted := append([]*Index(nil), indexes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareNameLists(propertyNames(sorted[i].properties), propertyNames(sorted[j].properties))
		if c != 0 {
			return c < 0
		}
		return sorted[i].name < sorted[j].name
	})
	return sorted
}
