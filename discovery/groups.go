package discovery

import (
	"cmp"
	"slices"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// belongs reports whether a descriptor with the given groups is part of a run
// selecting reference. Every descriptor is implicitly in the wildcard group,
// and an empty reference selects the wildcard group.
func (r *Registry) belongs(members, reference []string) bool {
	if len(reference) == 0 {
		reference = []string{types.WildcardGroup}
	}
	set := make(map[string]bool, len(members)+1)
	set[types.WildcardGroup] = true
	for _, g := range members {
		set[g] = true
	}
	for _, ref := range reference {
		if set[ref] {
			return true
		}
	}
	for _, ref := range reference {
		for g := range set {
			if r.config.Matcher.Match(ref, g) {
				return true
			}
		}
	}
	return false
}

// orderTests groups tests by declaring namespace, orders namespaces
// lexicographically and stable sorts each namespace by sequence.
func orderTests(tests []*types.TestDescriptor) []*types.TestDescriptor {
	byNamespace := make(map[string][]*types.TestDescriptor)
	var namespaces []string
	for _, t := range tests {
		ns := t.Namespace()
		if _, ok := byNamespace[ns]; !ok {
			namespaces = append(namespaces, ns)
		}
		byNamespace[ns] = append(byNamespace[ns], t)
	}
	slices.Sort(namespaces)

	out := make([]*types.TestDescriptor, 0, len(tests))
	for _, ns := range namespaces {
		group := byNamespace[ns]
		slices.SortStableFunc(group, func(a, b *types.TestDescriptor) int {
			return cmp.Compare(a.Sequence, b.Sequence)
		})
		out = append(out, group...)
	}
	return out
}

func orderUnits(units []*types.UnitDescriptor) {
	slices.SortStableFunc(units, func(a, b *types.UnitDescriptor) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
}
